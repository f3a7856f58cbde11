// Package registry models Windows registry data for backup and restore. Keys
// are addressed by hive-rooted paths like
// "HKEY_CURRENT_USER/Software/Example". Snapshots serialize to YAML so they
// travel inside backup containers and remain inspectable on any platform.
package registry

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnsupported is returned by registry operations on platforms without a
// live registry.
var ErrUnsupported = errors.New("registry is not available on this platform")

// ValueKind names the registry value types a snapshot can carry.
type ValueKind string

// Registry value kinds.
const (
	KindSz       ValueKind = "sz"
	KindExpandSz ValueKind = "expandSz"
	KindMultiSz  ValueKind = "multiSz"
	KindDword    ValueKind = "dword"
	KindQword    ValueKind = "qword"
	KindBinary   ValueKind = "binary"
	KindRaw      ValueKind = "raw"
)

// Value is a single registry value in portable form. Data holds the string
// form for string kinds, the decimal form for integer kinds, and hex for
// binary kinds.
type Value struct {
	Kind ValueKind `yaml:"kind"`
	Data string    `yaml:"data"`
}

// Key holds the values stored directly under one registry key, by value
// name. The default value uses the empty name.
type Key map[string]Value

// Entries is a registry snapshot: key path to key contents. Only keys listed
// here were captured; absence means the key did not exist or held nothing.
type Entries map[string]Key

// Serialize renders the snapshot as YAML.
func (e Entries) Serialize() ([]byte, error) {
	return yaml.Marshal(e)
}

// ParseEntries decodes a snapshot previously produced by Serialize.
func ParseEntries(data []byte) (Entries, error) {
	var e Entries
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("invalid registry snapshot: %w", err)
	}
	return e, nil
}

// Sum returns a stable content hash and size for one key, so per-key change
// detection works the same way it does for files.
func (e Entries) Sum(path string) (hash string, size int64) {
	key, ok := e[path]
	if !ok {
		return "", 0
	}
	names := make([]string, 0, len(key))
	for name := range key {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha1.New()
	for _, name := range names {
		v := key[name]
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00", name, v.Kind, v.Data)
		size += int64(len(name) + len(v.Data))
	}
	return hex.EncodeToString(h.Sum(nil)), size
}

// Paths returns the snapshot's key paths in sorted order.
func (e Entries) Paths() []string {
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// A Client reads and writes live registry keys. Platforms without a registry
// return a client whose Supported method reports false and whose operations
// fail.
type Client interface {
	// Supported reports whether this platform has a live registry.
	Supported() bool

	// Enumerate lists the full paths of the key's direct child keys. It
	// returns nil without error when the key does not exist.
	Enumerate(path string) ([]string, error)

	// Export captures the values under the given key path. It returns a
	// nil Key without error when the key does not exist.
	Export(path string) (Key, error)

	// Import writes the key's values back to the live registry, creating
	// the key as needed.
	Import(path string, key Key) error
}

// Live returns the platform's registry client.
func Live() Client {
	return liveClient()
}
