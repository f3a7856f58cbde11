// Package dupe indexes scanned content across games to flag save data that
// more than one game claims. Files are identified by content hash, registry
// entries by key path. The index is mutated single-threaded after the
// concurrent scan phase, so it needs no locking.
package dupe

import (
	"sort"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

type gameSet map[string]struct{}

// Detector tracks which games contributed each content identity. The zero
// value is not usable; call NewDetector.
type Detector struct {
	files    map[string]gameSet
	registry map[string]gameSet

	// byGame remembers each game's contributions so they can be fully
	// withdrawn on re-scan.
	byGame map[string]contribution
}

type contribution struct {
	files    []string
	registry []string
}

// NewDetector returns an empty index.
func NewDetector() *Detector {
	d := &Detector{}
	d.Clear()
	return d
}

// Clear empties the index.
func (d *Detector) Clear() {
	d.files = make(map[string]gameSet)
	d.registry = make(map[string]gameSet)
	d.byGame = make(map[string]contribution)
}

// AddGame indexes one game's scan. Re-adding a game first withdraws its
// previous contribution, so repeated scans are idempotent.
func (d *Detector) AddGame(scan *types.ScanInfo) {
	name := scan.GameName
	d.RemoveGame(name)

	var c contribution
	for _, f := range scan.Files {
		if f.Hash == "" {
			continue
		}
		insert(d.files, f.Hash, name)
		c.files = append(c.files, f.Hash)
	}
	for _, r := range scan.Registry {
		insert(d.registry, r.Path, name)
		c.registry = append(c.registry, r.Path)
	}
	d.byGame[name] = c
}

// RemoveGame withdraws all of a game's contributions. Identities shared with
// no other game are dropped entirely.
func (d *Detector) RemoveGame(name string) {
	c, ok := d.byGame[name]
	if !ok {
		return
	}
	for _, hash := range c.files {
		remove(d.files, hash, name)
	}
	for _, path := range c.registry {
		remove(d.registry, path, name)
	}
	delete(d.byGame, name)
}

// IsFileDuplicated reports whether at least two games claim the file's
// content.
func (d *Detector) IsFileDuplicated(f types.ScannedFile) bool {
	return f.Hash != "" && len(d.files[f.Hash]) >= 2
}

// IsRegistryDuplicated reports whether at least two games claim the key.
func (d *Detector) IsRegistryDuplicated(r types.ScannedRegistry) bool {
	return len(d.registry[r.Path]) >= 2
}

// FileOwners lists the other games claiming the file's content, sorted.
func (d *Detector) FileOwners(f types.ScannedFile, except string) []string {
	if f.Hash == "" {
		return nil
	}
	return owners(d.files[f.Hash], except)
}

// RegistryOwners lists the other games claiming the key, sorted.
func (d *Detector) RegistryOwners(r types.ScannedRegistry, except string) []string {
	return owners(d.registry[r.Path], except)
}

func owners(set gameSet, except string) []string {
	var names []string
	for name := range set {
		if name != except {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// IsGameDuplicated reports whether any of the game's indexed identities is
// shared with another game.
func (d *Detector) IsGameDuplicated(name string) bool {
	c, ok := d.byGame[name]
	if !ok {
		return false
	}
	for _, hash := range c.files {
		if len(d.files[hash]) >= 2 {
			return true
		}
	}
	for _, path := range c.registry {
		if len(d.registry[path]) >= 2 {
			return true
		}
	}
	return false
}

func insert(index map[string]gameSet, identity, name string) {
	set, ok := index[identity]
	if !ok {
		set = gameSet{}
		index[identity] = set
	}
	set[name] = struct{}{}
}

func remove(index map[string]gameSet, identity, name string) {
	set, ok := index[identity]
	if !ok {
		return
	}
	delete(set, name)
	if len(set) == 0 {
		delete(index, identity)
	}
}
