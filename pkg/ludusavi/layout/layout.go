// Package layout owns the on-disk backup storage format: one directory per
// game under the backup root, a mapping.yaml index recording each game's
// ordered backup chain, and the containers holding backed-up content. The
// index alone is enough to reconstruct any generation through the chain
// overlay, without reading container contents.
package layout

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/archive"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

const mappingFile = "mapping.yaml"

// BackupLayout is the storage root for all games' backups.
type BackupLayout struct {
	root      string
	retention types.Retention
	settings  archive.Settings
}

// New returns a layout over the given backup root.
func New(root string, retention types.Retention, settings archive.Settings) *BackupLayout {
	if retention.Full < 1 {
		retention.Full = 1
	}
	return &BackupLayout{root: root, retention: retention, settings: settings}
}

// Root returns the backup root directory.
func (l *BackupLayout) Root() string {
	return l.root
}

// PrepareTarget readies the backup root before any per-game work. With merge
// false the root is deleted and recreated; with merge true it is created if
// absent and existing game directories are preserved. Failure here is fatal
// for the whole operation.
func (l *BackupLayout) PrepareTarget(merge bool) error {
	if !merge {
		if err := os.RemoveAll(l.root); err != nil {
			return fmt.Errorf("clear backup target: %w", err)
		}
	}
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return fmt.Errorf("create backup target: %w", err)
	}
	return nil
}

// Game returns the per-game view of the layout. The directory is not created
// until a backup is written.
func (l *BackupLayout) Game(name string) *GameLayout {
	return &GameLayout{
		layout: l,
		name:   name,
		dir:    filepath.Join(l.root, dirName(name)),
	}
}

// RestorableGames lists the games with at least one stored backup, sorted by
// name.
func (l *BackupLayout) RestorableGames() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup target: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := loadMapping(filepath.Join(l.root, e.Name(), mappingFile))
		if err != nil {
			// Unrelated directories are not an error.
			continue
		}
		if len(m.Backups) > 0 {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// unsafeName matches characters that cannot appear in a directory name on
// every supported filesystem.
var unsafeName = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// sanitizeName maps a game name to a directory name. The true name lives in
// mapping.yaml, so the sanitized form only has to be filesystem-safe.
func sanitizeName(name string) string {
	s := unsafeName.ReplaceAllString(name, "_")
	s = strings.TrimRight(s, ". ")
	if s == "" {
		s = "_"
	}
	return s
}

// dirName maps a game name to its storage directory. When sanitizing had to
// alter the name, a short hash of the true name is appended so distinct
// names never share a directory.
func dirName(name string) string {
	s := sanitizeName(name)
	if s == name {
		return s
	}
	sum := sha1.Sum([]byte(name))
	return s + "-" + hex.EncodeToString(sum[:4])
}
