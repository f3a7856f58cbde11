// Package scan resolves a game's manifest patterns against concrete scan
// roots to produce the set of files and registry keys to back up, or the set
// recorded in a stored backup to restore.
package scan

import (
	"os"
	"path/filepath"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/hashcache"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/layout"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/paths"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// Filter excludes paths from every game's scan.
type Filter struct {
	ExcludedPaths []string
}

// Excluded reports whether the path falls under any excluded prefix.
func (f Filter) Excluded(path string) bool {
	for _, prefix := range f.ExcludedPaths {
		p := paths.Normalize(prefix)
		if p != "" && (path == p || len(path) > len(p) && path[:len(p)] == p && path[len(p)] == '/') {
			return true
		}
	}
	return false
}

// Toggles marks individual paths and registry keys the user switched off for
// one game. Toggled items are still reported, flagged as ignored.
type Toggles struct {
	Files    map[string]bool
	Registry map[string]bool
}

// FileOff reports whether the path is toggled off.
func (t Toggles) FileOff(path string) bool { return t.Files[path] }

// RegistryOff reports whether the key is toggled off.
func (t Toggles) RegistryOff(path string) bool { return t.Registry[path] }

// BackupParams carries the read-only inputs for one game's backup-direction
// scan.
type BackupParams struct {
	Name    string
	Game    manifest.Game
	Roots   []types.Root
	Filter  Filter
	Toggles Toggles
	Ranking InstallDirRanking

	// Cache memoizes content hashes; nil hashes every file.
	Cache *hashcache.Cache

	// Layout classifies the scan against the latest stored backup when
	// set.
	Layout *layout.GameLayout

	// WinePrefix lets Windows path tokens resolve on other platforms.
	WinePrefix string
}

// ForBackup scans the live filesystem for one game. Hashing failures mark
// the file with an empty hash but do not abort the scan.
func ForBackup(p BackupParams) *types.ScanInfo {
	scan := types.NewScanInfo(p.Name)
	osHere := manifest.CurrentOs()

	for _, root := range p.Roots {
		ctx := paths.NewResolveContext(root.Path, root.Store)
		ctx.Game = installDirName(p.Name, p.Game)
		ctx.WinePrefix = p.WinePrefix
		if root.Store == manifest.StoreOtherWine {
			// The root itself is the compatibility prefix.
			ctx.WinePrefix = ctx.Root
		}
		if base, ok := p.Ranking[p.Name]; ok {
			ctx.Base = base
		} else {
			// Without a ranked install dir, glob for it under the root.
			ctx.Base = ctx.Root + "/**/" + ctx.Game
		}

		mctx := manifest.Context{Os: osHere, Store: root.Store}
		for pattern, entry := range p.Game.Files {
			if !entry.Applies(mctx) {
				continue
			}
			resolved, ok := ctx.Resolve(pattern)
			if !ok {
				continue
			}
			for _, match := range paths.Expand(resolved) {
				if p.Filter.Excluded(match) {
					continue
				}
				if _, seen := scan.Files[match]; seen {
					continue
				}
				scan.Files[match] = scanFile(match, p.Cache, p.Toggles)
			}
		}

		if osHere == manifest.OsWindows {
			for key, entry := range p.Game.Registry {
				if !entry.Applies(mctx) {
					continue
				}
				path := paths.Normalize(key)
				if _, seen := scan.Registry[path]; seen {
					continue
				}
				scan.Registry[path] = types.ScannedRegistry{
					Path:    path,
					Ignored: p.Toggles.RegistryOff(path),
				}
			}
		}
	}

	if p.Layout != nil {
		scan.Change = classifyChange(scan, p.Layout)
	}
	return scan
}

func scanFile(path string, cache *hashcache.Cache, toggles Toggles) types.ScannedFile {
	f := types.ScannedFile{
		Path:    path,
		Ignored: toggles.FileOff(path),
	}
	info, err := os.Stat(filepath.FromSlash(path))
	if err != nil {
		return f
	}
	f.Size = info.Size()
	hash, err := cache.HashFile(path, info.Size(), info.ModTime().UnixNano())
	if err == nil {
		f.Hash = hash
	}
	return f
}

// classifyChange compares the scan's non-ignored file state against the
// effective state of the latest stored generation.
func classifyChange(scan *types.ScanInfo, g *layout.GameLayout) types.ScanChange {
	latest := g.LatestBackup()
	if latest == nil {
		return types.ScanChangeNew
	}
	prev, _, ok := g.EffectiveState(latest.ID)
	if !ok {
		return types.ScanChangeUnknown
	}

	count := 0
	for _, f := range scan.Files {
		if f.Ignored {
			continue
		}
		count++
		old, stored := prev[paths.ToPortable(f.Path)]
		if !stored || old.Hash != f.Hash {
			return types.ScanChangeDifferent
		}
	}
	if count != len(prev) {
		return types.ScanChangeDifferent
	}
	return types.ScanChangeSame
}

// ForRestoration builds a scan from a stored backup chain. It fails softly:
// when the game has no backups or the id names no stored generation, the
// result is empty with no backup selected, and AvailableBackups still lists
// the chain.
func ForRestoration(name string, id types.BackupID, g *layout.GameLayout, toggles Toggles) *types.ScanInfo {
	scan := types.NewScanInfo(name)
	scan.Restoring = true
	scan.AvailableBackups = g.Backups()

	backup := g.FindBackup(id)
	if backup == nil {
		return scan
	}
	scan.Backup = backup

	files, reg, ok := g.EffectiveState(backup.ID)
	if !ok {
		return scan
	}
	for portable, entry := range files {
		original := paths.FromPortable(portable)
		scan.Files[original] = types.ScannedFile{
			Path:         original,
			OriginalPath: original,
			Size:         entry.Size,
			Hash:         entry.Hash,
			Container:    entry.Container,
			Ignored:      toggles.FileOff(original),
		}
	}
	for path, entry := range reg {
		scan.Registry[path] = types.ScannedRegistry{
			Path:      path,
			Container: entry.Container,
			Ignored:   toggles.RegistryOff(path),
		}
	}
	return scan
}
