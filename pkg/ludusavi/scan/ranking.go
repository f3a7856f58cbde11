package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/paths"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// InstallDirRanking maps a game name to its most likely installation
// directory across all scan roots. Ties between roots are broken by root
// declaration order.
type InstallDirRanking map[string]string

// storeSubdirs are the per-store directories whose children are candidate
// installation directories, in addition to the root's own children.
var storeSubdirs = []string{"steamapps/common", "common", "GOG Games"}

// RankInstallDirs scans the roots' likely install locations once and matches
// their directory names against each game's declared install directories,
// falling back to the game name itself. Matching is case-insensitive.
func RankInstallDirs(roots []types.Root, games map[string]manifest.Game) InstallDirRanking {
	// candidates maps a lowercased directory name to its first-seen path.
	candidates := make(map[string]string)
	record := func(dir string) {
		entries, err := os.ReadDir(filepath.FromSlash(dir))
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			key := strings.ToLower(e.Name())
			if _, seen := candidates[key]; !seen {
				candidates[key] = dir + "/" + e.Name()
			}
		}
	}
	for _, root := range roots {
		base := paths.Normalize(root.Path)
		record(base)
		for _, sub := range storeSubdirs {
			record(base + "/" + sub)
		}
	}

	ranking := make(InstallDirRanking, len(games))
	for name, game := range games {
		for _, dir := range installDirNames(name, game) {
			if p, ok := candidates[strings.ToLower(dir)]; ok {
				ranking[name] = p
				break
			}
		}
	}
	return ranking
}

// installDirNames returns the directory names that may host the game: its
// declared install directories in sorted order, then the game name itself.
func installDirNames(name string, game manifest.Game) []string {
	dirs := make([]string, 0, len(game.InstallDir)+1)
	for dir := range game.InstallDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return append(dirs, name)
}

// installDirName returns the directory name to substitute for the game
// token.
func installDirName(name string, game manifest.Game) string {
	return installDirNames(name, game)[0]
}
