package operation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/config"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/paths"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// fixture builds a steam-style root with one game's saves and a config
// pointing backups at a scratch directory.
func fixture(t *testing.T, games map[string]map[string]string) (*config.Config, manifest.Manifest, string) {
	t.Helper()
	root := paths.Normalize(t.TempDir())

	man := manifest.Manifest{}
	for name, files := range games {
		for rel, content := range files {
			full := filepath.Join(filepath.FromSlash(root), "steamapps", "common", name, filepath.FromSlash(rel))
			require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
			require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		}
		man[name] = manifest.Game{
			Files:      map[string]manifest.FileEntry{"<base>/**/*.sav": {}},
			InstallDir: map[string]manifest.InstallDirEntry{name: {}},
		}
	}

	cfg := &config.Config{
		Roots:   []types.Root{{Path: root, Store: manifest.StoreSteam}},
		Workers: 2,
	}
	cfg.Backup.Path = filepath.Join(t.TempDir(), "backups")
	cfg.Backup.Merge = true
	cfg.Backup.Format = "simple"
	cfg.Backup.Compression = "none"
	cfg.Backup.Retention = types.Retention{Full: 1, Differential: 4}
	cfg.Restore.Path = cfg.Backup.Path
	return cfg, man, root
}

func TestBackupRun(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
		"Beta":  {"saves/slot.sav": "beta save"},
	})

	r := NewRunner(cfg, man, nil)
	results, err := r.Backup(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, results.State)
	require.Len(t, results.Games, 2)
	assert.Equal(t, "Alpha", results.Games[0].Name)
	assert.Equal(t, "Beta", results.Games[1].Name)
	for _, g := range results.Games {
		assert.Equal(t, types.DecisionProcessed, g.Decision)
		assert.False(t, g.Failed())
		assert.Equal(t, types.ScanChangeNew, g.Scan.Change)
	}
	assert.Equal(t, 2, results.Status.TotalGames)
	assert.Equal(t, 2, results.Status.ProcessedGames)
	assert.Equal(t, int64(len("alpha save")+len("beta save")), results.Status.TotalBytes)
	assert.False(t, results.SomeGamesFailed())

	// A second run with unchanged saves classifies everything as same.
	results, err = NewRunner(cfg, man, nil).Backup(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, results.Status.ChangedGames.Same)
}

func TestBackupPreviewWritesNothing(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
	})

	r := NewRunner(cfg, man, nil)
	results, err := r.Backup(context.Background(), Options{Preview: true})
	require.NoError(t, err)

	assert.Equal(t, 1, results.Status.ProcessedGames)
	_, err = os.Stat(cfg.Backup.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestBackupIgnoredGames(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
		"Beta":  {"saves/slot.sav": "beta save"},
	})
	cfg.Backup.IgnoredGames = []string{"Beta"}

	results, err := NewRunner(cfg, man, nil).Backup(context.Background(), Options{})
	require.NoError(t, err)
	byName := map[string]GameResult{}
	for _, g := range results.Games {
		byName[g.Name] = g
	}
	assert.Equal(t, types.DecisionProcessed, byName["Alpha"].Decision)
	assert.Equal(t, types.DecisionIgnored, byName["Beta"].Decision)
	assert.Equal(t, 1, results.Status.ProcessedGames)
	assert.Equal(t, 2, results.Status.TotalGames)

	// Naming the disabled game explicitly overrides the flag.
	results, err = NewRunner(cfg, man, nil).Backup(context.Background(), Options{Games: []string{"Beta"}})
	require.NoError(t, err)
	require.Len(t, results.Games, 1)
	assert.Equal(t, types.DecisionProcessed, results.Games[0].Decision)
}

func TestBackupUnknownGames(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
	})

	_, err := NewRunner(cfg, man, nil).Backup(context.Background(), Options{Games: []string{"Alpha", "Nope"}})
	require.ErrorIs(t, err, ErrUnknownGames)
	assert.Contains(t, err.Error(), "Nope")
}

func TestCancelledBeforeRun(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
		"Beta":  {"saves/slot.sav": "beta save"},
	})

	r := NewRunner(cfg, man, nil)
	r.Cancel()
	results, err := r.Backup(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, results.State)
	for _, g := range results.Games {
		assert.Equal(t, types.DecisionCancelled, g.Decision)
	}
	assert.Equal(t, 0, results.Status.ProcessedGames)
	assert.Equal(t, 2, results.Status.TotalGames)

	// Nothing was written.
	_, err = os.Stat(filepath.Join(cfg.Backup.Path, "Alpha"))
	assert.True(t, os.IsNotExist(err))
}

func TestCancelledMidRun(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
	})
	// One worker makes tasks run sequentially in submission order.
	cfg.Workers = 1

	r := NewRunner(cfg, man, nil)
	started := 0
	results := r.fanOut(context.Background(), []string{"Alpha", "Beta", "Gamma"}, func(name string) GameResult {
		started++
		r.Cancel()
		scan := types.NewScanInfo(name)
		scan.Files["f"] = types.ScannedFile{Path: "f", Size: 1}
		return GameResult{Name: name, Scan: scan, Decision: types.DecisionProcessed}
	})

	assert.Equal(t, 1, started)
	assert.Equal(t, StateCancelled, results.State)
	assert.Equal(t, StateCancelled, r.State())

	require.Len(t, results.Games, 3)
	assert.Equal(t, "Alpha", results.Games[0].Name)
	assert.Equal(t, types.DecisionProcessed, results.Games[0].Decision)
	for _, g := range results.Games[1:] {
		assert.Equal(t, types.DecisionCancelled, g.Decision)
		assert.Empty(t, g.Scan.Files)
		assert.Nil(t, g.Info)
	}

	assert.Equal(t, 1, results.Status.ProcessedGames)
	assert.Equal(t, 3, results.Status.TotalGames)
}

func TestBackupThenRestore(t *testing.T) {
	cfg, man, root := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
	})

	_, err := NewRunner(cfg, man, nil).Backup(context.Background(), Options{})
	require.NoError(t, err)

	// Lose the live save, then restore it.
	savePath := filepath.Join(filepath.FromSlash(root), "steamapps", "common", "Alpha", "saves", "slot.sav")
	require.NoError(t, os.Remove(savePath))

	results, err := NewRunner(cfg, man, nil).Restore(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, results.Games, 1)
	assert.Equal(t, types.DecisionProcessed, results.Games[0].Decision)
	assert.False(t, results.Games[0].Failed())

	data, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Equal(t, "alpha save", string(data))
}

func TestRestoreNamedBackupNeedsOneGame(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
		"Beta":  {"saves/slot.sav": "beta save"},
	})
	_, err := NewRunner(cfg, man, nil).Backup(context.Background(), Options{})
	require.NoError(t, err)

	r := NewRunner(cfg, man, nil)
	_, err = r.Restore(context.Background(), Options{Backup: types.NamedBackup("backup-x")})
	assert.ErrorIs(t, err, ErrBackupIDRequiresOneGame)

	_, err = r.Restore(context.Background(), Options{
		Backup: types.NamedBackup("backup-x"),
		Games:  []string{"Alpha", "Beta"},
	})
	assert.ErrorIs(t, err, ErrBackupIDRequiresOneGame)
}

func TestRestoreInvalidBackupID(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
	})
	_, err := NewRunner(cfg, man, nil).Backup(context.Background(), Options{})
	require.NoError(t, err)

	results, err := NewRunner(cfg, man, nil).Restore(context.Background(), Options{
		Backup: types.NamedBackup("backup-nope"),
		Games:  []string{"Alpha"},
	})
	require.NoError(t, err)
	require.Len(t, results.Games, 1)
	g := results.Games[0]

	// The scan itself fails softly, but the task must surface the bad id.
	assert.Nil(t, g.Scan.Backup)
	assert.False(t, g.Scan.FoundAnything())
	assert.Len(t, g.Scan.AvailableBackups, 1)
	require.ErrorIs(t, g.Err, ErrInvalidBackupID)
	assert.Contains(t, g.Err.Error(), "backup-nope")
	assert.True(t, g.Failed())
	assert.True(t, results.SomeGamesFailed())

	// Nothing was written back.
	assert.Nil(t, g.Info)
}

func TestRestoreNothingStored(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
	})
	cfg.Restore.Path = filepath.Join(t.TempDir(), "empty")

	_, err := NewRunner(cfg, man, nil).Restore(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoGames)
}

func TestSortBySizeReversed(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Small": {"saves/slot.sav": "s"},
		"Large": {"saves/slot.sav": "a much larger save file"},
	})
	cfg.Sort = types.Sort{Key: types.SortBySize, Reversed: true}

	results, err := NewRunner(cfg, man, nil).Backup(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, results.Games, 2)
	assert.Equal(t, "Large", results.Games[0].Name)
	assert.Equal(t, "Small", results.Games[1].Name)
}

func TestDetectDuplicates(t *testing.T) {
	cfg, man, _ := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "shared content"},
		"Beta":  {"saves/slot.sav": "shared content"},
		"Gamma": {"saves/slot.sav": "unique content"},
	})

	results, err := NewRunner(cfg, man, nil).Backup(context.Background(), Options{})
	require.NoError(t, err)

	d := DetectDuplicates(results)
	assert.True(t, d.IsGameDuplicated("Alpha"))
	assert.True(t, d.IsGameDuplicated("Beta"))
	assert.False(t, d.IsGameDuplicated("Gamma"))
}

func TestCustomGamesAreMerged(t *testing.T) {
	cfg, man, root := fixture(t, map[string]map[string]string{
		"Alpha": {"saves/slot.sav": "alpha save"},
	})
	custom := filepath.Join(filepath.FromSlash(root), "custom", "mine.sav")
	require.NoError(t, os.MkdirAll(filepath.Dir(custom), 0o755))
	require.NoError(t, os.WriteFile(custom, []byte("custom save"), 0o644))

	cfg.CustomGames = []manifest.CustomGame{{
		Name:  "My Custom Game",
		Files: []string{paths.Normalize(custom)},
	}}

	r := NewRunner(cfg, man, nil)
	results, err := r.Backup(context.Background(), Options{Games: []string{"My Custom Game"}})
	require.NoError(t, err)
	require.Len(t, results.Games, 1)
	assert.True(t, results.Games[0].Scan.FoundAnything())

	// The runner's manifest copy must not leak into the caller's.
	_, ok := man["My Custom Game"]
	assert.False(t, ok)
}
