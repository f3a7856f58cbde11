package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/archive"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/paths"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ludusavi"), 0o755))
	if content != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ludusavi", "config.yaml"), []byte(content), 0o644))
	}
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func TestLoadDefaults(t *testing.T) {
	withConfigFile(t, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Roots)
	assert.True(t, cfg.Backup.Merge)
	assert.Equal(t, DefaultFormat, cfg.Backup.Format)
	assert.Equal(t, DefaultFullRetention, cfg.Backup.Retention.Full)
	assert.Equal(t, DefaultDifferentialRetention, cfg.Backup.Retention.Differential)
	assert.NotEmpty(t, cfg.Backup.Path)
	// Restore falls back to the backup path.
	assert.Equal(t, cfg.Backup.Path, cfg.Restore.Path)
	assert.Equal(t, "name", string(cfg.Sort.Key))
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	withConfigFile(t, `
roots:
  - path: /games/steam
    store: steam
  - path: /games/gog
    store: gog
backup:
  path: /backups
  merge: false
  format: zip
  compression: zstd
  retention:
    full: 2
    differential: 3
  ignored_games: ["Skipped Game"]
  toggled:
    Foo:
      files:
        /games/steam/foo/cache.bin: true
restore:
  path: /restores
redirects:
  - kind: restore
    source: /old
    target: /new
custom_games:
  - name: My Game
    files: ["<home>/my-game/*.sav"]
workers: 3
`)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Roots, 2)
	assert.Equal(t, manifest.StoreSteam, cfg.Roots[0].Store)
	assert.Equal(t, "/games/gog", cfg.Roots[1].Path)

	assert.Equal(t, "/backups", cfg.Backup.Path)
	assert.False(t, cfg.Backup.Merge)
	assert.Equal(t, "/restores", cfg.Restore.Path)
	assert.Equal(t, 2, cfg.Backup.Retention.Full)
	assert.Equal(t, 3, cfg.Backup.Retention.Differential)
	assert.Equal(t, 3, cfg.Workers)

	require.Len(t, cfg.Redirects, 1)
	assert.Equal(t, paths.RedirectRestore, cfg.Redirects[0].Kind)

	require.Len(t, cfg.CustomGames, 1)
	assert.Equal(t, "My Game", cfg.CustomGames[0].Name)

	assert.True(t, cfg.GameDisabledForBackup("Skipped Game"))
	assert.False(t, cfg.GameDisabledForBackup("Foo"))
	files, _ := cfg.BackupToggles("Foo")
	assert.True(t, files["/games/steam/foo/cache.bin"])

	settings, err := cfg.ArchiveSettings()
	require.NoError(t, err)
	assert.Equal(t, archive.FormatZip, settings.Format)
	assert.Equal(t, archive.CompressionZstd, settings.Compression)
}

func TestLoadEnvOverride(t *testing.T) {
	withConfigFile(t, "")
	t.Setenv("LUDUSAVI_WORKERS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 5, cfg.WorkerCount())
}

func TestWorkerCountAuto(t *testing.T) {
	cfg := &Config{}
	n := cfg.WorkerCount()
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, MaxAutoWorkers)
}

func TestArchiveSettingsInvalid(t *testing.T) {
	cfg := &Config{}
	cfg.Backup.Format = "tarball"
	_, err := cfg.ArchiveSettings()
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	withConfigFile(t, "")

	require.NoError(t, WriteDefault())

	dir, err := ConfigDir()
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backup:")

	// A second call must not overwrite.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("workers: 7\n"), 0o644))
	require.NoError(t, WriteDefault())
	data, err = os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "workers: 7\n", string(data))
}
