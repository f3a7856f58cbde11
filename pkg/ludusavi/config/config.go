package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/archive"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/paths"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	Components   map[string]string `mapstructure:"components"`
	ConsoleLevel string            `mapstructure:"console_level"`
}

// GameToggles holds the paths and registry keys a user switched off for one
// game.
type GameToggles struct {
	Files    map[string]bool `mapstructure:"files"`
	Registry map[string]bool `mapstructure:"registry"`
}

// BackupConfig configures the backup direction.
type BackupConfig struct {
	// Path is the backup target root.
	Path string `mapstructure:"path"`

	// Merge preserves existing backups in the target; false recreates it.
	Merge bool `mapstructure:"merge"`

	Format           string `mapstructure:"format"`
	Compression      string `mapstructure:"compression"`
	CompressionLevel int    `mapstructure:"compression_level"`

	Retention types.Retention `mapstructure:"retention"`

	// IgnoredGames are administratively disabled for backup. They still
	// run when named explicitly.
	IgnoredGames []string `mapstructure:"ignored_games"`

	// Excluded paths are dropped from every scan.
	Excluded []string `mapstructure:"excluded"`

	// Toggled holds per-game ignore toggles, keyed by game name.
	Toggled map[string]GameToggles `mapstructure:"toggled"`
}

// RestoreConfig configures the restore direction.
type RestoreConfig struct {
	// Path is the backup source root; empty falls back to backup.path.
	Path string `mapstructure:"path"`

	IgnoredGames []string `mapstructure:"ignored_games"`

	Toggled map[string]GameToggles `mapstructure:"toggled"`
}

// Config represents the application configuration.
type Config struct {
	Manifest struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"manifest"`

	Roots []types.Root `mapstructure:"roots"`

	Backup  BackupConfig  `mapstructure:"backup"`
	Restore RestoreConfig `mapstructure:"restore"`

	Redirects []paths.RedirectRule `mapstructure:"redirects"`

	CustomGames []manifest.CustomGame `mapstructure:"custom_games"`

	Sort types.Sort `mapstructure:"sort"`

	// Workers bounds scan concurrency; zero picks an automatic count.
	Workers int `mapstructure:"workers"`

	Cache struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"cache"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/ludusavi/config.yaml
//   - $HOME/.config/ludusavi/config.yaml
//
// Environment variables are prefixed with LUDUSAVI_ (e.g.,
// LUDUSAVI_BACKUP_PATH).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "ludusavi"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "ludusavi"))

	v.SetEnvPrefix("LUDUSAVI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, homeDir)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, expand := range []*string{&cfg.Backup.Path, &cfg.Restore.Path, &cfg.Manifest.Path, &cfg.Cache.Path} {
		if strings.HasPrefix(*expand, "~") {
			*expand = filepath.Join(homeDir, (*expand)[1:])
		}
	}
	if cfg.Restore.Path == "" {
		cfg.Restore.Path = cfg.Backup.Path
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault("manifest.path", filepath.Join(xdg.ConfigHome, "ludusavi", "manifest.yaml"))
	v.SetDefault("backup.path", filepath.Join(homeDir, "ludusavi-backup"))
	v.SetDefault("backup.merge", true)
	v.SetDefault("backup.format", DefaultFormat)
	v.SetDefault("backup.compression", DefaultCompression)
	v.SetDefault("backup.retention.full", DefaultFullRetention)
	v.SetDefault("backup.retention.differential", DefaultDifferentialRetention)
	v.SetDefault("restore.path", "")
	v.SetDefault("sort.key", DefaultSortKey)
	v.SetDefault("sort.reversed", false)
	v.SetDefault("workers", 0)
	v.SetDefault("cache.path", filepath.Join(xdg.CacheHome, "ludusavi", "hashes"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use the default log path
	v.SetDefault("logging.components", map[string]string{
		"backup":  "info",
		"restore": "info",
		"scan":    "info",
	})
}

// ArchiveSettings validates and returns the container settings for new
// backups.
func (c *Config) ArchiveSettings() (archive.Settings, error) {
	format, err := archive.ParseFormat(c.Backup.Format)
	if err != nil {
		return archive.Settings{}, err
	}
	compression, err := archive.ParseCompression(c.Backup.Compression)
	if err != nil {
		return archive.Settings{}, err
	}
	return archive.Settings{
		Format:      format,
		Compression: compression,
		Level:       c.Backup.CompressionLevel,
	}, nil
}

// WorkerCount resolves the scan concurrency bound.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := runtime.NumCPU()
	if n > MaxAutoWorkers {
		n = MaxAutoWorkers
	}
	return n
}

// GameDisabledForBackup reports whether the game is administratively
// disabled for backup.
func (c *Config) GameDisabledForBackup(name string) bool {
	return contains(c.Backup.IgnoredGames, name)
}

// GameDisabledForRestore reports whether the game is administratively
// disabled for restore.
func (c *Config) GameDisabledForRestore(name string) bool {
	return contains(c.Restore.IgnoredGames, name)
}

// BackupToggles returns the per-game ignore toggles for the backup
// direction.
func (c *Config) BackupToggles(name string) (files, reg map[string]bool) {
	t := c.Backup.Toggled[name]
	return t.Files, t.Registry
}

// RestoreToggles returns the per-game ignore toggles for the restore
// direction.
func (c *Config) RestoreToggles(name string) (files, reg map[string]bool) {
	t := c.Restore.Toggled[name]
	return t.Files, t.Registry
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "ludusavi"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ludusavi"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	defaultConfig := fmt.Sprintf(`# Ludusavi configuration

# Where the save manifest is stored.
manifest:
  path: %s

# Directories to scan for game saves, tagged with the store that owns them.
roots: []
#  - path: ~/.steam/steam
#    store: steam

backup:
  path: %s
  merge: true
  format: %s          # simple or zip
  compression: %s    # none, deflate, or zstd
  retention:
    full: %d
    differential: %d

restore:
  path: ""  # Empty uses backup.path

# Path prefix rewrites applied while backing up or restoring.
redirects: []
#  - kind: restore
#    source: /old/location
#    target: /new/location

custom_games: []

sort:
  key: %s
  reversed: false

# Scan concurrency; 0 picks an automatic count.
workers: 0

logging:
  level: info
`,
		filepath.Join(xdg.ConfigHome, "ludusavi", "manifest.yaml"),
		filepath.Join(homeDir, "ludusavi-backup"),
		DefaultFormat, DefaultCompression,
		DefaultFullRetention, DefaultDifferentialRetention,
		DefaultSortKey,
	)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
