package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/config"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/hashcache"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/logging"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/manifest"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/operation"
)

var rootCmd = &cobra.Command{
	Use:   "ludusavi",
	Short: "Back up and restore PC game saves",
	Long: `Ludusavi scans your system for game save data using a declarative
manifest of path patterns, backs it up with differential storage and
retention, and restores it later.

Examples:
  ludusavi backup                    # Back up all known games
  ludusavi backup --preview          # Scan and report without writing
  ludusavi backup "Celeste"          # Back up one game
  ludusavi restore                   # Restore every stored game
  ludusavi restore -b <id> "Celeste" # Restore a specific generation
  ludusavi backups                   # List stored backups`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("api", "a", false, "output JSON format")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "echo debug logs to the console")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// jsonMode reports whether machine-readable output was requested.
func jsonMode(cmd *cobra.Command) bool {
	api, _ := cmd.Flags().GetBool("api")
	return api
}

// bootstrap loads configuration, initializes logging, and builds the runner.
// It returns a cleanup function that must be called before exit.
func bootstrap(cmd *cobra.Command) (*config.Config, *operation.Runner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	logCfg := logging.Config{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		Components: cfg.Logging.Components,
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.ConsoleLevel = "debug"
	} else {
		logCfg.ConsoleLevel = cfg.Logging.ConsoleLevel
	}
	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	log := logging.Get("cli")

	man, err := manifest.Load(cfg.Manifest.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Close()
			return nil, nil, nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		log.Warn("manifest not found, relying on custom games", "path", cfg.Manifest.Path)
		man = manifest.Manifest{}
	}

	cache, err := hashcache.Open(cfg.Cache.Path)
	if err != nil {
		log.Warn("hash cache unavailable", "path", cfg.Cache.Path, "error", err)
		cache = nil
	}

	runner := operation.NewRunner(cfg, man, cache)

	// A first interrupt finishes in-flight games and skips the rest; a
	// second one kills the process.
	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupts
		log.Warn("interrupted, cancelling remaining games")
		runner.Cancel()
		<-interrupts
		os.Exit(1)
	}()

	cleanup := func() {
		signal.Stop(interrupts)
		_ = cache.Close()
		_ = logging.Close()
	}
	return cfg, runner, cleanup, nil
}
