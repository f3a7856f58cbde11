package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/operation"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/report"
)

var errSomeGamesFailed = errors.New("some games failed")

var backupCmd = &cobra.Command{
	Use:   "backup [games...]",
	Short: "Back up game saves",
	Long: `Back up saves for the named games, or for every game in the
manifest when no games are given. Explicitly named games run even when
disabled in the configuration.`,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().BoolP("preview", "p", false, "scan and report without writing")
	backupCmd.Flags().String("path", "", "override the backup target directory")
	backupCmd.Flags().Bool("merge", false, "keep existing backups in the target")
	backupCmd.Flags().Bool("no-merge", false, "recreate the target from scratch")
	backupCmd.Flags().String("format", "", "container format (simple, zip)")
	backupCmd.Flags().String("compression", "", "zip compression (none, deflate, zstd)")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, runner, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if path, _ := cmd.Flags().GetString("path"); path != "" {
		cfg.Backup.Path = path
	}
	if merge, _ := cmd.Flags().GetBool("merge"); merge {
		cfg.Backup.Merge = true
	}
	if noMerge, _ := cmd.Flags().GetBool("no-merge"); noMerge {
		cfg.Backup.Merge = false
	}
	if format, _ := cmd.Flags().GetString("format"); format != "" {
		cfg.Backup.Format = format
	}
	if compression, _ := cmd.Flags().GetString("compression"); compression != "" {
		cfg.Backup.Compression = compression
	}
	preview, _ := cmd.Flags().GetBool("preview")

	results, err := runner.Backup(cmd.Context(), operation.Options{
		Games:   args,
		Preview: preview,
	})
	reporter := report.New(jsonMode(cmd), cfg.Redirects)
	if err != nil {
		if errors.Is(err, operation.ErrUnknownGames) {
			reporter.TripUnknownGames(args)
			fmt.Println(reporter.Render(cfg.Backup.Path))
		}
		return err
	}

	return renderRun(reporter, results, cfg.Backup.Path)
}

// renderRun prints a completed run and maps per-game failures to a non-zero
// exit.
func renderRun(reporter report.Reporter, results *operation.Results, location string) error {
	detector := operation.DetectDuplicates(results)
	for _, g := range results.Games {
		reporter.AddGame(g.Name, g.Scan, g.Info, g.Decision, detector)
	}
	fmt.Println(reporter.Render(location))

	if results.SomeGamesFailed() {
		return errSomeGamesFailed
	}
	return nil
}
