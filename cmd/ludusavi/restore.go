package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/operation"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/report"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [games...]",
	Short: "Restore game saves from backups",
	Long: `Restore saves for the named games, or for every stored game when
no games are given. By default the latest generation is restored; use
--backup with exactly one game to pick an older one.`,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolP("preview", "p", false, "scan and report without writing")
	restoreCmd.Flags().String("path", "", "override the restore source directory")
	restoreCmd.Flags().StringP("backup", "b", "", "restore a specific backup id")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, runner, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if path, _ := cmd.Flags().GetString("path"); path != "" {
		cfg.Restore.Path = path
	}
	preview, _ := cmd.Flags().GetBool("preview")
	backupID, _ := cmd.Flags().GetString("backup")

	results, err := runner.Restore(cmd.Context(), operation.Options{
		Games:   args,
		Preview: preview,
		Backup:  types.NamedBackup(backupID),
	})
	reporter := report.New(jsonMode(cmd), cfg.Redirects)
	if err != nil {
		if errors.Is(err, operation.ErrUnknownGames) {
			reporter.TripUnknownGames(args)
			fmt.Println(reporter.Render(cfg.Restore.Path))
		}
		return err
	}

	return renderRun(reporter, results, cfg.Restore.Path)
}
