package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hukadan/ludusavi/pkg/ludusavi/operation"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/report"
	"github.com/Hukadan/ludusavi/pkg/ludusavi/types"
)

var backupsCmd = &cobra.Command{
	Use:   "backups [games...]",
	Short: "List stored backups",
	Long: `List the stored backup generations for the named games, or for
every stored game when no games are given. With --comment, attach a note
to one generation of a single game instead.`,
	RunE: runBackups,
}

func init() {
	backupsCmd.Flags().String("path", "", "override the backup directory")
	backupsCmd.Flags().StringP("backup", "b", "", "select a backup id (with --comment)")
	backupsCmd.Flags().String("comment", "", "attach a comment to the selected backup")
	rootCmd.AddCommand(backupsCmd)
}

func runBackups(cmd *cobra.Command, args []string) error {
	cfg, runner, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if path, _ := cmd.Flags().GetString("path"); path != "" {
		cfg.Restore.Path = path
	}

	if comment, _ := cmd.Flags().GetString("comment"); comment != "" {
		if len(args) != 1 {
			return errors.New("--comment requires exactly one game")
		}
		id, _ := cmd.Flags().GetString("backup")
		return runner.SetBackupComment(args[0], types.NamedBackup(id), comment)
	}

	results, err := runner.Backups(cmd.Context(), operation.Options{Games: args})
	reporter := report.New(jsonMode(cmd), cfg.Redirects)
	if err != nil {
		if errors.Is(err, operation.ErrUnknownGames) {
			reporter.TripUnknownGames(args)
			fmt.Println(reporter.Render(cfg.Restore.Path))
		}
		return err
	}

	for _, g := range results.Games {
		reporter.AddBackups(g.Name, g.Scan)
	}
	fmt.Println(reporter.Render(cfg.Restore.Path))
	return nil
}
