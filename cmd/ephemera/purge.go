package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/database"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge expired files once",
	Long: `Run a single reaper pass: delete the blob and the registry entry of
every file whose expiry has passed.

The server does this on its own schedule; purge is for deployments that
disable the built-in reaper and run it from cron instead.

Examples:
  # Show what would be purged
  ephemera purge --dry-run

  # Purge without asking
  ephemera purge --yes`,
	RunE: runPurge,
}

var (
	purgeDryRun bool
	purgeYes    bool
)

func init() {
	purgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "list expired files without deleting them")
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, err := database.Open(ctx, cfg.Database, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	repo := db.GetRepo()

	expired, err := repo.ListExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("list expired: %w", err)
	}

	if len(expired) == 0 {
		slog.Info("nothing to purge")
		return nil
	}

	if purgeDryRun {
		for _, obj := range expired {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n",
				obj.ID, obj.ExpiresAt.Format(time.RFC3339), obj.OriginalName, obj.SizeBytes)
		}
		slog.Info("dry run complete", "expired", len(expired))
		return nil
	}

	if !purgeYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Permanently delete %d expired file(s)", len(expired)),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			if errors.Is(promptErr, promptui.ErrInterrupt) {
				return promptErr
			}
			slog.Info("purge cancelled")
			return nil
		}
	}

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	defer closeBlobs()
	if err != nil {
		return err
	}

	locker, closeLocker, err := openLocker(ctx, cfg)
	defer closeLocker()
	if err != nil {
		return err
	}

	purged, err := newReaper(cfg, repo, blobs, nil, locker).Run(ctx)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	slog.Info("purge complete", "purged", purged)
	return nil
}
