package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/database"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <id1> [id2] ...",
	Short: "Take down files regardless of owner",
	Long: `Delete files by id, bypassing the ownership check that applies to the
HTTP delete route. Anonymous uploads, which no user can delete, can only be
taken down this way or by expiring.

The blob is removed first, then the registry entry.

Examples:
  # Take down one file
  ephemera remove 0b6c3c1e-7f55-4a57-9d0e-2f1f3c6b8a11

  # Remove quietly
  ephemera remove -q 0b6c3c1e-7f55-4a57-9d0e-2f1f3c6b8a11`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var removeQuiet bool

func init() {
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, parseErr := uuid.Parse(arg)
		if parseErr != nil {
			return fmt.Errorf("invalid id %q: %w", arg, parseErr)
		}
		ids = append(ids, id)
	}

	ctx := cmd.Context()

	db, err := database.Open(ctx, cfg.Database, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	defer closeBlobs()
	if err != nil {
		return err
	}

	service, err := newService(cfg, db.GetRepo(), blobs, nil)
	if err != nil {
		return err
	}

	removed := 0
	notFound := 0

	for _, id := range ids {
		removeErr := service.Remove(ctx, id)
		if errors.Is(removeErr, ephemera.ErrNotFound) {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "id", id)
			}
			continue
		}
		if removeErr != nil {
			return fmt.Errorf("remove %s: %w", id, removeErr)
		}
		removed++
		if !removeQuiet {
			slog.Info("removed", "id", id)
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}
