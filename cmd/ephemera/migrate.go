package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the registry tables",
	Long: `Create the objects and tags tables and their indexes if they do not
exist, then check that the schema matches what the server expects.

Running it more than once is harmless.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	db, err := database.Open(cmd.Context(), cfg.Database, true)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("migration complete",
		"type", cfg.Database.Type,
		"objects", cfg.Database.Tables.Objects,
		"tags", cfg.Database.Tables.Tags,
	)
	return nil
}
