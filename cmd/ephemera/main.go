package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/ephemera/config"
)

var version = "dev"

var configFiles []string

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "ephemera",
	Short:   "Ephemeral file sharing server",
	Long: `Ephemera stores uploaded files for a limited number of days and hands
out an unguessable token for each one. Anyone with the token can read the
file until it expires; optional passwords and owner-only deletion are
supported.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&configFiles, "config", nil, "config file path, repeatable; later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("env", "", "environment: dev, prod (env: EPHEMERA_ENV)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: EPHEMERA_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: EPHEMERA_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: ephemera.db, env: EPHEMERA_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-type", "", "blob storage: filesystem, s3 (default: filesystem, env: EPHEMERA_STORAGE_TYPE)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./uploads, env: EPHEMERA_STORAGE_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
