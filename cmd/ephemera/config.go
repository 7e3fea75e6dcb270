package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/keybackend"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, config files, EPHEMERA_
environment variables and flags have been merged, as YAML.

Secrets are hidden by default; use --show-secrets to reveal them.`,
	RunE: runConfig,
}

var configShowSecrets bool

func init() {
	configCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "show secret values")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	out := *cfg
	if !configShowSecrets {
		out = redactSecrets(out)
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// redactSecrets returns a copy of cfg with credentials masked. Slices are
// cloned so the loaded config is left untouched.
func redactSecrets(cfg config.Config) config.Config {
	if cfg.Storage.S3.SecretKey != "" {
		cfg.Storage.S3.SecretKey = redacted
	}
	if cfg.Reaper.Lock.Redis.Password != "" {
		cfg.Reaper.Lock.Redis.Password = redacted
	}

	cfg.Auth.Keys.Inline = slices.Clone(cfg.Auth.Keys.Inline)
	for i := range cfg.Auth.Keys.Inline {
		cfg.Auth.Keys.Inline[i] = keybackend.KeyPair{KeyID: cfg.Auth.Keys.Inline[i].KeyID, Secret: redacted}
	}

	return cfg
}
