package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/ephemera/auth"
	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/keybackend"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Long: `Sign a bearer token whose subject is the given user id, using the
active key from auth.keys. Use it to try the owner-only routes without an
external identity provider:

  curl -H "Authorization: Bearer $(ephemera token alice)" localhost:3000/files/my`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

var tokenTTL time.Duration

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	store, err := keybackend.NewSecretStore(cfg.Auth.Keys)
	if err != nil {
		return fmt.Errorf("load signing keys: %w", err)
	}

	key, err := keybackend.SigningKey(store, cfg.Auth.Keys.Active)
	if err != nil {
		return err
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	token, err := auth.NewIssuer(key.KeyID, key.Secret, cfg.Auth.Issuer, ttl).Issue(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
