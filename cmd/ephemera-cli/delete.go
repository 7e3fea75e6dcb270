package main

import (
	"github.com/sagarc03/ephemera/clientcli"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id> [id...]",
	Short: "Delete uploads you own",
	Long: `Delete one or more of your uploads by id (see "list").

Examples:
  ephemera-cli delete 0b6c3c1e-7f55-4a57-9d0e-2f1f3c6b8a11
  ephemera-cli list -q --tag tmp | xargs ephemera-cli delete -q`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient()
		if err != nil {
			return err
		}

		results, err := client.Delete(cmd.Context(), args)
		if err != nil {
			return reportError(err)
		}

		if err := getFormatter().FormatDelete(cmd.OutOrStdout(), results); err != nil {
			return err
		}

		if clientcli.HasDeleteErrors(results) {
			return &exitError{code: 1}
		}
		return nil
	},
}
