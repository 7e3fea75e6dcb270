package main

import (
	"github.com/spf13/cobra"
)

var listTag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your live uploads",
	Long: `List the live uploads owned by the bearer token's user, newest first.

Examples:
  ephemera-cli list
  ephemera-cli list --tag reports
  ephemera-cli list -q | xargs ephemera-cli delete`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := getClient()
		if err != nil {
			return err
		}

		items, err := client.List(cmd.Context(), listTag)
		if err != nil {
			return reportError(err)
		}

		return getFormatter().FormatList(cmd.OutOrStdout(), items)
	},
}

func init() {
	listCmd.Flags().StringVar(&listTag, "tag", "", "only files carrying this tag")
}
