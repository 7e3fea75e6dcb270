package main

import (
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <share-token>",
	Short: "Show a shared file's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient()
		if err != nil {
			return err
		}

		info, err := client.Metadata(cmd.Context(), args[0])
		if err != nil {
			return reportError(err)
		}

		return getFormatter().FormatInfo(cmd.OutOrStdout(), info)
	},
}
