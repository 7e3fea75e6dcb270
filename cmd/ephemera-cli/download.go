package main

import (
	"errors"
	"io"

	"github.com/sagarc03/ephemera/clientcli"
	"github.com/spf13/cobra"
)

var (
	downloadOutput   string
	downloadStdout   bool
	downloadPassword bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <share-token> [local-path]",
	Short: "Download a shared file",
	Long: `Download a shared file.

Without a local path the file is saved under the name it was uploaded with.
If the file is password protected and --password was not given, the
password is prompted for after the server asks for it.

Examples:
  ephemera-cli download AbCdEfGhIjKlMnOpQrStUv
  ephemera-cli download AbCdEfGhIjKlMnOpQrStUv ./copy.pdf
  ephemera-cli download --stdout AbCdEfGhIjKlMnOpQrStUv | tar x`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
	downloadCmd.Flags().BoolVar(&downloadPassword, "password", false, "prompt for the download password")
}

func runDownload(cmd *cobra.Command, args []string) error {
	opts := clientcli.DownloadOptions{Token: args[0]}
	if len(args) > 1 {
		opts.LocalPath = args[1]
	}
	if downloadOutput != "" {
		opts.LocalPath = downloadOutput
	}
	if downloadStdout {
		opts.LocalPath = "-"
	}

	client, err := getClient(clientcli.WithTimeout(0))
	if err != nil {
		return err
	}

	if downloadPassword {
		if opts.Password, err = promptPassword("Password"); err != nil {
			return err
		}
	}

	result, reader, err := client.Download(cmd.Context(), opts)
	if errors.Is(err, clientcli.ErrUnauthorized) && opts.Password == "" {
		if opts.Password, err = promptPassword("Password"); err != nil {
			return err
		}
		result, reader, err = client.Download(cmd.Context(), opts)
	}
	if err != nil {
		return reportError(err)
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		if _, err := io.Copy(cmd.OutOrStdout(), reader); err != nil {
			return err
		}
		if jsonOutput {
			return getFormatter().FormatDownload(cmd.ErrOrStderr(), result)
		}
		return nil
	}

	return getFormatter().FormatDownload(cmd.OutOrStdout(), result)
}
