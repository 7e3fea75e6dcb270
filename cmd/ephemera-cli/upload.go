package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/sagarc03/ephemera/clientcli"
	"github.com/spf13/cobra"
)

var (
	uploadRecursive   bool
	uploadContentType string
	uploadExpiresIn   int
	uploadPassword    bool
	uploadTags        []string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file and print its share token",
	Long: `Upload a file and print its share token.

With --token the file is owned by that user and shows up in "list".

Examples:
  ephemera-cli upload ./report.pdf
  ephemera-cli upload --expires-in 1 --password ./secret.zip
  ephemera-cli upload -r --tags q1,reports ./exports/
  ephemera-cli upload -q ./notes.txt | pbcopy`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload every file under a directory")
	uploadCmd.Flags().StringVar(&uploadContentType, "content-type", "", "override the detected content type")
	uploadCmd.Flags().IntVar(&uploadExpiresIn, "expires-in", 0, "lifetime in days (default: server maximum)")
	uploadCmd.Flags().BoolVar(&uploadPassword, "password", false, "prompt for a download password")
	uploadCmd.Flags().StringSliceVar(&uploadTags, "tags", nil, "comma separated tags")
}

func runUpload(cmd *cobra.Command, args []string) error {
	client, err := getClient(clientcli.WithTimeout(0))
	if err != nil {
		return err
	}

	opts := clientcli.UploadOptions{
		LocalPath:   args[0],
		ContentType: uploadContentType,
		ExpiresIn:   uploadExpiresIn,
		Tags:        uploadTags,
		Recursive:   uploadRecursive,
	}

	if uploadPassword {
		opts.Password, err = promptPassword("Download password")
		if err != nil {
			return err
		}
	}

	results, err := client.Upload(cmd.Context(), opts)
	if err != nil {
		return reportError(err)
	}

	if err := getFormatter().FormatUpload(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return &exitError{code: 1}
		}
	}

	return nil
}

func promptPassword(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return errors.New("password must not be empty")
			}
			return nil
		},
	}

	password, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}
