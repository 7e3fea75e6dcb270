package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/ephemera"
	"github.com/sagarc03/ephemera/config"
	"github.com/sagarc03/ephemera/database"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Share local files",
	Long: `Ingest local files exactly as an HTTP upload would and print the
download token of each one.

The same upload policy applies: forbidden extensions are rejected, the
size limit is enforced and the expiry is clamped to the configured bounds.

Examples:
  # Share a file for the default number of days
  ephemera add report.pdf

  # Share for three days behind a password, tagged
  ephemera add --expires-in 3 --password --tags work,q3 report.pdf

  # Attribute the files to a user so they show up in their list
  ephemera add --owner alice notes.txt slides.key`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addExpiresIn int
	addPassword  bool
	addTags      string
	addOwner     string
	addQuiet     bool
)

func init() {
	addCmd.Flags().IntVarP(&addExpiresIn, "expires-in", "e", 0, "days until expiry (default: the maximum allowed)")
	addCmd.Flags().BoolVarP(&addPassword, "password", "p", false, "prompt for a password protecting the files")
	addCmd.Flags().StringVarP(&addTags, "tags", "t", "", "comma-separated tags")
	addCmd.Flags().StringVar(&addOwner, "owner", "", "user id owning the files (default: anonymous)")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "print tokens only")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	password := ""
	if addPassword {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

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

	expiresIn := ""
	if addExpiresIn > 0 {
		expiresIn = strconv.Itoa(addExpiresIn)
	}

	out := cmd.OutOrStdout()
	added := 0

	for _, path := range args {
		req := ephemera.IngestRequest{
			OriginalName:  filepath.Base(path),
			ExpiresInDays: expiresIn,
			Password:      password,
			Tags:          addTags,
			Owner:         ephemera.OwnedBy(addOwner),
		}

		obj, addErr := addFile(cmd, service, path, req)
		if addErr != nil {
			return fmt.Errorf("add %s: %w", path, addErr)
		}
		added++

		if addQuiet {
			fmt.Fprintln(out, obj.Token)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\texpires %s\n", obj.Token, obj.OriginalName, obj.ExpiresAt.Format("2006-01-02 15:04 MST"))
	}

	slog.Info("add complete", "added", added)
	return nil
}

func addFile(cmd *cobra.Command, service *ephemera.Service, path string, req ephemera.IngestRequest) (ephemera.StoredObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return ephemera.StoredObject{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ephemera.StoredObject{}, err
	}
	if info.IsDir() {
		return ephemera.StoredObject{}, errors.New("is a directory")
	}

	return service.Ingest(cmd.Context(), req, f)
}

func promptPassword() (string, error) {
	prompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return errors.New("password cannot be empty")
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
