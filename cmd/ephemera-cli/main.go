package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sagarc03/ephemera/clientcli"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	token      string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "ephemera-cli",
	Version: version,
	Short:   "Client for an ephemera file sharing server",
	Long: `ephemera-cli talks to an ephemera server over HTTP.

Anyone holding a share token can inspect and download a file. Listing and
deleting require a bearer token, which an operator issues with
"ephemera token <user-id>".

Connection settings are resolved in order: profile file, environment
(EPHEMERA_ENDPOINT, EPHEMERA_TOKEN), then flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "profile file (default: ~/.ephemera/client.yaml, env: EPHEMERA_CLIENT_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: EPHEMERA_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: "+clientcli.DefaultEndpoint+")")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print only tokens or ids")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// buildConfig merges the profile file, environment and flags, later sources
// winning. A missing default profile file is not an error.
func buildConfig() (*clientcli.Config, error) {
	var configs []*clientcli.Config

	profileName := profile
	if profileName == "" {
		profileName = clientcli.ProfileFromEnv()
	}

	if configPath := getConfigPath(); configPath != "" {
		configFile, err := clientcli.LoadConfigFile(configPath)
		switch {
		case err == nil:
			p, profileErr := configFile.Lookup(profileName)
			if profileErr != nil && (profileName != "" || !errors.Is(profileErr, clientcli.ErrNoProfiles)) {
				return nil, profileErr
			}
			configs = append(configs, clientcli.ConfigFromProfile(p))
		case profileName != "" || cfgFile != "":
			return nil, err
		}
	}

	configs = append(configs,
		clientcli.ConfigFromEnv(),
		&clientcli.Config{Endpoint: endpoint, Token: token},
	)

	return clientcli.MergeConfig(configs...), nil
}

func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

func getClient(opts ...clientcli.Option) (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return clientcli.New(cfg, opts...)
}

// reportError prints err with the active formatter and returns it so cobra
// exits non-zero.
func reportError(err error) error {
	_ = getFormatter().FormatError(os.Stderr, err)
	return &exitError{code: 1}
}

// exitError carries an exit code without cobra printing a second message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return ""
}
