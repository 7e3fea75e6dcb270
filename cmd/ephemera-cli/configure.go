package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/sagarc03/ephemera/clientcli"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage server profiles",
	Long: `Manage server profiles.

Profiles save an endpoint and bearer token per server. Pick one with
--profile or EPHEMERA_PROFILE; otherwise the default profile is used.

Profiles are stored in ~/.ephemera/client.yaml unless --config or
EPHEMERA_CLIENT_CONFIG points elsewhere.`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Long:  `List profiles. The default profile is marked with an asterisk (*).`,
	RunE:  runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile interactively",
	Long: `Add or update a profile interactively.

You will be prompted for the endpoint URL, an optional bearer token and
whether the profile should be the default. The endpoint's health check is
probed before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile",
	Long: `Show a profile, or the default one when no name is given.

Tokens are masked unless --show-secrets is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureShow,
}

var showSecrets bool

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
	configureCmd.AddCommand(configureShowCmd)

	configureShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show tokens")
	configureListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show tokens")
}

func runConfigureList(cmd *cobra.Command, _ []string) error {
	cfg, err := clientcli.LoadOrEmpty(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Profiles) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No profiles configured.")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'ephemera-cli configure add <name>' to create one.")
		return nil
	}

	return getFormatter().FormatProfileList(cmd.OutOrStdout(), cfg.Profiles, cfg.DefaultName(), showSecrets)
}

// confirm asks a yes/no question; anything but yes, including Ctrl+C, is no.
func confirm(label string) bool {
	_, err := (&promptui.Prompt{Label: label, IsConfirm: true}).Run()
	return err == nil
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()
	out := cmd.OutOrStdout()

	cfg, err := clientcli.LoadOrEmpty(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	p := clientcli.Profile{Name: args[0]}
	endpointDefault := clientcli.DefaultEndpoint
	if existing, lookupErr := cfg.Lookup(p.Name); lookupErr == nil {
		if !confirm(fmt.Sprintf("Profile '%s' already exists. Update it", p.Name)) {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		endpointDefault = existing.Endpoint
	}

	p.Endpoint, err = (&promptui.Prompt{
		Label:    "Endpoint URL",
		Default:  endpointDefault,
		Validate: clientcli.ValidateEndpoint,
	}).Run()
	if err != nil {
		return handlePromptError(err)
	}

	p.Token, err = (&promptui.Prompt{Label: "Bearer token (optional)", Mask: '*'}).Run()
	if err != nil {
		return handlePromptError(err)
	}

	if len(cfg.Profiles) > 0 && cfg.DefaultName() != p.Name {
		p.Default = confirm("Set as default profile")
	}

	_, _ = fmt.Fprint(out, "Testing connection... ")
	if connErr := testServerConnection(cmd.Context(), p.Endpoint); connErr != nil {
		_, _ = fmt.Fprintf(out, "FAILED\nWarning: could not reach server: %v\n", connErr)
		if !confirm("Save profile anyway") {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	} else {
		_, _ = fmt.Fprintln(out, "OK")
	}

	created, err := cfg.Upsert(p)
	if err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	verb := "updated"
	if created {
		verb = "added"
	}
	_, _ = fmt.Fprintf(out, "Profile '%s' %s.\n", p.Name, verb)
	if cfg.DefaultName() == p.Name {
		_, _ = fmt.Fprintln(out, "It is the default profile.")
	}

	return nil
}

func runConfigureRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err = cfg.Lookup(name); err != nil {
		return err
	}

	if !confirm(fmt.Sprintf("Remove profile '%s'", name)) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
		return nil
	}

	if err := cfg.Remove(name); err != nil {
		return err
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]
	configPath := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.SetDefault(name); err != nil {
		return err
	}

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	cfg, err := clientcli.LoadConfigFile(getConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := cfg.Lookup(name)
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileShow(cmd.OutOrStdout(), *p, p.Name == cfg.DefaultName(), showSecrets)
}

// testServerConnection probes the server's health endpoint.
func testServerConnection(ctx context.Context, endpointURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := clientcli.New(&clientcli.Config{Endpoint: endpointURL}, clientcli.WithTimeout(5*time.Second))
	if err != nil {
		return err
	}
	return client.Ping(ctx)
}

func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
