package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/olgasafonova/confluence-mcp-server/internal/config"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the Confluence connection and credentials, then exit",
		Long: `Loads the configuration, performs one low-cost read against Confluence and
reports whether the site, credentials and API version work together.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(root.logLevel)
			if err != nil {
				return err
			}
			cfg, client, err := bootstrap(root, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.VerifyConnection(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("Connected to %s (API %s)\n", cfg.BaseURL(), cfg.Version())
			return nil
		},
	}
}

type configureOptions struct {
	sets           []string
	yes            bool
	print          bool
	nonInteractive bool
}

func newConfigureCmd(root *rootOptions) *cobra.Command {
	opts := &configureOptions{}

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Create or edit the configuration file interactively or via flags",
		Long: `Interactively create or edit the server configuration file (` + config.DefaultPath + ` by default).

Features:
- Interactive prompts for the Confluence site, account and API version
- Apply key=value overrides via --set (e.g. --set confluence.api_version=v2)
- Non-interactive scripting with --non-interactive --yes --set ...
- Print resulting YAML with --print instead of writing

The file is written with 0600 permissions because it holds the API token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, root.configPath, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Set a config field using dotted path (e.g. confluence.domain=example.atlassian.net)")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Automatically confirm saving changes")
	cmd.Flags().BoolVar(&opts.print, "print", false, "Print resulting YAML instead of writing to file")
	cmd.Flags().BoolVar(&opts.nonInteractive, "non-interactive", false, "Disable interactive prompts (use with --set)")
	return cmd
}

func runConfigure(cmd *cobra.Command, path string, opts *configureOptions) error {
	if path == "" {
		path = config.DefaultPath
	}
	cfg, existed, err := loadOrInitConfig(path)
	if err != nil {
		return err
	}

	// Flag mutations first, then prompts on top
	if err := applySetOperations(cfg, opts.sets); err != nil {
		return err
	}

	interactive := !opts.nonInteractive
	if interactive {
		if err := promptConfluence(cmd.OutOrStdout(), cfg, existed); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}

	if opts.print {
		cmd.Print(string(out))
		return nil
	}

	if !opts.yes && interactive {
		confirm := false
		prompt := &survey.Confirm{Message: "Save configuration to " + path + "?", Default: true}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			cmd.Println("Aborted (no changes saved).")
			return nil
		}
	}

	if err := writeConfigFile(path, out); err != nil {
		return err
	}
	cmd.Printf("Configuration saved to %s\n", path)
	return nil
}

// loadOrInitConfig reads path without env overlay so secrets from the
// environment are never written to disk.
func loadOrInitConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), false, nil
		}
		return nil, false, err
	}
	cfg, err := config.Read(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

func writeConfigFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func applySetOperations(cfg *config.Config, sets []string) error {
	for _, s := range sets {
		key, val, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("invalid --set value '%s' (expected key=value)", s)
		}
		if err := cfg.Set(strings.TrimSpace(key), val); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func promptConfluence(w io.Writer, cfg *config.Config, existed bool) error {
	fmt.Fprintln(w, "Interactive configuration editor. Press Enter to accept defaults.")
	if existed {
		fmt.Fprintln(w, "Loaded existing configuration.")
	}

	qs := []*survey.Question{
		{
			Name:     "domain",
			Prompt:   &survey.Input{Message: "Confluence site (e.g. example.atlassian.net)", Default: cfg.Confluence.Domain},
			Validate: survey.Required,
		},
		{
			Name:     "email",
			Prompt:   &survey.Input{Message: "Account email", Default: cfg.Confluence.Email},
			Validate: survey.Required,
		},
		{Name: "api_token", Prompt: &survey.Password{Message: "API token (leave blank to keep)"}},
		{
			Name: "api_version",
			Prompt: &survey.Select{
				Message: "REST API version",
				Options: []string{string(config.APIv1), string(config.APIv2)},
				Default: string(cfg.Version()),
			},
		},
	}
	answers := struct {
		Domain     string `survey:"domain"`
		Email      string `survey:"email"`
		APIToken   string `survey:"api_token"`
		APIVersion string `survey:"api_version"`
	}{}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}

	cfg.Confluence.Domain = strings.TrimSpace(answers.Domain)
	cfg.Confluence.Email = strings.TrimSpace(answers.Email)
	if answers.APIToken != "" { // keep existing if blank
		cfg.Confluence.APIToken = answers.APIToken
	}
	cfg.Confluence.APIVersion = config.APIVersion(answers.APIVersion)
	return nil
}
