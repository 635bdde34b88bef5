package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/atomhq/atomgw/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK (%d channel(s))\n", len(cfg.Channels))
			for _, ch := range cfg.Channels {
				state := "enabled"
				if !ch.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "  %s (%s, %s) -> %s\n", ch.ID, ch.Type, state, ch.Endpoint.BaseURL())
			}
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var (
		workspace string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively bootstrap a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(workspace, config.DefaultFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg, err := runInitWizard()
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Review the file, export the referenced secrets, then run: atomgw start")
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "Workspace directory to write the config into")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

// runInitWizard collects the minimal configuration interactively. Secrets
// are referenced by environment variable name, never stored inline.
func runInitWizard() (*config.Config, error) {
	var (
		channelType    = string(config.ChannelTelegram)
		channelID      string
		portStr        = "8131"
		bearerTokenEnv = "ATOM_GATEWAY_TOKEN"

		botTokenEnv      = "TELEGRAM_BOT_TOKEN"
		webhookBaseURL   string
		webhookSecretEnv string
		allowedChatIDs   string

		authTokenEnv string
	)

	validatePort := func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("port must be an integer within [1,65535]")
		}
		return nil
	}
	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s must not be empty", field)
			}
			return nil
		}
	}

	base := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Channel type").
			Options(
				huh.NewOption("Telegram", string(config.ChannelTelegram)),
				huh.NewOption("Generic HTTP", string(config.ChannelHTTP)),
			).
			Value(&channelType),
		huh.NewInput().
			Title("Channel id").
			Placeholder("tg-main").
			Validate(required("channel id")).
			Value(&channelID),
		huh.NewInput().
			Title("Plugin port").
			Validate(validatePort).
			Value(&portStr),
		huh.NewInput().
			Title("Gateway bearer token env var").
			Validate(required("env var name")).
			Value(&bearerTokenEnv),
	)
	if err := huh.NewForm(base).Run(); err != nil {
		return nil, err
	}

	settings := map[string]any{}
	switch config.ChannelType(channelType) {
	case config.ChannelTelegram:
		telegram := huh.NewGroup(
			huh.NewInput().
				Title("Bot token env var").
				Validate(required("env var name")).
				Value(&botTokenEnv),
			huh.NewInput().
				Title("Webhook public base URL").
				Placeholder("https://gateway.example.com").
				Validate(required("base URL")).
				Value(&webhookBaseURL),
			huh.NewInput().
				Title("Webhook secret token env var (optional)").
				Value(&webhookSecretEnv),
			huh.NewInput().
				Title("Allowed chat ids (comma-separated)").
				Validate(required("allowed chat ids")).
				Value(&allowedChatIDs),
		)
		if err := huh.NewForm(telegram).Run(); err != nil {
			return nil, err
		}
		settings["botTokenEnv"] = botTokenEnv
		settings["webhookPublicBaseUrl"] = strings.TrimSpace(webhookBaseURL)
		settings["allowedChatIds"] = allowedChatIDs
		if strings.TrimSpace(webhookSecretEnv) != "" {
			settings["webhookSecretTokenEnv"] = webhookSecretEnv
		}

	case config.ChannelHTTP:
		httpGroup := huh.NewGroup(
			huh.NewInput().
				Title("Auth token env var (empty for an open endpoint)").
				Value(&authTokenEnv),
		)
		if err := huh.NewForm(httpGroup).Run(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(authTokenEnv) != "" {
			settings["authTokenEnv"] = authTokenEnv
		}
	}

	port, _ := strconv.Atoi(strings.TrimSpace(portStr))
	cfg := &config.Config{
		Gateway: config.Gateway{
			Enabled: true,
			Auth:    config.Auth{BearerTokenEnv: bearerTokenEnv},
			Admin:   config.Admin{Enabled: true},
			Maintenance: config.Maintenance{
				LogRetentionDays: 14,
				HealthRecheck:    true,
			},
		},
		Channels: []config.ChannelDescriptor{
			{
				ID:       strings.TrimSpace(channelID),
				Type:     config.ChannelType(channelType),
				Enabled:  true,
				Endpoint: config.Endpoint{Port: port},
				Settings: settings,
			},
		},
	}
	return cfg, nil
}
