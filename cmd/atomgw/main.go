// Package main is the entry point for the atomgw manager CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atomhq/atomgw/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "atomgw",
		Short:         "Message gateway bridging chat channels to the task runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), statusCmd(), configCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and supported channel types",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("atomgw %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Println("\nSupported channel types:")
			for _, t := range []config.ChannelType{config.ChannelTelegram, config.ChannelHTTP} {
				fmt.Printf("  %s\n", t)
			}
		},
	}
}

// newLogger builds the process logger at the requested level.
func newLogger(level string) (*slog.Logger, error) {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "", "info":
		lv = slog.LevelInfo
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})), nil
}

// resolveConfigPath returns the explicit path when given, otherwise the
// workspace-relative default.
func resolveConfigPath(workspace, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(workspace, config.DefaultFileName)
}

// loadConfig loads and validates the configuration for a command.
func loadConfig(workspace, explicit string) (*config.Config, error) {
	path := resolveConfigPath(workspace, explicit)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
