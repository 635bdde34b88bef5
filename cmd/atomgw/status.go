package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/atomhq/atomgw/internal/gateway"
)

func statusCmd() *cobra.Command {
	var (
		adminURL string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the supervision status of a running manager",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := fetchStatus(adminURL, token)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().StringVar(&adminURL, "admin-url", "http://127.0.0.1:9090", "Admin endpoint of the running manager")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for the status endpoint")
	return cmd
}

func fetchStatus(adminURL, token string) (*gateway.Status, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(adminURL, "/")+"/status", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("admin endpoint unreachable (is the manager running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var status gateway.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &status, nil
}

func printStatus(w io.Writer, s *gateway.Status) {
	fmt.Fprintf(w, "Gateway enabled: %t\n", s.Enabled)
	fmt.Fprintf(w, "Inbound path:    %s\n", s.InboundPath)
	fmt.Fprintf(w, "Channels:        %d configured, %d running, %d failed\n",
		s.Configured, s.Running, s.Failed)

	for _, ch := range s.Channels {
		state := "stopped"
		if ch.Running {
			state = "running"
		}
		fmt.Fprintf(w, "\n  %s (%s) %s\n", ch.ID, ch.Type, state)
		fmt.Fprintf(w, "    endpoint: %s\n", ch.Endpoint)
		if ch.PID != 0 {
			fmt.Fprintf(w, "    pid:      %d\n", ch.PID)
		}
		if ch.Error != "" {
			fmt.Fprintf(w, "    error:    %s\n", ch.Error)
		}
	}
}
