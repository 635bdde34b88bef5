package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/atomhq/atomgw/internal/gateway"
	"github.com/atomhq/atomgw/internal/maintenance"
	"github.com/atomhq/atomgw/internal/metrics"
	"github.com/atomhq/atomgw/internal/telemetry"
)

const stopTimeout = 30 * time.Second

func startCmd() *cobra.Command {
	var (
		selector  string
		workspace string
		serverURL string
		cfgPath   string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the selected channel plugins and supervise them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}

			if u, err := url.Parse(serverURL); err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("--server-url must be an absolute http(s) URL, got %q", serverURL)
			}

			cfg, err := loadConfig(workspace, cfgPath)
			if err != nil {
				return err
			}

			shutdownTracer, err := telemetry.Setup(cmd.Context(), "atomgw", version)
			if err != nil {
				logger.Warn("tracing setup failed, continuing without", "error", err)
				shutdownTracer = func(context.Context) error { return nil }
			}

			registry := prometheus.NewRegistry()
			m := metrics.New(registry)

			mgr := gateway.NewManager(cfg, workspace, serverURL, logger, m)
			if err := mgr.Start(cmd.Context(), selector); err != nil {
				return err
			}

			var admin *gateway.AdminServer
			if cfg.Gateway.Admin.Enabled {
				admin = gateway.NewAdminServer(
					cfg.Gateway.Admin.Bind, cfg.Gateway.Auth.BearerToken, mgr, registry, logger)
				if err := admin.Start(); err != nil {
					stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
					defer cancel()
					_ = mgr.Stop(stopCtx)
					return err
				}
			}

			sched := maintenance.NewScheduler(logger)
			if days := cfg.Gateway.Maintenance.LogRetentionDays; days > 0 {
				_ = sched.RegisterJob(&maintenance.LogRetentionJob{
					Root:   gateway.LogRoot(workspace),
					MaxAge: time.Duration(days) * 24 * time.Hour,
					Logger: logger,
				})
			}
			if cfg.Gateway.Maintenance.HealthRecheck {
				_ = sched.RegisterJob(&maintenance.HealthRecheckJob{Prober: mgr, Logger: logger})
			}
			if err := sched.Start(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			sig := <-sigCh
			logger.Info("caught signal, shutting down", "signal", sig.String())

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()

			_ = sched.Stop(stopCtx)
			if admin != nil {
				_ = admin.Shutdown(stopCtx)
			}
			if err := mgr.Stop(stopCtx); err != nil {
				logger.Error("manager stop failed", "error", err)
			}
			_ = shutdownTracer(stopCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&selector, "message-gateway", "", "Channel selector: \"all\" or a CSV of ids, with !id to exclude")
	cmd.Flags().StringVar(&workspace, "workspace", ".", "Workspace directory (config, .env, logs)")
	cmd.Flags().StringVar(&serverURL, "server-url", "", "Task runtime base URL (required)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	_ = cmd.MarkFlagRequired("message-gateway")
	_ = cmd.MarkFlagRequired("server-url")
	return cmd
}
