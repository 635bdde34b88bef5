package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atomhq/atomgw/internal/metrics"
	"github.com/atomhq/atomgw/internal/taskapi"
	"github.com/atomhq/atomgw/internal/telemetry"
)

// Environment variables the gateway manager sets on every plugin spawn.
const (
	EnvChannelConfig = "ATOM_MESSAGE_GATEWAY_CHANNEL_CONFIG"
	EnvGlobalConfig  = "ATOM_MESSAGE_GATEWAY_GLOBAL_CONFIG"
	EnvServerURL     = "ATOM_MESSAGE_GATEWAY_SERVER_URL"
)

const shutdownGrace = 10 * time.Second

// Run is the shared main of every plugin binary. It reads the spawn
// environment, builds the channel registered for the descriptor type,
// serves until a signal or a channel.shutdown RPC arrives, then tears
// down gracefully. The returned error means startup failed and the
// process should exit non-zero.
func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	env, err := readSpawnEnv()
	if err != nil {
		return err
	}

	shutdownTracer, err := telemetry.Setup(context.Background(), "atomgw-"+string(env.Descriptor.Type), "")
	if err != nil {
		logger.Warn("tracing setup failed, continuing without", "error", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	factory, ok := factoryFor(env.Descriptor.Type)
	if !ok {
		return fmt.Errorf("plugin: no channel registered for type %q", env.Descriptor.Type)
	}

	registry := prometheus.NewRegistry()
	env.Metrics = metrics.New(registry)
	env.Runtime = taskapi.New(env.ServerURL)
	env.Logger = logger.With("channel", env.Descriptor.ID)

	ch, err := factory(env)
	if err != nil {
		return fmt.Errorf("plugin: build channel %s: %w", env.Descriptor.ID, err)
	}

	srv := NewServer(ServerOptions{
		ChannelID:  env.Descriptor.ID,
		Host:       env.Descriptor.Endpoint.Host,
		Port:       env.Descriptor.Endpoint.Port,
		HealthPath: env.Descriptor.Endpoint.HealthPath,
		InvokePath: env.Descriptor.Endpoint.InvokePath,
		Logger:     logger,
		Metrics:    env.Metrics,
		Gatherer:   registry,
	})

	// channel.shutdown triggers the same graceful flow as a signal. The
	// envelope is written before the drain starts, so the caller gets its
	// response.
	stop := make(chan struct{})
	var stopOnce sync.Once
	srv.RegisterRPC("channel.shutdown", func(_ context.Context, _ map[string]any) (any, error) {
		stopOnce.Do(func() { close(stop) })
		return map[string]any{"stopping": true}, nil
	})

	if provider, ok := ch.(RPCProvider); ok {
		for method, handler := range provider.RPCMethods() {
			srv.RegisterRPC(method, handler)
		}
	}
	if provider, ok := ch.(RouteProvider); ok {
		for _, route := range provider.Routes() {
			srv.RegisterRoute(route.Path, route.Handler)
		}
	}

	if err := srv.Start(); err != nil {
		return err
	}

	startupCtx, cancel := context.WithCancel(context.Background())
	if err := ch.Startup(startupCtx); err != nil {
		cancel()
		drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownGrace)
		_ = srv.Shutdown(drainCtx)
		drainCancel()
		return fmt.Errorf("plugin: channel %s startup: %w", env.Descriptor.ID, err)
	}
	cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("plugin caught signal, shutting down", "signal", sig.String())
	case <-stop:
		logger.Info("plugin shutdown requested over RPC")
	}

	teardownCtx, teardownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer teardownCancel()

	if err := ch.Shutdown(teardownCtx); err != nil {
		logger.Error("channel shutdown failed", "error", err)
	}
	if err := srv.Shutdown(teardownCtx); err != nil {
		logger.Error("plugin server drain failed", "error", err)
	}
	srv.Dispose()
	_ = shutdownTracer(teardownCtx)

	return nil
}

// readSpawnEnv decodes the manager-provided environment variables.
func readSpawnEnv() (Env, error) {
	var env Env

	rawChannel := os.Getenv(EnvChannelConfig)
	if rawChannel == "" {
		return env, fmt.Errorf("plugin: %s is not set", EnvChannelConfig)
	}
	if err := json.Unmarshal([]byte(rawChannel), &env.Descriptor); err != nil {
		return env, fmt.Errorf("plugin: parse %s: %w", EnvChannelConfig, err)
	}

	rawGlobal := os.Getenv(EnvGlobalConfig)
	if rawGlobal == "" {
		return env, fmt.Errorf("plugin: %s is not set", EnvGlobalConfig)
	}
	if err := json.Unmarshal([]byte(rawGlobal), &env.Global); err != nil {
		return env, fmt.Errorf("plugin: parse %s: %w", EnvGlobalConfig, err)
	}

	serverURL := os.Getenv(EnvServerURL)
	if serverURL == "" {
		return env, fmt.Errorf("plugin: %s is not set", EnvServerURL)
	}
	if u, err := url.Parse(serverURL); err != nil || !u.IsAbs() {
		return env, fmt.Errorf("plugin: %s must be an absolute URL, got %q", EnvServerURL, serverURL)
	}
	env.ServerURL = serverURL

	return env, nil
}
