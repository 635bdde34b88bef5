// Package gateway implements the manager process: it spawns one plugin
// subprocess per selected channel, supervises health, captures output into
// per-channel log files, and serves the operator admin endpoint. There is
// no restart policy; a dead plugin stays dead until external supervision
// or the operator intervenes.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atomhq/atomgw/internal/config"
	"github.com/atomhq/atomgw/internal/metrics"
	"github.com/atomhq/atomgw/internal/plugin"
)

const (
	healthPollInterval = 200 * time.Millisecond
	healthProbeTimeout = 2 * time.Second
	stopGrace          = 10 * time.Second
	pumpBufferBytes    = 1 << 20
)

// pluginEntries maps each channel type to its plugin executable name. The
// binary is looked up next to the running executable first, then on PATH.
var pluginEntries = map[config.ChannelType]string{
	config.ChannelTelegram: "atomgw-telegram",
	config.ChannelHTTP:     "atomgw-http",
}

// Manager owns every channel plugin subprocess of one gateway instance.
type Manager struct {
	cfg       *config.Config
	workspace string
	serverURL string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	probe     *http.Client

	// entryFor resolves a channel type to its plugin executable. Tests
	// substitute scripted processes here.
	entryFor func(config.ChannelType) (string, error)

	mu       sync.Mutex
	states   map[string]*channelState
	order    []string
	stopping bool

	envOnce sync.Once
	envFile map[string]string
}

// channelState is the live supervision record of one channel. All mutable
// fields are guarded by the manager mutex; exited is closed exactly once by
// the exit watcher.
type channelState struct {
	descriptor config.ChannelDescriptor
	cmd        *exec.Cmd
	pid        int
	running    bool
	lastError  string
	log        *channelLog
	exited     chan struct{}
	exitCode   int
}

// NewManager creates a manager for the given configuration. The config must
// already be validated. Metrics may be nil.
func NewManager(cfg *config.Config, workspace, serverURL string, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		workspace: workspace,
		serverURL: serverURL,
		logger:    logger.With("component", "gateway.manager"),
		metrics:   m,
		probe:     &http.Client{Timeout: healthProbeTimeout},
		entryFor:  resolvePluginEntry,
		states:    make(map[string]*channelState),
	}
}

// Start spawns the channels named by selector and waits for each to pass
// its health gate. Per-channel failures are recorded, not propagated; the
// returned error covers preconditions only.
func (m *Manager) Start(ctx context.Context, selector string) error {
	if m.serverURL == "" {
		return ErrServerURLRequired
	}
	if !m.cfg.Gateway.Enabled {
		m.logger.Info("message gateway disabled, nothing to start")
		return nil
	}

	selected, err := SelectChannels(selector, m.cfg.EnabledChannels(), m.logger)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		m.logger.Info("selector matched no channels", "selector", selector)
		return nil
	}

	var running int
	for _, desc := range selected {
		st := &channelState{descriptor: desc, exited: make(chan struct{})}
		m.mu.Lock()
		m.states[desc.ID] = st
		m.order = append(m.order, desc.ID)
		m.mu.Unlock()

		if err := m.startChannel(ctx, st); err != nil {
			m.logger.Error("channel failed to start", "channel", desc.ID, "error", err)
			continue
		}
		running++
	}

	m.logger.Info(fmt.Sprintf("started %d configured channel(s), running=%d", len(selected), running))
	return nil
}

// startChannel spawns one plugin and blocks until it is healthy or the
// startup deadline passes.
func (m *Manager) startChannel(ctx context.Context, st *channelState) error {
	desc := st.descriptor

	sink, logPath, err := openChannelLog(m.workspace, desc.ID)
	if err != nil {
		m.setFailure(st, err.Error())
		return err
	}
	st.log = sink

	entry, err := m.entryFor(desc.Type)
	if err != nil {
		err = fmt.Errorf("gateway: resolve plugin for type %q: %w", desc.Type, err)
		sink.writeLine("system", err.Error())
		sink.Close()
		m.setFailure(st, err.Error())
		return err
	}

	env, err := m.spawnEnv(desc)
	if err != nil {
		sink.Close()
		m.setFailure(st, err.Error())
		return err
	}

	cmd := exec.Command(entry)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		sink.Close()
		m.setFailure(st, err.Error())
		return fmt.Errorf("gateway: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		sink.Close()
		m.setFailure(st, err.Error())
		return fmt.Errorf("gateway: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		err = fmt.Errorf("gateway: spawn %s: %w", entry, err)
		sink.writeLine("system", err.Error())
		sink.Close()
		m.setFailure(st, err.Error())
		return err
	}

	m.mu.Lock()
	st.cmd = cmd
	st.pid = cmd.Process.Pid
	m.mu.Unlock()

	sink.writeLine("system", fmt.Sprintf("spawned %s (pid %d), log %s", entry, cmd.Process.Pid, logPath))
	m.logger.Info("channel plugin spawned",
		"channel", desc.ID, "type", desc.Type, "pid", cmd.Process.Pid, "log", logPath)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go m.pump(&pumps, sink, "stdout", stdout)
	go m.pump(&pumps, sink, "stderr", stderr)
	go m.watchExit(st, &pumps)

	if err := m.awaitHealthy(ctx, st); err != nil {
		m.killProcess(st)
		m.setFailure(st, err.Error())
		if m.metrics != nil {
			m.metrics.PluginStartFailed(desc.ID, "timeout")
		}
		return err
	}

	m.mu.Lock()
	st.running = true
	st.lastError = ""
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.PluginStarted(desc.ID)
	}
	m.logger.Info("channel healthy", "channel", desc.ID, "endpoint", desc.Endpoint.BaseURL())
	return nil
}

// pump copies one output stream into the log sink line by line.
func (m *Manager) pump(wg *sync.WaitGroup, sink *channelLog, stream string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), pumpBufferBytes)
	for scanner.Scan() {
		sink.writeLine(stream, scanner.Text())
	}
}

// watchExit reaps the process once its pumps drain, then records the exit.
func (m *Manager) watchExit(st *channelState, pumps *sync.WaitGroup) {
	pumps.Wait()
	err := st.cmd.Wait()

	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}

	m.mu.Lock()
	wasRunning := st.running
	stopping := m.stopping
	st.running = false
	st.exitCode = code
	st.lastError = fmt.Sprintf("process exited with code %d", code)
	m.mu.Unlock()

	st.log.writeLine("system", fmt.Sprintf("process exited with code %d", code))
	st.log.Close()
	close(st.exited)

	if m.metrics != nil && wasRunning {
		m.metrics.PluginExited(st.descriptor.ID)
	}
	if !stopping {
		m.logger.Warn("channel plugin exited",
			"channel", st.descriptor.ID, "pid", st.pid, "code", code)
	}
}

// awaitHealthy polls the plugin's health endpoint every 200 ms until it
// answers 2xx, the process dies, or the startup deadline passes.
func (m *Manager) awaitHealthy(ctx context.Context, st *channelState) error {
	desc := st.descriptor
	url := desc.Endpoint.BaseURL() + desc.Endpoint.HealthPath
	deadline := time.After(time.Duration(desc.Endpoint.StartupTimeoutMs) * time.Millisecond)
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-st.exited:
			m.mu.Lock()
			code := st.exitCode
			m.mu.Unlock()
			return fmt.Errorf("gateway: plugin exited with code %d before becoming healthy", code)
		case <-deadline:
			if lastErr != nil {
				return fmt.Errorf("gateway: health check timed out after %dms: %w",
					desc.Endpoint.StartupTimeoutMs, lastErr)
			}
			return fmt.Errorf("gateway: health check timed out after %dms",
				desc.Endpoint.StartupTimeoutMs)
		case <-ticker.C:
			if err := m.probeOnce(ctx, url); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
	}
}

// probeOnce performs one health probe; any 2xx counts as healthy.
func (m *Manager) probeOnce(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.probe.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// RecheckHealth re-probes every channel whose process is still alive and
// updates its running flag. It never kills or restarts anything; the
// maintenance scheduler calls this once a minute.
func (m *Manager) RecheckHealth(ctx context.Context) {
	type target struct {
		st  *channelState
		url string
	}
	m.mu.Lock()
	var alive []target
	for _, id := range m.order {
		st := m.states[id]
		select {
		case <-st.exited:
		default:
			if st.cmd != nil {
				alive = append(alive, target{
					st:  st,
					url: st.descriptor.Endpoint.BaseURL() + st.descriptor.Endpoint.HealthPath,
				})
			}
		}
	}
	m.mu.Unlock()

	for _, tgt := range alive {
		st := tgt.st
		err := m.probeOnce(ctx, tgt.url)

		m.mu.Lock()
		if err != nil {
			if st.running {
				m.logger.Warn("channel health probe failed",
					"channel", st.descriptor.ID, "error", err)
			}
			st.running = false
			st.lastError = err.Error()
		} else {
			if !st.running {
				m.logger.Info("channel health recovered", "channel", st.descriptor.ID)
			}
			st.running = true
			st.lastError = ""
		}
		m.mu.Unlock()

		if m.metrics != nil {
			status := metrics.StatusOK
			if err != nil {
				status = metrics.StatusError
			}
			m.metrics.RecordHealthCheck(st.descriptor.ID, status)
		}
	}
}

// Stop terminates every supervised plugin: SIGTERM first, SIGKILL after a
// grace period, then waits for the exit watchers. Idempotent.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	var targets []*channelState
	for _, id := range m.order {
		st := m.states[id]
		if st.cmd != nil {
			targets = append(targets, st)
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, st := range targets {
		wg.Add(1)
		go func(st *channelState) {
			defer wg.Done()
			m.stopChannel(ctx, st)
		}(st)
	}
	wg.Wait()

	m.logger.Info("gateway manager stopped", "channels", len(targets))
	return nil
}

func (m *Manager) stopChannel(ctx context.Context, st *channelState) {
	select {
	case <-st.exited:
		return
	default:
	}

	st.log.writeLine("system", "stopping")
	if err := st.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		m.logger.Warn("signal delivery failed", "channel", st.descriptor.ID, "error", err)
	}

	grace := time.NewTimer(stopGrace)
	defer grace.Stop()
	select {
	case <-st.exited:
		return
	case <-ctx.Done():
	case <-grace.C:
		m.logger.Warn("channel ignored SIGTERM, killing",
			"channel", st.descriptor.ID, "pid", st.pid)
	}

	m.killProcess(st)
	<-st.exited
}

// killProcess hard-kills the plugin. The exit watcher handles the rest.
func (m *Manager) killProcess(st *channelState) {
	m.mu.Lock()
	cmd := st.cmd
	m.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (m *Manager) setFailure(st *channelState, msg string) {
	m.mu.Lock()
	st.running = false
	st.lastError = msg
	m.mu.Unlock()
}

// spawnEnv composes the child environment: the workspace .env file first,
// the process environment on top, and the three gateway variables last.
func (m *Manager) spawnEnv(desc config.ChannelDescriptor) ([]string, error) {
	m.envOnce.Do(func() {
		m.envFile = parseEnvFile(filepath.Join(m.workspace, ".env"))
	})

	merged := make(map[string]string, len(m.envFile)+8)
	for k, v := range m.envFile {
		merged[k] = v
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}

	channelJSON, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal channel descriptor: %w", err)
	}
	globalJSON, err := json.Marshal(m.cfg.Global())
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal global config: %w", err)
	}
	merged[plugin.EnvChannelConfig] = string(channelJSON)
	merged[plugin.EnvGlobalConfig] = string(globalJSON)
	merged[plugin.EnvServerURL] = m.serverURL

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// resolvePluginEntry locates the plugin executable for a channel type,
// preferring a sibling of the running binary over PATH.
func resolvePluginEntry(t config.ChannelType) (string, error) {
	name, ok := pluginEntries[t]
	if !ok {
		return "", fmt.Errorf("no plugin registered for channel type %q", t)
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}
