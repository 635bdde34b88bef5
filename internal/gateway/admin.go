package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminServer is the manager's loopback operator endpoint: liveness,
// supervision status, and metrics.
type AdminServer struct {
	bind     string
	token    string
	manager  *Manager
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	server   *http.Server
	listener net.Listener
}

// NewAdminServer creates the endpoint. The bearer token gates /status;
// /healthz and /metrics are open, which is why the default bind is
// loopback-only.
func NewAdminServer(bind, token string, m *Manager, gatherer prometheus.Gatherer, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminServer{
		bind:     bind,
		token:    token,
		manager:  m,
		gatherer: gatherer,
		logger:   logger.With("component", "gateway.admin"),
	}
}

// Start binds the listener synchronously and serves in the background.
func (a *AdminServer) Start() error {
	r := chi.NewRouter()
	r.Get("/healthz", a.handleHealthz)
	r.Get("/status", a.handleStatus)
	if a.gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}

	ln, err := net.Listen("tcp", a.bind)
	if err != nil {
		return fmt.Errorf("gateway: admin listen %s: %w", a.bind, err)
	}
	a.listener = ln
	a.server = &http.Server{Handler: r}

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("admin server serve error", "error", err)
		}
	}()

	a.logger.Info("admin endpoint listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (a *AdminServer) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown drains the server.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *AdminServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeAdminJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if a.token != "" && !a.authorized(r) {
		writeAdminJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
		return
	}
	writeAdminJSON(w, http.StatusOK, a.manager.Status())
}

func (a *AdminServer) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) == 1
}

func writeAdminJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
