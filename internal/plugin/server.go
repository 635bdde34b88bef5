package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atomhq/atomgw/internal/metrics"
)

const maxRPCBodyBytes = 1 << 20

// ServerOptions configures a plugin server.
type ServerOptions struct {
	ChannelID  string
	Host       string
	Port       int
	HealthPath string
	InvokePath string

	// CaptureSignals installs SIGINT/SIGTERM handlers that drain the
	// server. Channels with their own graceful-shutdown flow leave it off.
	CaptureSignals bool

	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server is the local HTTP surface of one channel plugin process: health
// probe, RPC dispatcher, and any extension routes the channel registers.
// Handlers run concurrently; they must tolerate parallel invocation.
type Server struct {
	opts      ServerOptions
	logger    *slog.Logger
	router    chi.Router
	server    *http.Server
	listener  net.Listener
	startedAt time.Time

	rpcMu      sync.RWMutex
	rpcMethods map[string]RPCHandler

	signalCh   chan os.Signal
	signalDone chan struct{}
}

// NewServer creates a server with the health and RPC routes mounted.
// Extension routes and RPC methods may be added until Start.
func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		opts:       opts,
		logger:     opts.Logger.With("component", "plugin.server", "channel", opts.ChannelID),
		rpcMethods: make(map[string]RPCHandler),
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Get(opts.HealthPath, s.handleHealth)
	r.Post(opts.InvokePath, s.handleInvoke)
	if opts.Gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}
	s.router = r

	return s
}

// RegisterRPC adds a handler for one RPC method. Call before Start.
func (s *Server) RegisterRPC(method string, h RPCHandler) {
	s.rpcMu.Lock()
	defer s.rpcMu.Unlock()
	s.rpcMethods[method] = h
}

// RegisterRoute mounts an extension handler on path, evaluated before the
// 404 fallback. The handler owns its own method checks. Call before Start.
func (s *Server) RegisterRoute(path string, h http.Handler) {
	s.router.Handle(path, h)
}

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("plugin: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.startedAt = time.Now()
	s.server = &http.Server{Handler: s.router}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("plugin server serve error", "error", err)
		}
	}()

	if s.opts.CaptureSignals {
		s.signalCh = make(chan os.Signal, 1)
		s.signalDone = make(chan struct{})
		signal.Notify(s.signalCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			defer close(s.signalDone)
			sig, ok := <-s.signalCh
			if !ok {
				return
			}
			s.logger.Info("plugin server caught signal, draining", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = s.Shutdown(ctx)
		}()
	}

	s.logger.Info("plugin server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and returns once in-flight handlers
// complete or ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Dispose releases the signal handlers installed by Start.
func (s *Server) Dispose() {
	if s.signalCh != nil {
		signal.Stop(s.signalCh)
		close(s.signalCh)
		<-s.signalDone
		s.signalCh = nil
	}
}

// healthData is the data payload of the health probe response.
type healthData struct {
	ChannelID string `json:"channelId"`
	Status    string `json:"status"`
	UptimeMs  int64  `json:"uptimeMs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"data": healthData{
			ChannelID: s.opts.ChannelID,
			Status:    "ok",
			UptimeMs:  time.Since(s.startedAt).Milliseconds(),
		},
	})
}

// rpcRequest is the body of one POST to the invoke path.
type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRPCBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.recordRPC("", metrics.StatusError)
		WriteError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		s.recordRPC("", metrics.StatusError)
		WriteError(w, http.StatusBadRequest, "method must be a non-empty string")
		return
	}

	var params map[string]any
	if len(req.Params) > 0 && string(req.Params) != "null" {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.recordRPC(req.Method, metrics.StatusError)
			WriteError(w, http.StatusBadRequest, "params must be an object")
			return
		}
	}

	s.rpcMu.RLock()
	handler, ok := s.rpcMethods[req.Method]
	s.rpcMu.RUnlock()
	if !ok {
		s.recordRPC(req.Method, metrics.StatusError)
		WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown method %q", req.Method))
		return
	}

	result, err := handler(r.Context(), params)
	if err != nil {
		s.recordRPC(req.Method, metrics.StatusError)
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordRPC(req.Method, metrics.StatusOK)
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

func (s *Server) recordRPC(method, status string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRPC(method, status)
	}
}

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the uniform error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{"ok": false, "error": msg})
}
