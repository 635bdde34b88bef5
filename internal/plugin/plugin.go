// Package plugin is the runtime embedded in every channel plugin process:
// a local HTTP server with a health endpoint, an RPC endpoint, and optional
// raw extension routes, plus the bootstrap that turns manager-provided
// environment variables into a running channel.
package plugin

import (
	"context"
	"net/http"
)

// Channel is one channel implementation hosted by a plugin process.
type Channel interface {
	// Startup runs after the plugin server is listening. A returned error
	// is fatal: the process exits non-zero.
	Startup(ctx context.Context) error

	// Shutdown runs during graceful termination, before the server drains.
	// Errors are logged, never fatal.
	Shutdown(ctx context.Context) error
}

// RouteProvider is implemented by channels that expose raw HTTP paths,
// for example a platform webhook. Handlers own their own method checks.
type RouteProvider interface {
	Routes() []Route
}

// RPCProvider is implemented by channels that answer control calls beyond
// the built-in channel.shutdown.
type RPCProvider interface {
	RPCMethods() map[string]RPCHandler
}

// Route binds one extension path to a handler.
type Route struct {
	Path    string
	Handler http.Handler
}

// RPCHandler answers one RPC method. The params map is nil when the caller
// sent none. A returned error becomes a 500 envelope carrying the error
// text.
type RPCHandler func(ctx context.Context, params map[string]any) (any, error)
