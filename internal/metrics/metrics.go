// Package metrics defines the Prometheus instrumentation shared by the
// gateway manager and the channel plugins. Each process owns its own
// registry so a plugin's /metrics endpoint only exposes its own series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values used across counters.
const (
	OutcomeAccepted     = "accepted"
	OutcomeIgnored      = "ignored"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"

	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics bundles every series the gateway emits.
type Metrics struct {
	// InboundRequests counts webhook deliveries by channel and outcome
	// (accepted, ignored, unauthorized, error).
	InboundRequests *prometheus.CounterVec

	// RuntimeRequests counts calls against the task runtime by
	// operation (create_task, get_task) and status.
	RuntimeRequests *prometheus.CounterVec

	// RuntimeRequestDuration measures task runtime call latency in seconds.
	RuntimeRequestDuration *prometheus.HistogramVec

	// OutboundMessages counts replies delivered back to a channel.
	OutboundMessages *prometheus.CounterVec

	// RPCRequests counts plugin control calls by method and status.
	RPCRequests *prometheus.CounterVec

	// PluginsRunning tracks channel plugin processes currently alive.
	PluginsRunning *prometheus.GaugeVec

	// PluginStarts counts plugin launches by outcome (ok, timeout, error).
	PluginStarts *prometheus.CounterVec

	// PluginExits counts plugin processes that terminated on their own.
	PluginExits *prometheus.CounterVec

	// HealthChecks counts manager-side health probes by channel and status.
	HealthChecks *prometheus.CounterVec
}

// New registers the gateway series with reg and returns the handle.
// Call once per process.
func New(reg prometheus.Registerer) *Metrics {
	auto := promauto.With(reg)

	return &Metrics{
		InboundRequests: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atomgw_inbound_requests_total",
				Help: "Webhook deliveries by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),

		RuntimeRequests: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atomgw_runtime_requests_total",
				Help: "Task runtime calls by operation and status",
			},
			[]string{"operation", "status"},
		),

		RuntimeRequestDuration: auto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atomgw_runtime_request_duration_seconds",
				Help:    "Task runtime call latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),

		OutboundMessages: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atomgw_outbound_messages_total",
				Help: "Replies delivered back to a channel by status",
			},
			[]string{"channel", "status"},
		),

		RPCRequests: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atomgw_rpc_requests_total",
				Help: "Plugin control calls by method and status",
			},
			[]string{"method", "status"},
		),

		PluginsRunning: auto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "atomgw_plugins_running",
				Help: "Channel plugin processes currently alive",
			},
			[]string{"channel"},
		),

		PluginStarts: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atomgw_plugin_starts_total",
				Help: "Plugin launches by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),

		PluginExits: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atomgw_plugin_exits_total",
				Help: "Plugin processes that terminated on their own",
			},
			[]string{"channel"},
		),

		HealthChecks: auto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atomgw_health_checks_total",
				Help: "Manager health probes by channel and status",
			},
			[]string{"channel", "status"},
		),
	}
}

// RecordInbound counts one webhook delivery.
func (m *Metrics) RecordInbound(channel, outcome string) {
	m.InboundRequests.WithLabelValues(channel, outcome).Inc()
}

// RecordRuntimeRequest counts one task runtime call and its latency.
func (m *Metrics) RecordRuntimeRequest(operation, status string, seconds float64) {
	m.RuntimeRequests.WithLabelValues(operation, status).Inc()
	m.RuntimeRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordOutbound counts one reply delivery attempt.
func (m *Metrics) RecordOutbound(channel, status string) {
	m.OutboundMessages.WithLabelValues(channel, status).Inc()
}

// RecordRPC counts one plugin control call.
func (m *Metrics) RecordRPC(method, status string) {
	m.RPCRequests.WithLabelValues(method, status).Inc()
}

// PluginStarted marks a plugin as running after a successful launch.
func (m *Metrics) PluginStarted(channel string) {
	m.PluginStarts.WithLabelValues(channel, StatusOK).Inc()
	m.PluginsRunning.WithLabelValues(channel).Inc()
}

// PluginStartFailed counts a launch that never became healthy.
func (m *Metrics) PluginStartFailed(channel, outcome string) {
	m.PluginStarts.WithLabelValues(channel, outcome).Inc()
}

// PluginStopped marks a plugin as no longer running.
func (m *Metrics) PluginStopped(channel string) {
	m.PluginsRunning.WithLabelValues(channel).Dec()
}

// PluginExited counts a plugin that terminated without being asked to.
func (m *Metrics) PluginExited(channel string) {
	m.PluginExits.WithLabelValues(channel).Inc()
	m.PluginsRunning.WithLabelValues(channel).Dec()
}

// RecordHealthCheck counts one manager-side health probe.
func (m *Metrics) RecordHealthCheck(channel, status string) {
	m.HealthChecks.WithLabelValues(channel, status).Inc()
}
