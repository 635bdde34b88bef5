// Package config loads, validates, and resolves the message-gateway
// configuration: the gateway section (auth, admin, maintenance) and the
// per-channel descriptors handed to plugin subprocesses.
package config

import (
	"fmt"
)

// DefaultFileName is the workspace-relative configuration file consulted
// when no explicit path is given.
const DefaultFileName = "message_gateway.config.json"

// ChannelType enumerates the supported channel plugin families.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelHTTP     ChannelType = "http"
)

// Config is the root of the gateway configuration document.
type Config struct {
	Gateway  Gateway             `json:"gateway"`
	Channels []ChannelDescriptor `json:"channels"`
}

// Gateway holds the gateway-wide section of the configuration.
type Gateway struct {
	Enabled     bool        `json:"enabled"`
	InboundPath string      `json:"inboundPath"`
	Auth        Auth        `json:"auth"`
	Admin       Admin       `json:"admin"`
	Maintenance Maintenance `json:"maintenance"`
}

// Auth configures the gateway bearer token. The env reference wins over the
// literal value; Validate replaces BearerToken with the resolved secret.
type Auth struct {
	BearerTokenEnv string `json:"bearerTokenEnv,omitempty"`
	BearerToken    string `json:"bearerToken,omitempty"`
}

// Admin configures the manager's operator endpoint.
type Admin struct {
	Enabled bool   `json:"enabled"`
	Bind    string `json:"bind"`
}

// Maintenance configures the manager's background jobs.
type Maintenance struct {
	// LogRetentionDays is how long per-channel log files are kept.
	// Zero disables the retention job.
	LogRetentionDays int `json:"logRetentionDays"`

	// HealthRecheck re-probes supervised channels once a minute.
	HealthRecheck bool `json:"healthRecheck"`
}

// ChannelDescriptor describes one configured channel. Immutable once
// resolved; the manager serializes it verbatim into the plugin environment.
type ChannelDescriptor struct {
	ID       string         `json:"id"`
	Type     ChannelType    `json:"type"`
	Enabled  bool           `json:"enabled"`
	Endpoint Endpoint       `json:"channelEndpoint"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Endpoint locates the plugin's local HTTP server.
type Endpoint struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	HealthPath       string `json:"healthPath"`
	InvokePath       string `json:"invokePath"`
	StartupTimeoutMs int    `json:"startupTimeoutMs"`
}

// BaseURL returns the plugin server's HTTP base URL without a trailing
// slash.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// GlobalConfig is the gateway-wide subset serialized into every plugin's
// environment as ATOM_MESSAGE_GATEWAY_GLOBAL_CONFIG. Auth carries the
// already-resolved bearer token.
type GlobalConfig struct {
	Enabled     bool       `json:"enabled"`
	InboundPath string     `json:"inboundPath"`
	Auth        GlobalAuth `json:"auth"`
}

// GlobalAuth is the resolved auth payload inside GlobalConfig.
type GlobalAuth struct {
	BearerToken string `json:"bearerToken"`
}

// Global projects the resolved gateway section into its plugin-facing
// shape. Call only after Validate.
func (c *Config) Global() GlobalConfig {
	return GlobalConfig{
		Enabled:     c.Gateway.Enabled,
		InboundPath: c.Gateway.InboundPath,
		Auth:        GlobalAuth{BearerToken: c.Gateway.Auth.BearerToken},
	}
}

// Channel returns the descriptor with the given id, or nil.
func (c *Config) Channel(id string) *ChannelDescriptor {
	for i := range c.Channels {
		if c.Channels[i].ID == id {
			return &c.Channels[i]
		}
	}
	return nil
}

// EnabledChannels returns the descriptors that are enabled, in
// configuration order.
func (c *Config) EnabledChannels() []ChannelDescriptor {
	var out []ChannelDescriptor
	for _, ch := range c.Channels {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out
}

const (
	defaultInboundPath      = "/v1/message-gateway/inbound"
	defaultAdminBind        = "127.0.0.1:9090"
	defaultLogRetentionDays = 14
	defaultHost             = "127.0.0.1"
	defaultHealthPath       = "/healthz"
	defaultInvokePath       = "/rpc"
	defaultStartupTimeoutMs = 30000
)

// applyDefaults fills unset fields in place. Boolean fields that default to
// true are handled during decoding (see the raw* types in load.go).
func (c *Config) applyDefaults() {
	if c.Gateway.InboundPath == "" {
		c.Gateway.InboundPath = defaultInboundPath
	}
	if c.Gateway.Admin.Bind == "" {
		c.Gateway.Admin.Bind = defaultAdminBind
	}
	for i := range c.Channels {
		ep := &c.Channels[i].Endpoint
		if ep.Host == "" {
			ep.Host = defaultHost
		}
		if ep.HealthPath == "" {
			ep.HealthPath = defaultHealthPath
		}
		if ep.InvokePath == "" {
			ep.InvokePath = defaultInvokePath
		}
		if ep.StartupTimeoutMs == 0 {
			ep.StartupTimeoutMs = defaultStartupTimeoutMs
		}
	}
}
