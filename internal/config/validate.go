package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	minStartupTimeoutMs = 1000
	maxStartupTimeoutMs = 120000
)

// Validate checks every invariant of the loaded configuration and resolves
// the gateway bearer token in place (env reference before literal). All
// violations are reported at once, each with the path of the offending
// field.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Gateway.InboundPath == "" || !strings.HasPrefix(cfg.Gateway.InboundPath, "/") {
		errs = append(errs, fmt.Errorf("gateway.inboundPath: must start with %q, got %q", "/", cfg.Gateway.InboundPath))
	}
	if cfg.Gateway.Maintenance.LogRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("gateway.maintenance.logRetentionDays: must not be negative, got %d", cfg.Gateway.Maintenance.LogRetentionDays))
	}
	if cfg.Gateway.Admin.Enabled && strings.TrimSpace(cfg.Gateway.Admin.Bind) == "" {
		errs = append(errs, fmt.Errorf("gateway.admin.bind: must not be empty when admin is enabled"))
	}

	if cfg.Gateway.Enabled {
		token, err := ResolveSecret(cfg.Gateway.Auth.BearerTokenEnv, cfg.Gateway.Auth.BearerToken, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("gateway.auth: %w", err))
		} else {
			cfg.Gateway.Auth.BearerToken = token
		}
	}

	seen := make(map[string]int, len(cfg.Channels))
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		prefix := fmt.Sprintf("channels[%d]", i)

		if strings.TrimSpace(ch.ID) == "" {
			errs = append(errs, fmt.Errorf("%s.id: must not be empty", prefix))
		} else if first, dup := seen[ch.ID]; dup {
			errs = append(errs, fmt.Errorf("%s.id: duplicate of channels[%d] (%q)", prefix, first, ch.ID))
		} else {
			seen[ch.ID] = i
		}

		switch ch.Type {
		case ChannelTelegram, ChannelHTTP:
		default:
			errs = append(errs, fmt.Errorf("%s.type: must be one of telegram, http; got %q", prefix, ch.Type))
		}

		ep := ch.Endpoint
		if ep.Port < 1 || ep.Port > 65535 {
			errs = append(errs, fmt.Errorf("%s.channelEndpoint.port: must be within [1,65535], got %d", prefix, ep.Port))
		}
		if !strings.HasPrefix(ep.HealthPath, "/") {
			errs = append(errs, fmt.Errorf("%s.channelEndpoint.healthPath: must start with %q, got %q", prefix, "/", ep.HealthPath))
		}
		if !strings.HasPrefix(ep.InvokePath, "/") {
			errs = append(errs, fmt.Errorf("%s.channelEndpoint.invokePath: must start with %q, got %q", prefix, "/", ep.InvokePath))
		}
		if ep.StartupTimeoutMs < minStartupTimeoutMs || ep.StartupTimeoutMs > maxStartupTimeoutMs {
			errs = append(errs, fmt.Errorf("%s.channelEndpoint.startupTimeoutMs: must be within [%d,%d], got %d",
				prefix, minStartupTimeoutMs, maxStartupTimeoutMs, ep.StartupTimeoutMs))
		}
	}

	return errors.Join(errs...)
}
