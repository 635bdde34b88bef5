package httpchannel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atomhq/atomgw/internal/config"
)

const defaultInboundPath = "/http/webhook"

// Settings is the resolved channel configuration. An empty AuthToken
// disables bearer authentication.
type Settings struct {
	InboundPath string
	AuthToken   string
}

func resolveSettings(raw map[string]any) (*Settings, error) {
	var errs []error

	s := &Settings{InboundPath: defaultInboundPath}

	if path := strings.TrimSpace(stringValue(raw["inboundPath"])); path != "" {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("settings.inboundPath: must start with %q, got %q", "/", path))
		} else {
			s.InboundPath = path
		}
	}

	token, err := config.ResolveSecret(stringValue(raw["authTokenEnv"]), stringValue(raw["authToken"]), false)
	if err == nil {
		s.AuthToken = token
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
