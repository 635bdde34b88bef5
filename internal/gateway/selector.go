package gateway

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/atomhq/atomgw/internal/config"
)

// SelectChannels resolves a selector string against the enabled channel
// descriptors, preserving configuration order.
//
// Grammar: "all" selects everything; otherwise a comma-separated list of
// tokens "id" (include) and "!id" (exclude). With only exclusions, the
// starting set is every enabled channel. Mixing "all" with other tokens is
// invalid, as is a selector with no usable tokens. Unknown ids are logged
// and ignored.
func SelectChannels(selector string, enabled []config.ChannelDescriptor, logger *slog.Logger) ([]config.ChannelDescriptor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var include, exclude []string
	var sawAll bool
	var tokens int

	for _, raw := range strings.Split(selector, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		tokens++
		switch {
		case token == "all":
			sawAll = true
		case strings.HasPrefix(token, "!"):
			id := strings.TrimSpace(token[1:])
			if id == "" {
				return nil, fmt.Errorf("%w: bare %q token", ErrInvalidSelector, "!")
			}
			exclude = append(exclude, id)
		default:
			include = append(include, token)
		}
	}

	if tokens == 0 {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}
	if sawAll && tokens > 1 {
		return nil, fmt.Errorf("%w: %q cannot be combined with other tokens", ErrInvalidSelector, "all")
	}

	known := make(map[string]struct{}, len(enabled))
	for _, ch := range enabled {
		known[ch.ID] = struct{}{}
	}
	checkKnown := func(ids []string) map[string]struct{} {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				logger.Warn("selector names an unknown channel, ignoring", "channel", id)
				continue
			}
			set[id] = struct{}{}
		}
		return set
	}

	if sawAll {
		return append([]config.ChannelDescriptor(nil), enabled...), nil
	}

	includeSet := checkKnown(include)
	excludeSet := checkKnown(exclude)

	var out []config.ChannelDescriptor
	for _, ch := range enabled {
		if len(include) > 0 {
			if _, ok := includeSet[ch.ID]; !ok {
				continue
			}
		}
		if _, ok := excludeSet[ch.ID]; ok {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}
