package telegram

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atomhq/atomgw/internal/config"
)

const (
	defaultWebhookPath  = "/telegram/webhook"
	defaultParseMode    = "MarkdownV2"
	defaultChunkSize    = 3500
	defaultPollInterval = time.Second
)

// Settings is the resolved, validated channel configuration.
type Settings struct {
	AllowedChatIDs            map[string]struct{}
	BotToken                  string
	WebhookPublicBaseURL      string
	WebhookPath               string
	WebhookSecretToken        string
	DropPendingUpdatesOnStart bool
	ParseMode                 string
	ChunkSize                 int
	PollInterval              time.Duration
	APIBaseURL                string
	DedupeDBPath              string
}

// resolveSettings validates and normalizes the channel's opaque settings
// map. Secrets resolve env-reference first, literal second. All violations
// are reported at once.
func resolveSettings(raw map[string]any) (*Settings, error) {
	var errs []error

	s := &Settings{
		WebhookPath:               defaultWebhookPath,
		DropPendingUpdatesOnStart: true,
		ParseMode:                 defaultParseMode,
		ChunkSize:                 defaultChunkSize,
		PollInterval:              defaultPollInterval,
	}

	ids, err := resolveAllowedChatIDs(raw["allowedChatIds"])
	if err != nil {
		errs = append(errs, fmt.Errorf("settings.allowedChatIds: %w", err))
	} else {
		s.AllowedChatIDs = ids
	}

	token, err := config.ResolveSecret(stringValue(raw["botTokenEnv"]), stringValue(raw["botToken"]), true)
	if err != nil {
		errs = append(errs, fmt.Errorf("settings.botToken: %w", err))
	} else {
		s.BotToken = token
	}

	base := strings.TrimSpace(stringValue(raw["webhookPublicBaseUrl"]))
	if base == "" {
		errs = append(errs, errors.New("settings.webhookPublicBaseUrl: must not be empty"))
	} else {
		s.WebhookPublicBaseURL = strings.TrimRight(base, "/")
	}

	if path := strings.TrimSpace(stringValue(raw["webhookPath"])); path != "" {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("settings.webhookPath: must start with %q, got %q", "/", path))
		} else {
			s.WebhookPath = path
		}
	}

	secret, err := config.ResolveSecret(stringValue(raw["webhookSecretTokenEnv"]), stringValue(raw["webhookSecretToken"]), false)
	if err == nil {
		s.WebhookSecretToken = secret
	}

	if v, ok := raw["dropPendingUpdatesOnStart"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			errs = append(errs, fmt.Errorf("settings.dropPendingUpdatesOnStart: must be a boolean, got %T", v))
		} else {
			s.DropPendingUpdatesOnStart = b
		}
	}

	if mode := strings.TrimSpace(stringValue(raw["parseMode"])); mode != "" {
		switch mode {
		case "MarkdownV2", "plain":
			s.ParseMode = mode
		default:
			errs = append(errs, fmt.Errorf("settings.parseMode: must be one of MarkdownV2, plain; got %q", mode))
		}
	}

	if v, ok := raw["chunkSize"]; ok {
		n, err := intValue(v)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("settings.chunkSize: %w", err))
		case n < 1 || n > 4096:
			errs = append(errs, fmt.Errorf("settings.chunkSize: must be within [1,4096], got %d", n))
		default:
			s.ChunkSize = n
		}
	}

	if v, ok := raw["pollIntervalMs"]; ok {
		n, err := intValue(v)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("settings.pollIntervalMs: %w", err))
		case n < 0 || n > 60000:
			errs = append(errs, fmt.Errorf("settings.pollIntervalMs: must be within [0,60000], got %d", n))
		default:
			s.PollInterval = time.Duration(n) * time.Millisecond
		}
	}

	s.APIBaseURL = strings.TrimSpace(stringValue(raw["apiBaseUrl"]))
	s.DedupeDBPath = strings.TrimSpace(stringValue(raw["dedupeDbPath"]))

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// resolveAllowedChatIDs accepts an array of strings or one comma-separated
// string. Entries are trimmed, empties dropped; at least one must remain.
func resolveAllowedChatIDs(v any) (map[string]struct{}, error) {
	var entries []string

	switch val := v.(type) {
	case nil:
		return nil, errors.New("must be set")
	case string:
		entries = strings.Split(val, ",")
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("entries must be strings, got %T", item)
			}
			entries = append(entries, s)
		}
	default:
		return nil, fmt.Errorf("must be an array of strings or a comma-separated string, got %T", v)
	}

	ids := make(map[string]struct{})
	for _, entry := range entries {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			ids[trimmed] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("must contain at least one chat id")
	}
	return ids, nil
}

// stringValue returns v as a string, or "" for any other type.
func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// intValue coerces a JSON number to an integer, rejecting fractions.
func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be an integer, got %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
}
