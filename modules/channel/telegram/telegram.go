// Package telegram implements the Telegram channel plugin: webhook
// registration, authorized-chat filtering, command handling, and the
// ack-task-reply pipeline with MarkdownV2 framing.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/atomhq/atomgw/internal/config"
	"github.com/atomhq/atomgw/internal/metrics"
	"github.com/atomhq/atomgw/internal/plugin"
	"github.com/atomhq/atomgw/internal/taskapi"
	"github.com/atomhq/atomgw/pkg/message"
)

const maxWebhookBodyBytes = 1 << 20

func init() {
	plugin.Register(config.ChannelTelegram, New)
}

// Channel is the Telegram channel implementation.
type Channel struct {
	id       string
	settings *Settings
	client   *Client
	runtime  *taskapi.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger
	ledger   *Ledger
}

// New builds the channel from its plugin environment.
func New(env plugin.Env) (plugin.Channel, error) {
	settings, err := resolveSettings(env.Descriptor.Settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: channel %s: %w", env.Descriptor.ID, err)
	}

	c := &Channel{
		id:       env.Descriptor.ID,
		settings: settings,
		client:   NewClient(settings.BotToken, settings.APIBaseURL),
		runtime:  env.Runtime,
		metrics:  env.Metrics,
		logger:   env.Logger,
	}

	if settings.DedupeDBPath != "" {
		ledger, err := OpenLedger(settings.DedupeDBPath)
		if err != nil {
			return nil, fmt.Errorf("telegram: channel %s: %w", env.Descriptor.ID, err)
		}
		c.ledger = ledger
	}

	return c, nil
}

// Startup registers the webhook against the Telegram Bot API. A rejection
// is fatal: without a webhook the channel receives nothing.
func (c *Channel) Startup(ctx context.Context) error {
	req := SetWebhookRequest{
		URL:                c.settings.WebhookPublicBaseURL + c.settings.WebhookPath,
		SecretToken:        c.settings.WebhookSecretToken,
		DropPendingUpdates: c.settings.DropPendingUpdatesOnStart,
	}
	if err := c.client.SetWebhook(ctx, req); err != nil {
		return fmt.Errorf("telegram: setWebhook: %w", err)
	}
	c.logger.Info("telegram webhook registered", "url", req.URL)
	return nil
}

// Shutdown removes the webhook best-effort and closes the dedupe ledger.
func (c *Channel) Shutdown(ctx context.Context) error {
	req := DeleteWebhookRequest{DropPendingUpdates: c.settings.DropPendingUpdatesOnStart}
	if err := c.client.DeleteWebhook(ctx, req); err != nil {
		c.logger.Warn("telegram deleteWebhook failed", "error", err)
	}
	if c.ledger != nil {
		if err := c.ledger.Close(); err != nil {
			c.logger.Warn("dedupe ledger close failed", "error", err)
		}
	}
	return nil
}

// Routes implements plugin.RouteProvider.
func (c *Channel) Routes() []plugin.Route {
	return []plugin.Route{
		{Path: c.settings.WebhookPath, Handler: http.HandlerFunc(c.handleWebhook)},
	}
}

// handleWebhook accepts one Telegram update. It parses synchronously,
// spawns the processing pipeline, and acknowledges within milliseconds;
// Telegram owns retry on anything but a 2xx.
func (c *Channel) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		plugin.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		c.recordInbound(metrics.OutcomeError)
		plugin.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	req := message.NewInboundRequest(r, rawBody)
	parsed := c.parseInbound(req)

	if !parsed.Accepted {
		c.recordInbound(metrics.OutcomeUnauthorized)
		plugin.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if parsed.Empty() {
		c.recordInbound(metrics.OutcomeIgnored)
		writeAccepted(w)
		return
	}

	// Replayed updates are acknowledged but not reprocessed. Ledger
	// failures fail open: better a duplicate task than a dropped message.
	if c.ledger != nil {
		if id, ok := updateID(req); ok {
			seen, err := c.ledger.SeenUpdate(r.Context(), id)
			if err != nil {
				c.logger.Warn("dedupe ledger lookup failed", "update_id", id, "error", err)
			} else if seen {
				c.logger.Debug("duplicate update dropped", "update_id", id)
				c.recordInbound(metrics.OutcomeIgnored)
				writeAccepted(w)
				return
			}
		}
	}

	c.recordInbound(metrics.OutcomeAccepted)
	go c.processParsedInbound(context.Background(), parsed)
	writeAccepted(w)
}

// updateID extracts the numeric update_id from a parsed webhook body.
func updateID(req message.InboundRequest) (int64, bool) {
	body := req.BodyObject()
	if body == nil {
		return 0, false
	}
	id, ok := body["update_id"].(float64)
	if !ok {
		return 0, false
	}
	return int64(id), true
}

func (c *Channel) recordInbound(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordInbound(c.id, outcome)
	}
}

func writeAccepted(w http.ResponseWriter) {
	plugin.WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "accepted": true})
}
