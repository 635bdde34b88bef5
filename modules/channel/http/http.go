// Package httpchannel implements the generic HTTP channel plugin: a
// bearer-authenticated JSON endpoint that submits posted text as runtime
// tasks. Delivery back to the caller is out of scope; task completion is
// observed through the runtime, not this channel.
package httpchannel

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/atomhq/atomgw/internal/config"
	"github.com/atomhq/atomgw/internal/metrics"
	"github.com/atomhq/atomgw/internal/plugin"
	"github.com/atomhq/atomgw/internal/taskapi"
	"github.com/atomhq/atomgw/internal/telemetry"
	"github.com/atomhq/atomgw/pkg/message"
	"github.com/atomhq/atomgw/pkg/task"
)

const maxInboundBodyBytes = 1 << 20

func init() {
	plugin.Register(config.ChannelHTTP, New)
}

// Channel is the generic HTTP channel implementation.
type Channel struct {
	id       string
	settings *Settings
	runtime  *taskapi.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds the channel from its plugin environment.
func New(env plugin.Env) (plugin.Channel, error) {
	settings, err := resolveSettings(env.Descriptor.Settings)
	if err != nil {
		return nil, fmt.Errorf("http: channel %s: %w", env.Descriptor.ID, err)
	}

	return &Channel{
		id:       env.Descriptor.ID,
		settings: settings,
		runtime:  env.Runtime,
		metrics:  env.Metrics,
		logger:   env.Logger,
	}, nil
}

// Startup has no external registration to do; the inbound route is live as
// soon as the plugin server accepts connections.
func (c *Channel) Startup(context.Context) error {
	c.logger.Info("http channel ready", "path", c.settings.InboundPath, "auth", c.settings.AuthToken != "")
	return nil
}

// Shutdown has no external state to release.
func (c *Channel) Shutdown(context.Context) error {
	return nil
}

// Routes implements plugin.RouteProvider.
func (c *Channel) Routes() []plugin.Route {
	return []plugin.Route{
		{Path: c.settings.InboundPath, Handler: http.HandlerFunc(c.handleInbound)},
	}
}

// handleInbound accepts one JSON post and submits it as a task. The caller
// gets the task id back; there is no delivery leg.
func (c *Channel) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		plugin.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !c.authorized(r) {
		c.recordInbound(metrics.OutcomeUnauthorized)
		plugin.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInboundBodyBytes))
	if err != nil {
		c.recordInbound(metrics.OutcomeError)
		plugin.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	ctx, span := telemetry.Tracer().Start(r.Context(), "http.handle_inbound")
	span.SetAttributes(attribute.String("channel.id", c.id))
	defer span.End()

	// A malformed body is treated as an empty object, so field extraction
	// below simply finds nothing.
	req := message.NewInboundRequest(r, rawBody)
	body := req.BodyObject()

	text := firstString(body, "text", "message", "input")
	if text == "" {
		c.recordInbound(metrics.OutcomeIgnored)
		plugin.WriteJSON(w, http.StatusAccepted, map[string]any{
			"ok": true, "accepted": false, "reason": "no text",
		})
		return
	}

	conversationID := firstString(body, "conversationId", "chatId", "threadId")
	if conversationID == "" {
		conversationID = "http"
	}
	senderID := firstString(body, "senderId", "userId", "from")
	if senderID == "" {
		senderID = "unknown"
	}
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	input := fmt.Sprintf("[channel=%s conversation=%s sender=%s]\n%s",
		c.id, conversationID, senderID, text)

	started := time.Now()
	created, err := c.runtime.CreateTask(ctx, taskapi.CreateTaskParams{
		Type:  task.TypeMessageGatewayInput,
		Input: input,
	})
	c.recordRuntime("create_task", started, err)
	if err != nil {
		c.recordInbound(metrics.OutcomeError)
		c.logger.Error("task submission failed",
			"conversation", conversationID, "request", req.RequestID, "error", err)
		plugin.WriteError(w, http.StatusBadGateway, "task submission failed: "+err.Error())
		return
	}

	c.recordInbound(metrics.OutcomeAccepted)
	c.logger.Info("task submitted",
		"task", created.TaskID, "conversation", conversationID, "request", req.RequestID)
	plugin.WriteJSON(w, http.StatusAccepted, map[string]any{
		"ok": true, "accepted": true, "taskId": created.TaskID,
	})
}

// authorized checks the bearer token in constant time. No configured token
// means the endpoint is open.
func (c *Channel) authorized(r *http.Request) bool {
	if c.settings.AuthToken == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.settings.AuthToken)) == 1
}

// firstString returns the first key whose value is a non-empty string after
// trimming. Non-string values are ignored.
func firstString(body map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := body[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func (c *Channel) recordInbound(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordInbound(c.id, outcome)
	}
}

func (c *Channel) recordRuntime(operation string, started time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	c.metrics.RecordRuntimeRequest(operation, status, time.Since(started).Seconds())
}
