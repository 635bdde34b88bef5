package telegram

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/atomhq/atomgw/internal/metrics"
	"github.com/atomhq/atomgw/internal/taskapi"
	"github.com/atomhq/atomgw/internal/telemetry"
	"github.com/atomhq/atomgw/pkg/message"
	"github.com/atomhq/atomgw/pkg/task"
)

// ackPool holds the reassurance strings sent before task submission, so
// the user sees liveness while the task runs. One is drawn uniformly per
// message.
var ackPool = [...]string{
	"收到，正在思考中，请稍候。",
	"收到，马上处理。",
	"好的，我来看看。",
	"明白了，正在处理中。",
	"收到，请稍等片刻。",
	"好的，任务已经开始。",
	"收到，正在为你处理。",
	"了解，马上开始。",
	"收到，稍等一下。",
	"好的，正在安排。",
}

// processParsedInbound runs the asynchronous half of one webhook delivery:
// immediate responses first, then the ack-task-poll-reply pipeline per
// inbound message. Nothing here propagates; every failure is logged and,
// where possible, surfaced to the user.
func (c *Channel) processParsedInbound(ctx context.Context, parsed message.ParsedInbound) {
	for _, reply := range parsed.ImmediateResponses {
		if err := c.sendText(ctx, reply.ConversationID, reply.Text); err != nil {
			c.logger.Error("immediate response delivery failed",
				"conversation", reply.ConversationID, "error", err)
		}
	}

	for _, msg := range parsed.Messages {
		c.processMessage(ctx, msg)
	}
}

// processMessage runs one message end to end: ack, task creation, polling,
// reply. The ack is best-effort; everything after it shares one error path
// that tells the user the task failed.
func (c *Channel) processMessage(ctx context.Context, msg message.InboundMessage) {
	ctx, span := telemetry.Tracer().Start(ctx, "telegram.process_message")
	span.SetAttributes(
		attribute.String("channel.id", c.id),
		attribute.String("conversation.id", msg.ConversationID),
	)
	defer span.End()

	if err := c.sendText(ctx, msg.ConversationID, ackPool[rand.IntN(len(ackPool))]); err != nil {
		c.logger.Warn("ack delivery failed", "conversation", msg.ConversationID, "error", err)
	}

	reply, err := c.runTask(ctx, msg)
	if err != nil {
		c.logger.Error("message pipeline failed",
			"conversation", msg.ConversationID, "message", msg.MessageID, "error", err)
		if sendErr := c.sendText(ctx, msg.ConversationID, "Task failed: "+err.Error()); sendErr != nil {
			c.logger.Error("error notice delivery failed",
				"conversation", msg.ConversationID, "error", sendErr)
		}
		return
	}

	if err := c.sendText(ctx, msg.ConversationID, reply); err != nil {
		c.logger.Error("reply delivery failed",
			"conversation", msg.ConversationID, "error", err)
	}
}

// runTask submits the message as a runtime task and polls it to a terminal
// state, returning the user-visible reply.
func (c *Channel) runTask(ctx context.Context, msg message.InboundMessage) (string, error) {
	input := fmt.Sprintf("[channel=%s conversation=%s sender=%s]\n%s",
		c.id, msg.ConversationID, msg.SenderID, msg.Text)

	started := time.Now()
	created, err := c.runtime.CreateTask(ctx, taskapi.CreateTaskParams{
		Type:  task.TypeMessageGatewayInput,
		Input: input,
	})
	c.recordRuntime("create_task", started, err)
	if err != nil {
		return "", err
	}

	return c.awaitTaskResult(ctx, created.TaskID)
}

// awaitTaskResult polls the task until it leaves pending/running, then
// summarizes the terminal snapshot. There is no deadline of its own; the
// runtime owns task timeouts and ctx owns cancellation.
func (c *Channel) awaitTaskResult(ctx context.Context, taskID string) (string, error) {
	for {
		started := time.Now()
		res, err := c.runtime.GetTask(ctx, taskID)
		c.recordRuntime("get_task", started, err)
		if err != nil {
			return "", err
		}

		if task.StillRunning(res.Task.Status) {
			timer := time.NewTimer(c.settings.PollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			continue
		}

		summary := task.Summarize(res.Task)
		if summary.Kind == task.KindAssistantReply {
			return summary.ReplyText, nil
		}
		return summary.StatusNotice, nil
	}
}

// sendText delivers text to a chat with the channel's framing: empty text
// becomes a placeholder, MarkdownV2 mode escapes, and the result is split
// into chunks sent sequentially. A chunk failure aborts the rest.
func (c *Channel) sendText(ctx context.Context, conversationID, text string) error {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", conversationID, err)
	}

	if text == "" {
		text = "(empty result)"
	}

	parseMode := ""
	if c.settings.ParseMode == "MarkdownV2" {
		text = EscapeMarkdownV2(text)
		parseMode = "MarkdownV2"
	}

	chunks, err := SplitText(text, c.settings.ChunkSize)
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		_, err := c.client.SendMessage(ctx, SendMessageRequest{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: parseMode,
		})
		if err != nil {
			c.recordOutbound(metrics.StatusError)
			return fmt.Errorf("telegram: send chunk: %w", err)
		}
		c.recordOutbound(metrics.StatusOK)
	}
	return nil
}

func (c *Channel) recordOutbound(status string) {
	if c.metrics != nil {
		c.metrics.RecordOutbound(c.id, status)
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
