package telegram

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/atomhq/atomgw/pkg/message"
)

const secretTokenHeader = "x-telegram-bot-api-secret-token"

// commandPattern matches a leading bot command, with an optional @botname
// suffix Telegram appends in group chats.
var commandPattern = regexp.MustCompile(`^/([a-zA-Z0-9_]+)(?:@[a-zA-Z0-9_]+)?(?:\s|$)`)

const (
	noticeTextOnly = "Only text messages are supported."
	noticeStart    = "Atom bot is ready. Send a message to start a task."

	helpText = `Atom bot commands:

/start - check that the bot is alive
/help - show this message

Send any other text and it runs as a task. You get a short
acknowledgement right away and the result when the task completes.`
)

// parseInbound interprets one webhook delivery. It is pure over the
// request snapshot and the channel settings.
//
// Accepted=false only for a secret-token mismatch. Everything else is
// acknowledged: updates without a usable message are silently ignored,
// commands and non-text messages produce immediate responses, and plain
// text becomes one inbound message.
func (c *Channel) parseInbound(req message.InboundRequest) message.ParsedInbound {
	if c.settings.WebhookSecretToken != "" {
		if req.Headers[secretTokenHeader] != c.settings.WebhookSecretToken {
			return message.ParsedInbound{Accepted: false}
		}
	}

	body := req.BodyObject()
	if body == nil {
		return message.ParsedInbound{Accepted: true}
	}
	msg, ok := body["message"].(map[string]any)
	if !ok {
		return message.ParsedInbound{Accepted: true}
	}

	chat, _ := msg["chat"].(map[string]any)
	chatID := jsonString(chat["id"])
	if _, allowed := c.settings.AllowedChatIDs[chatID]; !allowed {
		return message.ParsedInbound{Accepted: true}
	}

	text, _ := msg["text"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return message.ParsedInbound{
			Accepted: true,
			ImmediateResponses: []message.ImmediateReply{
				{ConversationID: chatID, Text: noticeTextOnly},
			},
		}
	}

	if m := commandPattern.FindStringSubmatch(text); m != nil {
		switch strings.ToLower(m[1]) {
		case "start":
			return message.ParsedInbound{
				Accepted: true,
				ImmediateResponses: []message.ImmediateReply{
					{ConversationID: chatID, Text: noticeStart},
				},
			}
		case "help":
			return message.ParsedInbound{
				Accepted: true,
				ImmediateResponses: []message.ImmediateReply{
					{ConversationID: chatID, Text: helpText},
				},
			}
		}
	}

	inbound := message.InboundMessage{
		ConversationID: chatID,
		Text:           text,
		Metadata: map[string]any{
			"updateId": body["update_id"],
			"chatType": chat["type"],
		},
	}
	if from, ok := msg["from"].(map[string]any); ok {
		inbound.SenderID = jsonString(from["id"])
	}
	if id, ok := msg["message_id"]; ok {
		inbound.MessageID = jsonString(id)
	}

	return message.ParsedInbound{Accepted: true, Messages: []message.InboundMessage{inbound}}
}

// jsonString renders a decoded JSON scalar the way the platform writes it:
// integral numbers without a fraction, everything else via its string form.
func jsonString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
