package telegram

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/atomhq/atomgw/pkg/message"
)

func testChannel(t *testing.T, mutate func(*Settings)) *Channel {
	t.Helper()

	settings := &Settings{
		AllowedChatIDs: map[string]struct{}{"100": {}},
		BotToken:       "12345:token",
		WebhookPath:    defaultWebhookPath,
		ParseMode:      defaultParseMode,
		ChunkSize:      defaultChunkSize,
		PollInterval:   defaultPollInterval,
	}
	if mutate != nil {
		mutate(settings)
	}
	return &Channel{
		id:       "tg-main",
		settings: settings,
		logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func updateRequest(t *testing.T, headers map[string]string, body string) message.InboundRequest {
	t.Helper()

	req := message.InboundRequest{
		Method:  "POST",
		Headers: map[string]string{},
	}
	for k, v := range headers {
		req.Headers[strings.ToLower(k)] = v
	}
	if body != "" {
		req.RawBody = []byte(body)
		if err := json.Unmarshal(req.RawBody, &req.Body); err != nil {
			t.Fatalf("test body is not valid JSON: %v", err)
		}
	}
	return req
}

func TestParseInbound_SecretToken(t *testing.T) {
	c := testChannel(t, func(s *Settings) { s.WebhookSecretToken = "s3cret" })
	body := `{"update_id":1,"message":{"message_id":7,"chat":{"id":100,"type":"private"},"text":"hi"}}`

	t.Run("mismatch rejected", func(t *testing.T) {
		parsed := c.parseInbound(updateRequest(t, map[string]string{secretTokenHeader: "wrong"}, body))
		if parsed.Accepted {
			t.Error("Accepted = true, want rejection on secret mismatch")
		}
	})

	t.Run("missing rejected", func(t *testing.T) {
		parsed := c.parseInbound(updateRequest(t, nil, body))
		if parsed.Accepted {
			t.Error("Accepted = true, want rejection when header absent")
		}
	})

	t.Run("match accepted", func(t *testing.T) {
		parsed := c.parseInbound(updateRequest(t, map[string]string{secretTokenHeader: "s3cret"}, body))
		if !parsed.Accepted || len(parsed.Messages) != 1 {
			t.Errorf("parsed = %+v, want one accepted message", parsed)
		}
	})
}

func TestParseInbound(t *testing.T) {
	c := testChannel(t, nil)

	tests := []struct {
		name          string
		body          string
		wantMessages  int
		wantImmediate string
	}{
		{"empty body ignored", "", 0, ""},
		{"no message field ignored", `{"update_id":1}`, 0, ""},
		{
			"chat not allow-listed ignored",
			`{"update_id":1,"message":{"chat":{"id":999,"type":"private"},"text":"hi"}}`,
			0, "",
		},
		{
			"non-text message gets notice",
			`{"update_id":1,"message":{"chat":{"id":100,"type":"private"}}}`,
			0, noticeTextOnly,
		},
		{
			"whitespace-only text gets notice",
			`{"update_id":1,"message":{"chat":{"id":100,"type":"private"},"text":"   "}}`,
			0, noticeTextOnly,
		},
		{
			"start command",
			`{"update_id":1,"message":{"chat":{"id":100,"type":"private"},"text":"/start"}}`,
			0, noticeStart,
		},
		{
			"help command",
			`{"update_id":1,"message":{"chat":{"id":100,"type":"private"},"text":"/help"}}`,
			0, helpText,
		},
		{
			"command with bot suffix",
			`{"update_id":1,"message":{"chat":{"id":100,"type":"private"},"text":"/help@atom_bot"}}`,
			0, helpText,
		},
		{
			"unknown command runs as task",
			`{"update_id":1,"message":{"chat":{"id":100,"type":"private"},"text":"/deploy prod"}}`,
			1, "",
		},
		{
			"slash mid-text runs as task",
			`{"update_id":1,"message":{"chat":{"id":100,"type":"private"},"text":"a/b testing"}}`,
			1, "",
		},
		{
			"plain text becomes message",
			`{"update_id":42,"message":{"message_id":7,"from":{"id":55},"chat":{"id":100,"type":"private"},"text":"run the report"}}`,
			1, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := c.parseInbound(updateRequest(t, nil, tt.body))

			if !parsed.Accepted {
				t.Fatal("Accepted = false, want true")
			}
			if len(parsed.Messages) != tt.wantMessages {
				t.Fatalf("messages = %+v, want %d", parsed.Messages, tt.wantMessages)
			}
			if tt.wantImmediate == "" {
				if len(parsed.ImmediateResponses) != 0 {
					t.Fatalf("immediate responses = %+v, want none", parsed.ImmediateResponses)
				}
				return
			}
			if len(parsed.ImmediateResponses) != 1 {
				t.Fatalf("immediate responses = %+v, want one", parsed.ImmediateResponses)
			}
			reply := parsed.ImmediateResponses[0]
			if reply.ConversationID != "100" {
				t.Errorf("ConversationID = %q, want %q", reply.ConversationID, "100")
			}
			if reply.Text != tt.wantImmediate {
				t.Errorf("Text = %q, want %q", reply.Text, tt.wantImmediate)
			}
		})
	}
}

func TestParseInbound_MessageFields(t *testing.T) {
	c := testChannel(t, nil)
	body := `{"update_id":42,"message":{"message_id":7,"from":{"id":55},"chat":{"id":100,"type":"group"},"text":"  run the report  "}}`

	parsed := c.parseInbound(updateRequest(t, nil, body))
	if len(parsed.Messages) != 1 {
		t.Fatalf("messages = %+v, want one", parsed.Messages)
	}

	msg := parsed.Messages[0]
	if msg.ConversationID != "100" {
		t.Errorf("ConversationID = %q, want %q", msg.ConversationID, "100")
	}
	if msg.SenderID != "55" {
		t.Errorf("SenderID = %q, want %q", msg.SenderID, "55")
	}
	if msg.MessageID != "7" {
		t.Errorf("MessageID = %q, want %q", msg.MessageID, "7")
	}
	if msg.Text != "run the report" {
		t.Errorf("Text = %q, want trimmed", msg.Text)
	}
	if got := msg.Metadata["chatType"]; got != "group" {
		t.Errorf("Metadata[chatType] = %v, want group", got)
	}
	if got, ok := msg.Metadata["updateId"].(float64); !ok || got != 42 {
		t.Errorf("Metadata[updateId] = %v, want 42", msg.Metadata["updateId"])
	}
}

func TestJSONString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "abc", "abc"},
		{"integral float", 1234567890.0, "1234567890"},
		{"negative id", -1001234.0, "-1001234"},
		{"fractional float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"object", map[string]any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jsonString(tt.in); got != tt.want {
				t.Errorf("jsonString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
