package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atomhq/atomgw/internal/taskapi"
	"github.com/atomhq/atomgw/pkg/message"
)

// fakeBotAPI records sendMessage calls in order.
type fakeBotAPI struct {
	mu    sync.Mutex
	sends []SendMessageRequest
	fail  bool
}

func (f *fakeBotAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
			return
		}
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"bad body"}`)
			return
		}
		f.mu.Lock()
		fail := f.fail
		if !fail {
			f.sends = append(f.sends, req)
		}
		f.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"chat not found"}`)
			return
		}
		_, _ = io.WriteString(w, fmt.Sprintf(`{"ok":true,"result":{"message_id":1,"chat":{"id":%d}}}`, req.ChatID))
	})
}

func (f *fakeBotAPI) sent() []SendMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendMessageRequest(nil), f.sends...)
}

// fakeRuntime serves task creation and a scripted sequence of snapshots.
type fakeRuntime struct {
	mu        sync.Mutex
	creates   []taskapi.CreateTaskParams
	snapshots []string
	polls     int
	failOn    string
}

func (f *fakeRuntime) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/tasks":
			if f.failOn == "create" {
				_, _ = io.WriteString(w, `{"ok":false,"error":{"code":"QUEUE_FULL","message":"queue full"}}`)
				return
			}
			var params taskapi.CreateTaskParams
			_ = json.NewDecoder(r.Body).Decode(&params)
			f.creates = append(f.creates, params)
			_, _ = io.WriteString(w, `{"ok":true,"data":{"taskId":"task-1","task":{"id":"task-1","status":"pending"}}}`)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/tasks/"):
			snap := f.snapshots[min(f.polls, len(f.snapshots)-1)]
			f.polls++
			_, _ = io.WriteString(w, fmt.Sprintf(`{"ok":true,"data":{"task":%s}}`, snap))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"ok":false,"error":{"code":"NOT_FOUND","message":"not found"}}`)
		}
	})
}

func pipelineChannel(t *testing.T, bot *fakeBotAPI, runtime *fakeRuntime, mutate func(*Settings)) *Channel {
	t.Helper()

	botSrv := httptest.NewServer(bot.handler())
	t.Cleanup(botSrv.Close)
	rtSrv := httptest.NewServer(runtime.handler())
	t.Cleanup(rtSrv.Close)

	c := testChannel(t, func(s *Settings) {
		s.APIBaseURL = botSrv.URL
		s.PollInterval = time.Millisecond
		if mutate != nil {
			mutate(s)
		}
	})
	c.client = NewClient(c.settings.BotToken, botSrv.URL)
	c.runtime = taskapi.New(rtSrv.URL)
	return c
}

func isAck(text string) bool {
	for _, phrase := range ackPool {
		if text == EscapeMarkdownV2(phrase) || text == phrase {
			return true
		}
	}
	return false
}

func TestProcessMessage_AckThenReply(t *testing.T) {
	bot := &fakeBotAPI{}
	runtime := &fakeRuntime{snapshots: []string{
		`{"id":"task-1","status":"pending"}`,
		`{"id":"task-1","status":"running"}`,
		`{"id":"task-1","status":"success","result":"All done."}`,
	}}
	c := pipelineChannel(t, bot, runtime, nil)

	c.processMessage(context.Background(), message.InboundMessage{
		ConversationID: "100",
		SenderID:       "55",
		MessageID:      "7",
		Text:           "run the report",
	})

	sends := bot.sent()
	if len(sends) != 2 {
		t.Fatalf("sends = %+v, want ack then reply", sends)
	}
	if !isAck(sends[0].Text) {
		t.Errorf("first send %q is not an acknowledgement", sends[0].Text)
	}
	if want := `All done\.`; sends[1].Text != want {
		t.Errorf("reply = %q, want %q", sends[1].Text, want)
	}
	if sends[1].ParseMode != "MarkdownV2" {
		t.Errorf("reply parse mode = %q, want MarkdownV2", sends[1].ParseMode)
	}

	if len(runtime.creates) != 1 {
		t.Fatalf("creates = %+v, want one", runtime.creates)
	}
	created := runtime.creates[0]
	if created.Type != "message_gateway.input" {
		t.Errorf("task type = %q", created.Type)
	}
	if !strings.Contains(created.Input, "[channel=tg-main conversation=100 sender=55]") {
		t.Errorf("task input %q missing routing header", created.Input)
	}
	if !strings.HasSuffix(created.Input, "\nrun the report") {
		t.Errorf("task input %q missing message text", created.Input)
	}
	if runtime.polls < 3 {
		t.Errorf("polls = %d, want at least 3", runtime.polls)
	}
}

func TestProcessMessage_FailedTaskNotice(t *testing.T) {
	bot := &fakeBotAPI{}
	runtime := &fakeRuntime{snapshots: []string{
		`{"id":"task-1","status":"failed","error":{"message":"tool exploded"}}`,
	}}
	c := pipelineChannel(t, bot, runtime, nil)

	c.processMessage(context.Background(), message.InboundMessage{ConversationID: "100", Text: "go"})

	sends := bot.sent()
	if len(sends) != 2 {
		t.Fatalf("sends = %+v, want ack then notice", sends)
	}
	notice := sends[1].Text
	if !strings.Contains(notice, "tool exploded") {
		t.Errorf("notice = %q, want failure message", notice)
	}
}

func TestProcessMessage_CreateFailureTellsUser(t *testing.T) {
	bot := &fakeBotAPI{}
	runtime := &fakeRuntime{failOn: "create"}
	c := pipelineChannel(t, bot, runtime, nil)

	c.processMessage(context.Background(), message.InboundMessage{ConversationID: "100", Text: "go"})

	sends := bot.sent()
	if len(sends) != 2 {
		t.Fatalf("sends = %+v, want ack then error notice", sends)
	}
	notice := sends[1].Text
	if !strings.HasPrefix(notice, EscapeMarkdownV2("Task failed: ")) {
		t.Errorf("notice = %q, want %q prefix", notice, "Task failed: ")
	}
	if !strings.Contains(notice, "queue full") {
		t.Errorf("notice = %q, want remote message", notice)
	}
}

func TestSendText_EmptyBecomesPlaceholder(t *testing.T) {
	bot := &fakeBotAPI{}
	c := pipelineChannel(t, bot, &fakeRuntime{}, nil)

	if err := c.sendText(context.Background(), "100", ""); err != nil {
		t.Fatalf("sendText: %v", err)
	}

	sends := bot.sent()
	if len(sends) != 1 {
		t.Fatalf("sends = %+v, want one", sends)
	}
	if want := `\(empty result\)`; sends[0].Text != want {
		t.Errorf("text = %q, want %q", sends[0].Text, want)
	}
}

func TestSendText_ChunksSequentially(t *testing.T) {
	bot := &fakeBotAPI{}
	c := pipelineChannel(t, bot, &fakeRuntime{}, func(s *Settings) {
		s.ParseMode = "plain"
		s.ChunkSize = 4
	})

	if err := c.sendText(context.Background(), "100", "abcdefghij"); err != nil {
		t.Fatalf("sendText: %v", err)
	}

	sends := bot.sent()
	want := []string{"abcd", "efgh", "ij"}
	if len(sends) != len(want) {
		t.Fatalf("sends = %+v, want %d chunks", sends, len(want))
	}
	for i, req := range sends {
		if req.Text != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, req.Text, want[i])
		}
		if req.ParseMode != "" {
			t.Errorf("chunk[%d] parse mode = %q, want empty in plain mode", i, req.ParseMode)
		}
		if req.ChatID != 100 {
			t.Errorf("chunk[%d] chat id = %d, want 100", i, req.ChatID)
		}
	}
}

func TestSendText_InvalidChatID(t *testing.T) {
	bot := &fakeBotAPI{}
	c := pipelineChannel(t, bot, &fakeRuntime{}, nil)

	if err := c.sendText(context.Background(), "not-a-number", "hi"); err == nil {
		t.Fatal("sendText succeeded, want error")
	}
	if sends := bot.sent(); len(sends) != 0 {
		t.Errorf("sends = %+v, want none", sends)
	}
}

func TestSendText_DeliveryFailure(t *testing.T) {
	bot := &fakeBotAPI{fail: true}
	c := pipelineChannel(t, bot, &fakeRuntime{}, nil)

	err := c.sendText(context.Background(), "100", "hi")
	if err == nil {
		t.Fatal("sendText succeeded, want error")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error = %v, want API description", err)
	}
}

func TestProcessParsedInbound_ImmediateResponses(t *testing.T) {
	bot := &fakeBotAPI{}
	c := pipelineChannel(t, bot, &fakeRuntime{}, nil)

	c.processParsedInbound(context.Background(), message.ParsedInbound{
		Accepted: true,
		ImmediateResponses: []message.ImmediateReply{
			{ConversationID: "100", Text: noticeStart},
		},
	})

	sends := bot.sent()
	if len(sends) != 1 {
		t.Fatalf("sends = %+v, want one", sends)
	}
	if want := EscapeMarkdownV2(noticeStart); sends[0].Text != want {
		t.Errorf("text = %q, want %q", sends[0].Text, want)
	}
}
