package message

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InboundRequest is an immutable snapshot of one external HTTP call, taken
// before any channel-specific interpretation. Header keys are lower-cased;
// headers and query parameters keep their first value only.
type InboundRequest struct {
	// RequestID is a fresh UUID assigned at capture time.
	RequestID string `json:"requestId"`

	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`

	// Body is the parsed JSON payload, or nil when the body is empty or
	// not valid JSON.
	Body any `json:"body,omitempty"`

	// RawBody is the body exactly as received.
	RawBody []byte `json:"-"`

	// ReceivedAt is wall-clock milliseconds since the Unix epoch.
	ReceivedAt int64 `json:"receivedAt"`
}

// NewInboundRequest captures r and its already-read body into a snapshot.
// The JSON body parse is best-effort: a malformed body leaves Body nil.
func NewInboundRequest(r *http.Request, rawBody []byte) InboundRequest {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		headers[strings.ToLower(name)] = values[0]
	}

	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		query[name] = values[0]
	}

	var body any
	if len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, &body); err != nil {
			body = nil
		}
	}

	return InboundRequest{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Headers:    headers,
		Query:      query,
		Body:       body,
		RawBody:    rawBody,
		ReceivedAt: time.Now().UnixMilli(),
	}
}

// BodyObject returns the parsed body as a JSON object, or nil when the body
// is absent or not an object.
func (r InboundRequest) BodyObject() map[string]any {
	obj, ok := r.Body.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}
