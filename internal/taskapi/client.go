// Package taskapi is the typed HTTP client for the task runtime: create a
// task, fetch a task. The JSON envelope is authoritative over the HTTP
// status; failures map onto three error kinds (network, remote, invalid
// response). The client never retries and never caches; callers own the
// polling cadence.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/atomhq/atomgw/pkg/task"
)

const maxResponseBytes = 10 << 20

// Client talks to one task runtime instance.
type Client struct {
	base string
	http *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the runtime at baseURL. A trailing slash is
// stripped. The default HTTP client carries no timeout; pass a context to
// bound individual calls.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized runtime base URL.
func (c *Client) BaseURL() string { return c.base }

// CreateTaskParams is the body of POST /v1/tasks.
type CreateTaskParams struct {
	Input    string `json:"input"`
	Priority *int   `json:"priority,omitempty"`
	Type     string `json:"type,omitempty"`
}

// CreateTaskResult is the data payload returned by task creation.
type CreateTaskResult struct {
	TaskID string        `json:"taskId"`
	Task   task.Snapshot `json:"task"`
}

// GetTaskResult is the data payload returned by a task fetch.
type GetTaskResult struct {
	Task     task.Snapshot     `json:"task"`
	Messages []json.RawMessage `json:"messages,omitempty"`
}

// CreateTask submits a new task.
func (c *Client) CreateTask(ctx context.Context, params CreateTaskParams) (*CreateTaskResult, error) {
	return call[CreateTaskResult](ctx, c, http.MethodPost, "/v1/tasks", params)
}

// GetTask fetches the current snapshot of a task. The id is URL-escaped.
func (c *Client) GetTask(ctx context.Context, id string) (*GetTaskResult, error) {
	return call[GetTaskResult](ctx, c, http.MethodGet, "/v1/tasks/"+url.PathEscape(id), nil)
}

// envelope is the runtime's uniform response wrapper.
type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *remoteFailure  `json:"error,omitempty"`
}

type remoteFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call performs one request and decodes the envelope's data into T.
func call[T any](ctx context.Context, c *Client, method, path string, payload any) (*T, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("taskapi: marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("taskapi: create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Base: c.base, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Base: c.base, Err: err}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, &InvalidResponseError{Base: c.base, Reason: "empty body"}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &InvalidResponseError{Base: c.base, Reason: "body is not valid JSON"}
	}

	// The envelope is authoritative: ok:false is an error regardless of
	// the HTTP status, and ok:true with data is a success.
	if !env.OK {
		if env.Error != nil {
			return nil, &RemoteError{Code: env.Error.Code, Message: env.Error.Message}
		}
		return nil, &InvalidResponseError{Base: c.base, Reason: "error envelope without error payload"}
	}

	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return nil, &InvalidResponseError{Base: c.base, Reason: "success envelope without data"}
	}

	out := new(T)
	if err := json.Unmarshal(env.Data, out); err != nil {
		return nil, &InvalidResponseError{Base: c.base, Reason: fmt.Sprintf("data payload: %v", err)}
	}
	return out, nil
}
