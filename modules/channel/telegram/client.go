package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"
	rateLimitBackoff  = time.Second
	maxResponseBytes  = 10 << 20
)

// Client is a thin HTTP wrapper around the Telegram Bot API methods the
// gateway uses: setWebhook, deleteWebhook, sendMessage.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Bot API client. An empty baseURL selects the public
// API endpoint.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// call sends a JSON POST to the given Bot API method and decodes the
// envelope. A 429 is retried once, honoring Retry-After.
func call[T any](ctx context.Context, c *Client, method string, payload any) (*T, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
		}
	}

	for attempt := range 2 {
		var body io.Reader
		if data != nil {
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return nil, fmt.Errorf("telegram: create %s request: %w", method, err)
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Wrap without the URL so the token never leaks into error
			// messages. The cause is still reachable via Unwrap.
			return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("telegram: read %s response: %w", method, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			backoff := rateLimitBackoff
			var limited APIResponse[json.RawMessage]
			if err := json.Unmarshal(respBody, &limited); err == nil && limited.Parameters != nil && limited.Parameters.RetryAfter > 0 {
				backoff = time.Duration(limited.Parameters.RetryAfter) * time.Second
			}

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			continue
		}

		var env APIResponse[T]
		if err := json.Unmarshal(respBody, &env); err != nil {
			return nil, fmt.Errorf("telegram: decode %s response: %w", method, err)
		}

		if !env.OK {
			apiErr := &APIError{Code: env.ErrorCode, Description: env.Description}
			if env.Parameters != nil {
				apiErr.RetryAfter = env.Parameters.RetryAfter
			}
			return nil, apiErr
		}

		return &env.Result, nil
	}

	return nil, fmt.Errorf("telegram: %s: retries exceeded", method)
}

// SetWebhookRequest is the request body for the setWebhook method.
type SetWebhookRequest struct {
	URL                string `json:"url"`
	SecretToken        string `json:"secret_token,omitempty"`
	DropPendingUpdates bool   `json:"drop_pending_updates,omitempty"`
}

// DeleteWebhookRequest is the request body for the deleteWebhook method.
type DeleteWebhookRequest struct {
	DropPendingUpdates bool `json:"drop_pending_updates,omitempty"`
}

// SendMessageRequest is the request body for the sendMessage method.
type SendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// SetWebhook registers the webhook URL updates are delivered to.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	_, err := call[bool](ctx, c, "setWebhook", req)
	return err
}

// DeleteWebhook removes the webhook integration.
func (c *Client) DeleteWebhook(ctx context.Context, req DeleteWebhookRequest) error {
	_, err := call[bool](ctx, c, "deleteWebhook", req)
	return err
}

// SendMessage sends a text message to the given chat.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	return call[Message](ctx, c, "sendMessage", req)
}
