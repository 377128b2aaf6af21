package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iksnae/agent-chat/internal"
)

const (
	defaultTimeout = 30 * time.Second
	// maxErrorBody bounds how much of a failed response is read for its message
	maxErrorBody = 4096
)

// Client submits user turns to the agent's chat endpoint
type Client struct {
	http *http.Client
	url  string
}

// NewClient creates a chat endpoint client. A zero timeout uses the default.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		url:  strings.TrimSpace(url),
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// URL returns the chat endpoint
func (c *Client) URL() string {
	return c.url
}

// Submit posts one message. Any failure, including a non-2xx status, is
// returned as an *internal.TransportError whose wrapped error carries the
// human-readable reason.
func (c *Client) Submit(ctx context.Context, req internal.ChatRequest) (*internal.ChatAck, error) {
	if c.url == "" {
		return nil, &internal.ConfigError{Key: "api_url", Err: errors.New("chat endpoint URL is not configured")}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &internal.TransportError{Op: "submit", URL: c.url, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &internal.TransportError{Op: "submit", URL: c.url, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	internal.LogDebug("POST %s (session %s)", c.url, req.SessionID)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &internal.TransportError{Op: "submit", URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &internal.TransportError{
			Op:     "submit",
			URL:    c.url,
			Status: resp.StatusCode,
			Err:    errors.New(errorMessage(resp.StatusCode, raw)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &internal.TransportError{Op: "submit", URL: c.url, Status: resp.StatusCode, Err: err}
	}
	ack := &internal.ChatAck{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ack, nil
	}
	if err := json.Unmarshal(raw, ack); err != nil {
		// The turn still went through; the body is just not an acknowledgement
		internal.LogWarn("Chat endpoint returned an unreadable acknowledgement: %v", err)
		return &internal.ChatAck{}, nil
	}
	return ack, nil
}

// errorMessage pulls a human message out of an error body, falling back to
// the HTTP status text
func errorMessage(status int, body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if msg := messageField(parsed[key]); msg != "" {
				return msg
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

func messageField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, key := range []string{"message", "detail", "error"} {
			if msg := messageField(t[key]); msg != "" {
				return msg
			}
		}
	case []any:
		if len(t) > 0 {
			return messageField(t[0])
		}
	}
	return ""
}

// Ping checks that the chat endpoint answers HTTP at all. Any response,
// including 405 for the GET, counts as reachable; only 5xx and network
// failures are errors.
func (c *Client) Ping(ctx context.Context) (int, error) {
	if c.url == "" {
		return 0, &internal.ConfigError{Key: "api_url", Err: errors.New("chat endpoint URL is not configured")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, &internal.TransportError{Op: "ping", URL: c.url, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &internal.TransportError{Op: "ping", URL: c.url, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 500 {
		return resp.StatusCode, &internal.TransportError{
			Op:     "ping",
			URL:    c.url,
			Status: resp.StatusCode,
			Err:    errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	return resp.StatusCode, nil
}
