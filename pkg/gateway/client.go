package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds every outbound gateway call.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of a gateway response is read.
const maxResponseBytes = 1 << 20

// HTTPDoer is the subset of *http.Client used by the gateway clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an *http.Client with a bounded timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// JSONClient sends JSON requests to one gateway API.
type JSONClient struct {
	Gateway string
	BaseURL string
	Headers map[string]string
	HTTP    HTTPDoer
}

// Do sends payload as JSON and decodes a 2xx response into out. A non-2xx
// response is returned as an *APIError carrying message.
func (c *JSONClient) Do(ctx context.Context, method, path string, payload, out any, message func([]byte) string) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", c.Gateway, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", c.Gateway, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", c.Gateway, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", c.Gateway, err)
	}
	slog.Log(ctx, slog.LevelDebug, "gateway call",
		"gateway", c.Gateway, "path", path, "status", resp.StatusCode, "latency", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if message != nil {
			if m := message(raw); m != "" {
				msg = m
			}
		}
		return &APIError{Gateway: c.Gateway, StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unexpected %s response shape: %w", c.Gateway, err)
		}
	}
	return nil
}
