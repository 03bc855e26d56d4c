// Package provider wraps HTTP access to the external AI services. Every
// request goes through the gateway, so callers inherit circuit breaking,
// concurrency limits, timeouts, and retries without thinking about them.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/heirclark17/resume-ai-backend/internal/gateway"
)

const maxErrorBodyBytes = 2048

// Client calls one external service. The name doubles as the gateway
// dependency key, so its guard settings come from that config entry.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	gw      *gateway.Gateway
	httpc   *http.Client
	logger  *slog.Logger
}

// New creates a provider client. The http.Client carries no timeout of its
// own; the gateway enforces the per-call deadline.
func New(name, baseURL, apiKey string, gw *gateway.Gateway, logger *slog.Logger) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		gw:      gw,
		httpc:   &http.Client{},
		logger:  logger,
	}
}

// Name returns the gateway dependency key this client calls under
func (c *Client) Name() string {
	return c.name
}

// PostJSON sends payload to path and decodes the response body into out.
// Non-2xx responses surface as *gateway.HTTPError so the retry policy can
// classify them.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", c.name, err)
	}

	return c.gw.Do(ctx, c.name, func(ctx context.Context) error {
		return c.post(ctx, path, body, out)
	})
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", c.name, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &gateway.HTTPError{
			Dependency: c.name,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}

	return nil
}

// parseRetryAfter handles both Retry-After forms: delay seconds and an HTTP
// date. Unparseable or absent values yield zero, meaning no hint.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}
