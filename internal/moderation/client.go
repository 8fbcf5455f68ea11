package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable wraps every failure to obtain a verdict: timeouts,
// transport errors, non-2xx responses and malformed bodies.
var ErrUnavailable = errors.New("moderation unavailable")

const maxResponseBytes = 1 << 20

type moderateRequest struct {
	Text string `json:"text"`
}

// Client calls the moderation service over HTTP.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
}

// NewClient builds a client for the service at baseURL. timeout bounds every
// call and must be positive. httpClient may be nil.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("moderation timeout must be positive, got %s", timeout)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse moderation url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("moderation url must be http(s), got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/moderate",
		timeout:  timeout,
		http:     httpClient,
	}, nil
}

// Moderate asks the service for a verdict on text.
func (c *Client) Moderate(ctx context.Context, text string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(moderateRequest{Text: text})
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return Verdict{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if err := verdict.Validate(); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if verdict.Labels == nil {
		verdict.Labels = []string{}
	}

	return verdict, nil
}

// Disabled is used when no moderation service is configured. Every call
// fails, leaving the outcome to the failure policy.
type Disabled struct{}

// Moderate always returns ErrUnavailable.
func (Disabled) Moderate(context.Context, string) (Verdict, error) {
	return Verdict{}, fmt.Errorf("%w: no moderation service configured", ErrUnavailable)
}
