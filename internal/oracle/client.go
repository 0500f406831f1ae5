// Package oracle provides a narrow client for an OpenAI-compatible
// chat completions endpoint. The rest of the application only sees
// "prompt in, text out" plus sentinel errors.
package oracle

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
)

const (
	// DefaultBaseURL targets the public OpenAI API; overridable for
	// compatible providers and tests.
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultTimeout = 15 * time.Second
	maxBodySize    = 1 << 20 // 1 MB

	completionsPath = "/chat/completions"
)

var (
	// ErrUnauthorized indicates the API key is missing or invalid.
	ErrUnauthorized = errors.New("oracle: unauthorized (invalid API key)")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("oracle: rate limited")
	// ErrMalformed indicates the endpoint answered with a body the
	// client could not use.
	ErrMalformed = errors.New("oracle: malformed response")
)

// Client talks to one completions endpoint with one model.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
}

// Option adjusts a Client at construction.
type Option func(*Client)

// WithBaseURL points the client at a different compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a client for the given API key and model.
// Returns nil if either is empty.
func NewClient(apiKey, model string, opts ...Option) *Client {
	apiKey = strings.TrimSpace(apiKey)
	model = strings.TrimSpace(model)
	if apiKey == "" || model == "" {
		return nil
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		timeout: defaultTimeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the system and user prompts and returns the first
// choice's text. Retryability of failures is the caller's concern;
// this method classifies them via the sentinel errors.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("oracle: encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oracle: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", ErrUnauthorized
	case http.StatusTooManyRequests:
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("oracle: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("oracle: reading response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("oracle: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrMalformed
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", ErrMalformed
	}
	return text, nil
}
