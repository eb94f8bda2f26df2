// Package llm provides a chat-completion client for OpenAI-compatible
// endpoints plus helpers for decoding structured (JSON) model output.
//
// Every caller must treat a completion as untrusted text: parse strictly
// and fall back to a documented default when parsing fails.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/scout/safeurl"
)

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Options tunes a single completion call. Zero values fall back to the
// client's configured defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completer is the capability consumed by the pipeline stages. The concrete
// Client implements it; tests substitute a CompleterFunc.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []Message, opts Options) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	return f(ctx, messages, opts)
}

// ErrEmptyCompletion is returned when the endpoint answers without choices.
var ErrEmptyCompletion = errors.New("llm: completion returned no choices")

// Config configures the Client.
type Config struct {
	// BaseURL of the OpenAI-compatible API, e.g. "https://api.openai.com/v1".
	BaseURL string
	// APIKey sent as a Bearer token. Empty disables the Authorization header.
	APIKey string
	// Model used when Options.Model is empty.
	Model string
	// MaxTokens used when Options.MaxTokens is zero. Default: 2000.
	MaxTokens int
	// Timeout per HTTP call. Default: 60s.
	Timeout time.Duration
	// MaxRetries on 429/5xx and transport errors. Default: 2.
	MaxRetries int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client calls a chat-completions endpoint.
type Client struct {
	client *http.Client
	cfg    Config
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends messages and returns the first choice's content.
// Retries transient failures (429, 5xx, transport errors) with backoff.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("llm: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("llm: http: %w", err)
			continue
		}

		data, readErr := safeurl.LimitedReadAll(resp.Body, 10*1024*1024)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("llm: read body: %w", readErr)
			continue
		}

		if retryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("llm: http %d", resp.StatusCode)
			c.cfg.Logger.Warn("llm: retryable status", "status", resp.StatusCode, "attempt", attempt)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("llm: http %d: %s", resp.StatusCode, truncate(string(data), 200))
		}

		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return "", fmt.Errorf("llm: decode response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("llm: api error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", ErrEmptyCompletion
		}
		return parsed.Choices[0].Message.Content, nil
	}

	if lastErr == nil {
		lastErr = errors.New("llm: exhausted retries")
	}
	return "", lastErr
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
