package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"inboxpilot/internal/logging"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 120 * time.Second
	maxRetries     = 3
)

// Client is a minimal Ollama chat client.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds the client settings. Zero values select the local
// Ollama defaults.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// New returns a Client using its own HTTP client with the configured
// timeout.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

// NewWithClient returns a Client using the given HTTP client, for tests
// and custom transports.
func NewWithClient(cfg Config, client *http.Client) *Client {
	c := New(cfg)
	if client != nil {
		c.client = client
	}
	return c
}

// Healthy reports whether the Ollama server is reachable.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// chatRequest matches the Ollama /api/chat request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message    chatMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason"`
}

// Complete sends a single-turn prompt to the given model and returns the
// model's text output. Connection failures, 5xx responses, and decode
// errors are retried up to maxRetries times with a square backoff; 4xx
// responses fail immediately.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("oracle: model is required")
	}

	jsonBody, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var out chatResponse
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			c.logger.Warn("retrying ollama request",
				slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
		if err != nil {
			return "", fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < maxRetries {
				c.logger.Warn("ollama request failed, will retry", logging.Err(err))
				continue
			}
			return "", fmt.Errorf("ollama request (after %d retries): %w", maxRetries, err)
		}

		if resp.StatusCode >= 500 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if attempt < maxRetries {
				c.logger.Warn("ollama server error, will retry",
					slog.Int("status", resp.StatusCode), slog.String("body", string(respBody)))
				continue
			}
			return "", fmt.Errorf("ollama returned %d (after %d retries): %s", resp.StatusCode, maxRetries, string(respBody))
		}

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			resp.Body.Close()
			if attempt < maxRetries {
				c.logger.Warn("ollama decode error, will retry", logging.Err(err))
				continue
			}
			return "", fmt.Errorf("decode response (after %d retries): %w", maxRetries, err)
		}
		resp.Body.Close()
		break
	}

	return out.Message.Content, nil
}
