// Package llm talks to an OpenAI-compatible chat completions endpoint.
// The client performs a single exchange per call; retry policy lives with
// the caller.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/logging"
)

// Config holds the endpoint settings for a chat completions provider.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Client implements core.Generator against a chat completions API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a chat completions client. The http.Client is reused
// across calls so connections are pooled.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, core.ErrConfig(core.CodeMissingEndpoint, "generator base URL is required")
	}
	if cfg.Model == "" {
		return nil, core.ErrConfig(core.CodeInvalidConfig, "generator model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends one prompt and returns the model's text answer.
func (c *Client) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/chat/completions"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.ErrConnection(fmt.Sprintf("read chat response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", core.ErrMalformed(fmt.Sprintf("undecodable chat response: %v", err))
	}
	if parsed.Error != nil {
		return "", core.ErrMalformed(fmt.Sprintf("provider error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", core.ErrEmptyResponse("no choices in chat response")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", core.ErrEmptyResponse("empty completion text")
	}

	c.logger.Debug("generator call completed",
		"model", c.cfg.Model,
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"response_len", len(text))
	return text, nil
}

// Ping checks the endpoint is reachable and authorized.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/models"), nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return classifyStatus(resp.StatusCode, nil)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return core.ErrTimeout(fmt.Sprintf("generator call timed out: %v", err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return core.ErrConnection(fmt.Sprintf("generator unreachable: %v", err))
}

func classifyStatus(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 300 {
		detail = detail[:300]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return core.ErrConnection(fmt.Sprintf("rate limited (429): %s", detail))
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return core.ErrTimeout(fmt.Sprintf("provider timeout (%d): %s", status, detail))
	case status >= 500:
		return core.ErrConnection(fmt.Sprintf("provider error (%d): %s", status, detail))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrConfig(core.CodeInvalidConfig, fmt.Sprintf("provider rejected credentials (%d)", status))
	default:
		return core.ErrValidationFailed(fmt.Sprintf("provider rejected request (%d): %s", status, detail))
	}
}
