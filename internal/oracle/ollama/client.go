// Package ollama talks to a local Ollama inference engine over its HTTP
// API. It is the default scoring oracle provider.
package ollama

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"context"

	"go.uber.org/zap"
)

const generatePath = "/api/generate"

// Client implements oracle.Evaluator against a local Ollama server.
type Client struct {
	baseURL    string
	model      string
	logger     *zap.Logger
	HTTPClient *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// New creates a client for the given base URL (e.g. http://127.0.0.1:11434).
func New(baseURL, model string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ollama base url is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		return nil, errors.New("ollama model is required")
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		logger:     logger,
		HTTPClient: &http.Client{Timeout: timeout},
	}, nil
}

// Evaluate sends the prompt to the local model and returns its raw text
// answer. Any non-200 status or transport problem is an error the caller
// retries.
func (c *Client) Evaluate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}

	c.logger.Debug("ollama response",
		zap.String("model", c.model),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama bad status: %s", resp.Status)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("ollama error: %s", decoded.Error)
	}

	answer := strings.TrimSpace(decoded.Response)
	if answer == "" {
		return "", errors.New("ollama returned empty response")
	}

	return answer, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}
