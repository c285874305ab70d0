package dialog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// systemPrompt fixes the assistant persona. The device fronts for a
// student project and answers in Cantonese; it must never claim to be
// a disembodied virtual assistant, because it visibly has a body.
const systemPrompt = "你是 Raspberry，VTC 學生開發的機械人助手。請使用繁體中文、廣東話回應。" +
	"不要說自己是虛擬助手或無法執行動作。回應保持簡短，三句以內。"

// memoryWindow is how many prior messages are replayed per request.
// Two turns is enough context for follow-ups without burning tokens.
const memoryWindow = 4

// Client is an Engine over any OpenAI-compatible chat completion API.
type Client struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	memory []message
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewClient creates a chat engine.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if cfg.Model == "" {
		return nil, ErrNoModel
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "dialog.client"),
	}, nil
}

// Respond generates a reply and records the exchange in the rolling
// memory window.
func (c *Client) Respond(ctx context.Context, input string) (string, error) {
	start := time.Now()

	c.mu.Lock()
	messages := make([]message, 0, len(c.memory)+2)
	messages = append(messages, message{Role: "system", Content: systemPrompt})
	messages = append(messages, c.memory...)
	messages = append(messages, message{Role: "user", Content: input})
	c.mu.Unlock()

	payload := map[string]any{
		"model":    c.config.Model,
		"messages": messages,
	}
	if c.config.MaxTokens > 0 {
		payload["max_tokens"] = c.config.MaxTokens
	}
	if c.config.Temperature > 0 {
		payload["temperature"] = c.config.Temperature
	}

	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("dialog: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrNoChoices
	}

	reply := strings.TrimSpace(result.Choices[0].Message.Content)
	c.remember(input, reply)

	c.logger.Info("dialog reply generated",
		"model", result.Model,
		"latency_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
	)
	return reply, nil
}

func (c *Client) remember(input, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory = append(c.memory,
		message{Role: "user", Content: input},
		message{Role: "assistant", Content: reply},
	)
	if len(c.memory) > memoryWindow {
		c.memory = c.memory[len(c.memory)-memoryWindow:]
	}
}

// Reset clears the rolling memory window.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory = nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// post makes a POST request with retries.
func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("dialog: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dialog: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.doWithRetry(ctx, req, body)
}

// doWithRetry performs the request with exponential backoff on
// retryable failures.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("dialog: request failed: %w", err)
			c.logger.Warn("request failed, retrying", "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = c.parseError(resp)
			resp.Body.Close()
			c.logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
	}
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify Client implements Engine at compile time.
var _ Engine = (*Client)(nil)
