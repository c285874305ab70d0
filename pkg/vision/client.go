package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Describer turns an image into a spoken scene description.
type Describer interface {
	Describe(ctx context.Context, imageJPEG []byte) (string, error)
}

// scenePrompt asks for a Cantonese description. The fixed opening
// keeps replies consistent with the assistant's speaking style.
const scenePrompt = "作為一個友善的助手，請用自然的廣東話描述你喺畫面見到嘅嘢。" +
	"請用簡單、生活化的方式描述，一定要以「我見到」開始句子。"

// Client calls an OpenAI-compatible vision model.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a vision client.
func NewClient(baseURL, apiKey, model string, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("vision: base URL required")
	}
	if model == "" {
		return nil, fmt.Errorf("vision: model required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "vision.client"),
	}, nil
}

// Describe analyzes a JPEG frame and returns the scene description.
func (c *Client) Describe(ctx context.Context, imageJPEG []byte) (string, error) {
	start := time.Now()

	b64 := base64.StdEncoding.EncodeToString(imageJPEG)
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": scenePrompt},
				{"type": "image_url", "image_url": map[string]string{
					"url": "data:image/jpeg;base64," + b64,
				}},
			},
		}},
		"max_tokens": 500,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("vision: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("vision: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vision: API error %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("vision: no choices returned")
	}

	description := strings.TrimSpace(result.Choices[0].Message.Content)
	c.logger.Info("frame described",
		"image_bytes", len(imageJPEG),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return description, nil
}

// Verify Client implements Describer at compile time.
var _ Describer = (*Client)(nil)
