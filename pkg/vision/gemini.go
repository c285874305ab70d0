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

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiDescriber calls the Gemini generateContent API to describe a
// frame. Alternative to the OpenAI-compatible Client for deployments
// with a Google API key.
type GeminiDescriber struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewGemini creates a Gemini-backed describer. model defaults to
// gemini-2.0-flash.
func NewGemini(apiKey, model string, logger *slog.Logger) (*GeminiDescriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision: gemini API key required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiDescriber{
		baseURL: geminiBaseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "vision.gemini"),
	}, nil
}

// Describe analyzes a JPEG frame and returns the scene description.
func (g *GeminiDescriber) Describe(ctx context.Context, imageJPEG []byte) (string, error) {
	start := time.Now()

	payload := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"text": scenePrompt},
				{"inline_data": map[string]string{
					"mime_type": "image/jpeg",
					"data":      base64.StdEncoding.EncodeToString(imageJPEG),
				}},
			},
		}},
		"generationConfig": map[string]any{
			"temperature":     0.7,
			"maxOutputTokens": 500,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("vision: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("vision: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("vision: read response: %w", err)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if result.Error.Message != "" {
			return "", fmt.Errorf("vision: API error %d: %s", resp.StatusCode, result.Error.Message)
		}
		return "", fmt.Errorf("vision: API error %d", resp.StatusCode)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("vision: empty response")
	}

	description := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	g.logger.Info("frame described",
		"image_bytes", len(imageJPEG),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return description, nil
}

var _ Describer = (*GeminiDescriber)(nil)
