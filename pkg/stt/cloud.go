package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vtc-robotics/raspbot/pkg/capture"
)

// CloudTranscriber sends recordings to a hosted transcription API.
// Any OpenAI-compatible endpoint works, including Azure OpenAI
// deployments via the endpoint override.
type CloudTranscriber struct {
	client   oai.Client
	model    string
	language string
	logger   *slog.Logger
}

// CloudOption configures a CloudTranscriber.
type CloudOption func(*cloudConfig)

type cloudConfig struct {
	endpoint string
	model    string
}

// WithCloudEndpoint overrides the API base URL.
func WithCloudEndpoint(url string) CloudOption {
	return func(c *cloudConfig) { c.endpoint = url }
}

// WithCloudModel selects the transcription model. Defaults to whisper-1.
func WithCloudModel(model string) CloudOption {
	return func(c *cloudConfig) { c.model = model }
}

// NewCloud creates a cloud transcriber.
func NewCloud(apiKey, language string, logger *slog.Logger, opts ...CloudOption) (*CloudTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("stt: cloud api key must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := &cloudConfig{model: "whisper-1"}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.endpoint))
	}

	return &CloudTranscriber{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: language,
		logger:   logger.With("component", "stt.cloud"),
	}, nil
}

// Transcribe uploads the recording as WAV and returns the recognized
// text.
func (c *CloudTranscriber) Transcribe(ctx context.Context, rec *capture.Recording) (string, error) {
	wavData, err := rec.WAV()
	if err != nil {
		return "", err
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wavData), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(c.model),
	}
	if c.language != "" {
		params.Language = oai.String(c.language)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("stt: cloud transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Name returns "cloud".
func (c *CloudTranscriber) Name() string { return "cloud" }

// Close is a no-op; the HTTP client holds no persistent resources.
func (c *CloudTranscriber) Close() error { return nil }

// Verify CloudTranscriber implements Transcriber at compile time.
var _ Transcriber = (*CloudTranscriber)(nil)
