package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	wav "github.com/youpy/go-wav"
)

const (
	// azureOutputFormat matches the mono PCM the playback path expects.
	azureOutputFormat = "riff-16khz-16bit-mono-pcm"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = time.Second
)

// AzureConfig holds Azure Speech synthesis settings.
type AzureConfig struct {
	// Endpoint is the regional Speech endpoint, for example
	// "https://eastasia.tts.speech.microsoft.com".
	Endpoint string

	// APIKey is the subscription key.
	APIKey string

	// Voice is the neural voice name.
	Voice string

	// Language is the SSML locale, derived from Voice when empty.
	Language string

	// OutputDir is where WAV artifacts are written. Empty keeps the
	// audio in memory only.
	OutputDir string

	// URLPrefix is the path prefix browsers fetch artifacts under.
	URLPrefix string

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// AzureSynthesizer synthesizes speech through the Azure Speech REST
// API and writes each utterance to a WAV artifact.
type AzureSynthesizer struct {
	config AzureConfig
	http   *http.Client
	logger *slog.Logger
}

// NewAzure creates an Azure Speech synthesizer.
func NewAzure(config AzureConfig, logger *slog.Logger) (*AzureSynthesizer, error) {
	if config.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if config.Voice == "" {
		config.Voice = "zh-HK-WanLungNeural"
	}
	if config.Language == "" {
		config.Language = localeFromVoice(config.Voice)
	}
	if config.URLPrefix == "" {
		config.URLPrefix = "/static"
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = defaultMaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AzureSynthesizer{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: logger.With("component", "tts.azure"),
	}, nil
}

// Name returns the backend name.
func (s *AzureSynthesizer) Name() string { return "azure" }

// Synthesize converts text to speech, writes the WAV artifact, and
// returns the result with its playback duration.
func (s *AzureSynthesizer) Synthesize(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	audio, err := s.doWithRetry(ctx, text)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	duration, err := wavDuration(audio)
	if err != nil {
		s.logger.Warn("duration probe failed", "error", err)
	}

	result := &Result{
		Audio:     audio,
		Duration:  duration,
		CharCount: len([]rune(text)),
		LatencyMs: latency,
	}

	if s.config.OutputDir != "" {
		name := "tts_" + uuid.NewString() + ".wav"
		path := filepath.Join(s.config.OutputDir, name)
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return nil, fmt.Errorf("tts: write artifact: %w", err)
		}
		result.Path = path
		result.URL = s.config.URLPrefix + "/" + name
	}

	s.logger.Info("synthesized",
		"chars", result.CharCount,
		"duration_ms", duration.Milliseconds(),
		"latency_ms", latency,
	)
	return result, nil
}

func (s *AzureSynthesizer) doWithRetry(ctx context.Context, text string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.config.RetryDelay * time.Duration(1<<(attempt-1))
			s.logger.Warn("retrying synthesis",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		audio, err := s.synthesizeOnce(ctx, text)
		if err == nil {
			return audio, nil
		}
		lastErr = err

		if apiErr, ok := err.(*APIError); ok && !apiErr.IsRetryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("tts: synthesis failed after %d retries: %w", s.config.MaxRetries, lastErr)
}

func (s *AzureSynthesizer) synthesizeOnce(ctx context.Context, text string) ([]byte, error) {
	ssml := buildSSML(s.config.Language, s.config.Voice, text)

	url := strings.TrimSuffix(s.config.Endpoint, "/") + "/cognitiveservices/v1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts: empty audio response")
	}
	return audio, nil
}

// buildSSML wraps text in the synthesis envelope. Text is escaped so
// replies containing markup characters cannot break the request.
func buildSSML(language, voice, text string) string {
	escaped := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(text)
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		language, voice, escaped,
	)
}

// localeFromVoice derives the SSML locale from a neural voice name
// like "zh-HK-WanLungNeural".
func localeFromVoice(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "zh-HK"
}

// wavDuration reads the playback length from the WAV payload. The
// caller uses it to pace the next listening cycle, so a parse failure
// returns zero rather than discarding the audio.
func wavDuration(data []byte) (time.Duration, error) {
	reader := wav.NewReader(bytes.NewReader(data))
	duration, err := reader.Duration()
	if err != nil {
		return 0, fmt.Errorf("tts: probe wav duration: %w", err)
	}
	return duration, nil
}

// Verify AzureSynthesizer implements Synthesizer at compile time.
var _ Synthesizer = (*AzureSynthesizer)(nil)
