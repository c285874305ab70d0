// This file contains the local Transcriber backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and
// headers must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/vtc-robotics/raspbot/pkg/capture"
)

// WhisperTranscriber runs whisper.cpp inference in-process. The model
// is loaded once; each Transcribe call gets a fresh context, so the
// transcriber is safe for sequential reuse.
type WhisperTranscriber struct {
	model    whisperlib.Model
	language string
	logger   *slog.Logger
}

// NewWhisper loads a ggml model from modelPath. language is a BCP-47
// code ("zh", "en"); empty auto-detects.
func NewWhisper(modelPath, language string, logger *slog.Logger) (*WhisperTranscriber, error) {
	if modelPath == "" {
		return nil, errors.New("stt: whisper model path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("stt: load whisper model %q: %w", modelPath, err)
	}
	logger.Info("whisper model loaded", "path", modelPath, "language", language)
	return &WhisperTranscriber{
		model:    model,
		language: language,
		logger:   logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe runs inference over the full recording.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, rec *capture.Recording) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("stt: create whisper context: %w", err)
	}

	if w.language != "" {
		if err := wctx.SetLanguage(w.language); err != nil {
			w.logger.Warn("failed to set language, using default", "language", w.language, "error", err)
		}
	}

	if err := wctx.Process(rec.Float32(), nil, nil, nil); err != nil {
		return "", fmt.Errorf("stt: whisper inference: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("stt: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Name returns "whisper".
func (w *WhisperTranscriber) Name() string { return "whisper" }

// Close releases the model.
func (w *WhisperTranscriber) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}

// Verify WhisperTranscriber implements Transcriber at compile time.
var _ Transcriber = (*WhisperTranscriber)(nil)
