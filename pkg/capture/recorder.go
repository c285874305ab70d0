package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vtc-robotics/raspbot/pkg/audioio"
	"github.com/vtc-robotics/raspbot/pkg/vad"
)

// ErrNoSpeech is returned by Capture when the session ends without a
// usable utterance. Callers restart the cycle rather than treating
// this as a failure.
var ErrNoSpeech = errors.New("capture: no usable speech detected")

// Recorder runs capture sessions against a live source.
type Recorder struct {
	source     audioio.Source
	classifier vad.Classifier
	cfg        SessionConfig
	logger     *slog.Logger

	// OnSpeechDetected, if set, fires once per session when the first
	// speech chunk arrives.
	OnSpeechDetected func()
}

// NewRecorder creates a recorder. The recorder does not own the
// source or classifier lifecycles beyond Start/Stop per session.
func NewRecorder(source audioio.Source, classifier vad.Classifier, cfg SessionConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		source:     source,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger.With("component", "capture"),
	}
}

// Capture runs one session to a terminal state and returns the
// recording. Returns ErrNoSpeech when the session is discarded.
// Classifier errors are logged and the affected chunk is treated as
// non-speech.
func (r *Recorder) Capture(ctx context.Context) (*Recording, error) {
	r.classifier.Reset()
	session := NewSession(r.cfg)

	if err := r.source.Start(ctx); err != nil {
		return nil, fmt.Errorf("capture: start source: %w", err)
	}
	defer func() {
		if err := r.source.Stop(); err != nil {
			r.logger.Warn("stopping audio source failed", "error", err)
		}
	}()

	announced := false
	for !session.State().Terminal() {
		chunk, err := r.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				session.Terminate()
				break
			}
			return nil, fmt.Errorf("capture: read chunk: %w", err)
		}

		speech, cerr := r.classifier.Classify(chunk)
		if cerr != nil {
			r.logger.Debug("classifier error, chunk treated as non-speech", "error", cerr)
			speech = false
		}

		wasWaiting := session.State() == StateWaitingForSpeech
		session.Feed(chunk, speech)
		if wasWaiting && session.State() == StateRecording && !announced {
			announced = true
			r.logger.Info("speech detected, recording")
			if r.OnSpeechDetected != nil {
				r.OnSpeechDetected()
			}
		}
	}

	if session.State() != StateFinished {
		r.logger.Info("capture session discarded",
			"speech_detected", session.SpeechDetected(),
			"chunks", len(session.Frames()),
		)
		return nil, ErrNoSpeech
	}

	rec := session.Recording()
	r.logger.Info("capture session finished",
		"chunks", len(session.Frames()),
		"duration", rec.Duration(),
	)
	return rec, nil
}
