package stt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vtc-robotics/raspbot/pkg/capture"
)

// Factory builds a Transcriber for a mode. Called lazily on the first
// Transcribe after the selector starts or switches mode.
type Factory func(mode Mode) (Transcriber, error)

// Status is a snapshot of the selector for the control API.
type Status struct {
	Mode        Mode   `json:"mode"`
	Initialized bool   `json:"initialized"`
	Backend     string `json:"backend,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Selector routes transcription to the active backend and supports
// switching backends at runtime. Backends are initialized lazily so a
// mode switch is cheap; the expensive model load happens on the next
// utterance. Safe for concurrent use.
type Selector struct {
	mu          sync.Mutex
	mode        Mode
	factory     Factory
	backend     Transcriber
	initialized bool
	language    string
	logger      *slog.Logger

	// retired holds backends replaced by SwitchMode. They are closed on
	// the next Transcribe call, which runs on the same worker goroutine
	// as any call that may still have been using them, so the close can
	// never race an in-flight transcription.
	retired []Transcriber
}

// NewSelector creates a selector starting in the given mode.
func NewSelector(initial Mode, language string, factory Factory, logger *slog.Logger) (*Selector, error) {
	if !initial.Valid() {
		return nil, fmt.Errorf("stt: invalid mode %q", initial)
	}
	if factory == nil {
		return nil, fmt.Errorf("stt: factory must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		mode:     initial,
		factory:  factory,
		language: language,
		logger:   logger.With("component", "stt.selector"),
	}, nil
}

// Transcribe runs the recording through the active backend,
// initializing it on first use. Backend initialization failures are
// logged and yield an empty transcript so the voice loop keeps
// running; the next utterance retries initialization.
func (s *Selector) Transcribe(ctx context.Context, rec *capture.Recording) (string, error) {
	s.mu.Lock()
	s.closeRetiredLocked()
	if !s.initialized {
		backend, err := s.factory(s.mode)
		if err != nil {
			s.mu.Unlock()
			s.logger.Error("transcription backend init failed", "mode", s.mode, "error", err)
			return "", nil
		}
		s.backend = backend
		s.initialized = true
		s.logger.Info("transcription backend ready", "mode", s.mode, "backend", backend.Name())
	}
	backend := s.backend
	s.mu.Unlock()

	return backend.Transcribe(ctx, rec)
}

// SwitchMode changes the active backend. The previous backend is
// abandoned, not closed: a transcription may still be running on it,
// so its release is deferred to the next Transcribe call. The new
// backend is initialized lazily on the next utterance. Switching to
// the current mode still resets the backend.
func (s *Selector) SwitchMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("stt: invalid mode %q", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		s.retired = append(s.retired, s.backend)
		s.backend = nil
	}
	previous := s.mode
	s.mode = mode
	s.initialized = false
	s.logger.Info("transcription mode switched", "from", previous, "to", mode)
	return nil
}

func (s *Selector) closeRetiredLocked() {
	for _, backend := range s.retired {
		if err := backend.Close(); err != nil {
			s.logger.Warn("closing retired backend failed", "backend", backend.Name(), "error", err)
		}
	}
	s.retired = nil
}

// Mode returns the active mode.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Status returns a snapshot for the control API.
func (s *Selector) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Mode:        s.mode,
		Initialized: s.initialized,
		Language:    s.language,
	}
	if s.backend != nil {
		st.Backend = s.backend.Name()
	}
	return st
}

// Close releases the active backend and any retired ones. Callers must
// stop the transcription worker first.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeRetiredLocked()
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	s.initialized = false
	return err
}
