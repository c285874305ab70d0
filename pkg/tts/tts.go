// Package tts synthesizes spoken replies.
//
// The synthesizer returns the audio artifact together with its
// playback duration; the voice loop paces the next capture cycle off
// that duration so the robot does not listen to itself.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrNoEndpoint is returned when the service endpoint is missing.
	ErrNoEndpoint = errors.New("tts: endpoint required")

	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("tts: empty text")
)

// APIError represents an error response from the synthesis API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("tts: API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Result is a synthesized utterance.
type Result struct {
	// Audio is the complete WAV payload.
	Audio []byte

	// Path is the file the audio was written to, empty when synthesis
	// was in-memory only.
	Path string

	// URL is the path browsers use to fetch the audio.
	URL string

	// Duration is the playback length.
	Duration time.Duration

	// CharCount is the length of the synthesized text.
	CharCount int

	// LatencyMs is the API round-trip time.
	LatencyMs int64
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	// Synthesize produces the spoken audio for text.
	Synthesize(ctx context.Context, text string) (*Result, error)

	// Name returns the backend name.
	Name() string
}

// MockSynthesizer returns scripted results and records calls.
type MockSynthesizer struct {
	mu sync.Mutex

	// SynthesizeFunc, if set, handles each call.
	SynthesizeFunc func(ctx context.Context, text string) (*Result, error)

	// Result is returned when SynthesizeFunc is nil.
	Result *Result
	// Err is returned when SynthesizeFunc is nil.
	Err error

	// Texts records synthesized inputs.
	Texts []string
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (*Result, error) {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	fn := m.SynthesizeFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, text)
	}
	return m.Result, m.Err
}

func (m *MockSynthesizer) Name() string { return "mock" }

// Verify MockSynthesizer implements Synthesizer at compile time.
var _ Synthesizer = (*MockSynthesizer)(nil)
