// Package stt transcribes finished utterance recordings to text.
//
// Two backends are supported behind the Transcriber interface: a local
// whisper.cpp model (no network, higher latency on small boards) and a
// cloud transcription API. The Selector switches between them at
// runtime without restarting the voice loop.
package stt

import (
	"context"
	"sync"

	"github.com/vtc-robotics/raspbot/pkg/capture"
)

// Mode identifies a transcription backend.
type Mode string

const (
	// ModeLocal runs whisper.cpp in-process.
	ModeLocal Mode = "local"
	// ModeCloud calls a hosted transcription API.
	ModeCloud Mode = "cloud"
)

// Valid reports whether the mode is a known backend.
func (m Mode) Valid() bool { return m == ModeLocal || m == ModeCloud }

// Transcriber converts a recording into text.
type Transcriber interface {
	// Transcribe returns the recognized text. An empty string with a
	// nil error means the audio contained no recognizable speech.
	Transcribe(ctx context.Context, rec *capture.Recording) (string, error)

	// Name returns the backend name ("whisper", "cloud").
	Name() string

	// Close releases backend resources.
	Close() error
}

// MockTranscriber returns scripted results and records calls.
type MockTranscriber struct {
	mu sync.Mutex

	// TranscribeFunc, if set, handles each call.
	TranscribeFunc func(ctx context.Context, rec *capture.Recording) (string, error)

	// Result is returned when TranscribeFunc is nil.
	Result string
	// Err is returned when TranscribeFunc is nil.
	Err error

	// Calls records the recordings passed to Transcribe.
	Calls []*capture.Recording

	// Closed reports whether Close was called.
	Closed bool
}

func (m *MockTranscriber) Transcribe(ctx context.Context, rec *capture.Recording) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, rec)
	fn := m.TranscribeFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, rec)
	}
	return m.Result, m.Err
}

func (m *MockTranscriber) Name() string { return "mock" }

func (m *MockTranscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Verify MockTranscriber implements Transcriber at compile time.
var _ Transcriber = (*MockTranscriber)(nil)
