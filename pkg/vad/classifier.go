// Package vad classifies audio chunks as speech or non-speech.
//
// Two classifiers are provided:
//   - EnergyClassifier - RMS threshold, no model files, always available
//   - SileroClassifier - Silero VAD over ONNX Runtime, far more robust
//     against background noise, requires a model file and the runtime
//     shared library
//
// Classifiers are stateful and not safe for concurrent use. The capture
// loop owns exactly one classifier at a time.
package vad

import (
	"sync"

	"github.com/vtc-robotics/raspbot/pkg/audioio"
)

// Classifier decides whether an audio chunk contains speech.
type Classifier interface {
	// Classify returns true if the chunk contains speech. An error
	// means the chunk could not be evaluated; callers treat errored
	// chunks as non-speech.
	Classify(chunk audioio.Chunk) (bool, error)

	// Reset clears internal state between capture sessions.
	Reset()

	// Name returns the classifier name ("energy", "silero").
	Name() string

	// Close releases model resources.
	Close() error
}

// MockClassifier replays scripted verdicts for tests.
type MockClassifier struct {
	mu sync.Mutex

	// Verdicts is consumed one entry per Classify call. When
	// exhausted, Fallback is returned.
	Verdicts []bool
	Fallback bool

	// Err, when set, is returned by every Classify call.
	Err error

	// Calls counts Classify invocations.
	Calls int
}

func (m *MockClassifier) Classify(chunk audioio.Chunk) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return false, m.Err
	}
	if len(m.Verdicts) == 0 {
		return m.Fallback, nil
	}
	v := m.Verdicts[0]
	m.Verdicts = m.Verdicts[1:]
	return v, nil
}

func (m *MockClassifier) Reset() {}

func (m *MockClassifier) Name() string { return "mock" }

func (m *MockClassifier) Close() error { return nil }

// Verify MockClassifier implements Classifier at compile time.
var _ Classifier = (*MockClassifier)(nil)
