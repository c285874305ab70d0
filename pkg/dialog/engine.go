// Package dialog generates conversational replies and decides when an
// utterance should move the robot instead of (or in addition to)
// producing speech.
//
// The Engine interface is the language-model collaborator; the
// Responder in front of it handles everything that should never reach
// the model: knowledge-base answers, action triggers, slash commands,
// and search delegation.
package dialog

import (
	"context"
	"sync"
)

// Engine produces a conversational reply for a user utterance.
type Engine interface {
	// Respond returns the assistant reply for the given input.
	Respond(ctx context.Context, input string) (string, error)

	// Reset clears conversational memory.
	Reset()

	// Close releases resources.
	Close() error
}

// MockEngine returns scripted replies and records inputs.
type MockEngine struct {
	mu sync.Mutex

	// RespondFunc, if set, handles each call.
	RespondFunc func(ctx context.Context, input string) (string, error)

	// Reply is returned when RespondFunc is nil.
	Reply string
	// Err is returned when RespondFunc is nil.
	Err error

	// Inputs records the utterances passed to Respond.
	Inputs []string
	// Resets counts Reset calls.
	Resets int
}

func (m *MockEngine) Respond(ctx context.Context, input string) (string, error) {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, input)
	fn := m.RespondFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, input)
	}
	return m.Reply, m.Err
}

func (m *MockEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets++
}

func (m *MockEngine) Close() error { return nil }

// Verify MockEngine implements Engine at compile time.
var _ Engine = (*MockEngine)(nil)
