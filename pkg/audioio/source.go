// Package audioio provides microphone capture for the voice loop.
//
// Two backends are supported:
//   - malgo (miniaudio) - production capture on Linux and macOS
//   - mock - scripted chunks for CI and tests without hardware
//
// All backends deliver fixed-size PCM16 mono chunks at the configured
// chunk interval. The capture device is exclusively owned by whoever
// holds the Source; callers must not share one Source across
// concurrent readers.
package audioio

import (
	"context"
	"io"
)

// Source captures audio from a microphone in fixed-size chunks.
type Source interface {
	// Start begins audio capture.
	Start(ctx context.Context) error

	// Stop halts audio capture. Safe to call multiple times.
	Stop() error

	// Read returns the next audio chunk, blocking until one is
	// available. Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (Chunk, error)

	// Config returns the capture configuration.
	Config() Config

	// Name returns the backend name ("malgo", "mock").
	Name() string

	// Close releases all resources. The source cannot be restarted.
	io.Closer
}
