package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// MockSource replays a scripted sequence of chunks.
// Used by tests and CI runs without audio hardware. Chunks are
// delivered immediately on Read; timing is the caller's concern.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	script  []Chunk
	pos     int
	running bool
	closed  bool

	// LoopSilence, when true, delivers silent chunks forever after
	// the script is exhausted instead of returning io.EOF.
	LoopSilence bool
}

// NewMockSource creates a mock source with an empty script.
func NewMockSource(cfg Config, logger *slog.Logger) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSource{cfg: cfg, logger: logger}
}

// Script replaces the scripted chunk sequence and rewinds.
func (s *MockSource) Script(chunks []Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = chunks
	s.pos = 0
}

// AppendTone appends n chunks of a constant-amplitude signal.
// amplitude 0 produces silence.
func (s *MockSource) AppendTone(n int, amplitude int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	samples := s.cfg.ChunkSamples()
	for i := 0; i < n; i++ {
		data := make([]int16, samples)
		for j := range data {
			data[j] = amplitude
		}
		s.script = append(s.script, Chunk{
			Samples:    data,
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
		})
	}
}

// Start marks the source as capturing.
func (s *MockSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.running = true
	return nil
}

// Stop halts delivery.
func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

// Read returns the next scripted chunk, or io.EOF when the script is
// exhausted (unless LoopSilence is set).
func (s *MockSource) Read(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return Chunk{}, io.EOF
	}
	if s.pos >= len(s.script) {
		if s.LoopSilence {
			return Chunk{
				Samples:    make([]int16, s.cfg.ChunkSamples()),
				SampleRate: s.cfg.SampleRate,
				Channels:   s.cfg.Channels,
			}, nil
		}
		return Chunk{}, io.EOF
	}

	chunk := s.script[s.pos]
	s.pos++
	return chunk, nil
}

// Config returns the capture configuration.
func (s *MockSource) Config() Config { return s.cfg }

// Name returns "mock".
func (s *MockSource) Name() string { return "mock" }

// Close releases the source.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.running = false
	return nil
}

// Verify MockSource implements Source at compile time.
var _ Source = (*MockSource)(nil)
