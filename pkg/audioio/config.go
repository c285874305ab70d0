package audioio

import (
	"fmt"
	"time"
)

// Backend identifies a capture implementation.
type Backend string

const (
	// BackendMalgo captures through miniaudio (malgo bindings).
	BackendMalgo Backend = "malgo"
	// BackendMock replays scripted chunks for tests.
	BackendMock Backend = "mock"
)

// Config holds capture configuration.
type Config struct {
	// Backend selects the capture implementation.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the capture sample rate in Hz. The VAD and STT
	// stacks require 16000.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of channels. Must be 1 (mono).
	Channels int `yaml:"channels" json:"channels"`

	// ChunkInterval is the duration of one chunk (20-30ms).
	ChunkInterval time.Duration `yaml:"chunk_interval" json:"chunk_interval"`
}

// DefaultConfig returns a Config with the capture defaults used by the
// voice loop: 16kHz mono in 20ms chunks.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMalgo,
		SampleRate:    16000,
		Channels:      1,
		ChunkInterval: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", c.Channels)
	}
	if c.ChunkInterval < 10*time.Millisecond || c.ChunkInterval > 100*time.Millisecond {
		return fmt.Errorf("chunk_interval %v out of range [10ms, 100ms]", c.ChunkInterval)
	}
	return nil
}

// ChunkSamples returns the number of samples per chunk.
func (c *Config) ChunkSamples() int {
	return int(float64(c.SampleRate) * c.ChunkInterval.Seconds())
}

// ChunksFor returns how many chunks cover the given duration.
func (c *Config) ChunksFor(d time.Duration) int {
	if c.ChunkInterval <= 0 {
		return 0
	}
	return int(d / c.ChunkInterval)
}
