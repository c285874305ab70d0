package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a capture source for the configured backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audioio: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio source",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"chunk_ms", cfg.ChunkInterval.Milliseconds(),
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendMalgo, "":
		return NewMalgoSource(cfg, logger)
	default:
		return nil, fmt.Errorf("audioio: unsupported backend: %s", cfg.Backend)
	}
}
