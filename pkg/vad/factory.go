package vad

import (
	"fmt"
	"log/slog"
)

// Options selects and tunes a classifier backend.
type Options struct {
	// Backend is "energy" or "silero". Empty means energy.
	Backend string
	// EnergyThreshold is the RMS cutoff for the energy backend.
	EnergyThreshold float64
	// ModelPath locates silero_vad.onnx for the silero backend.
	ModelPath string
	// RuntimeLibPath locates the ONNX Runtime shared library.
	RuntimeLibPath string
	// SpeechProbability is the silero decision threshold in [0,1].
	SpeechProbability float64
}

// New creates the configured classifier. A silero backend without a
// model path falls back to the energy classifier with a warning.
func New(opts Options, logger *slog.Logger) (Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch opts.Backend {
	case "silero":
		if opts.ModelPath == "" {
			logger.Warn("silero backend selected without model_path, falling back to energy classifier")
			return NewEnergyClassifier(opts.EnergyThreshold), nil
		}
		c, err := NewSileroClassifier(opts.ModelPath, opts.RuntimeLibPath, opts.SpeechProbability)
		if err != nil {
			return nil, fmt.Errorf("vad: silero classifier: %w", err)
		}
		logger.Info("speech classifier ready", "backend", "silero", "model", opts.ModelPath)
		return c, nil
	case "energy", "":
		logger.Info("speech classifier ready", "backend", "energy", "threshold", opts.EnergyThreshold)
		return NewEnergyClassifier(opts.EnergyThreshold), nil
	default:
		return nil, fmt.Errorf("vad: unsupported backend: %s", opts.Backend)
	}
}
