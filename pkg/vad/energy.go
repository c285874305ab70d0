package vad

import "github.com/vtc-robotics/raspbot/pkg/audioio"

// DefaultEnergyThreshold is the RMS level, in 16-bit PCM units, above
// which a chunk counts as speech. Tuned against a USB conference mic at
// arm's length; quiet rooms idle around 50-150.
const DefaultEnergyThreshold = 500.0

// EnergyClassifier flags chunks whose RMS energy exceeds a threshold.
// It has no model dependencies and serves as the fallback when the
// Silero model is unavailable.
type EnergyClassifier struct {
	threshold float64
}

// NewEnergyClassifier creates an energy classifier. A threshold of 0
// selects DefaultEnergyThreshold.
func NewEnergyClassifier(threshold float64) *EnergyClassifier {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	return &EnergyClassifier{threshold: threshold}
}

// Classify returns true when the chunk's RMS exceeds the threshold.
func (e *EnergyClassifier) Classify(chunk audioio.Chunk) (bool, error) {
	return chunk.RMS() >= e.threshold, nil
}

// Reset is a no-op; the energy classifier is stateless.
func (e *EnergyClassifier) Reset() {}

// Name returns "energy".
func (e *EnergyClassifier) Name() string { return "energy" }

// Close is a no-op.
func (e *EnergyClassifier) Close() error { return nil }

// Verify EnergyClassifier implements Classifier at compile time.
var _ Classifier = (*EnergyClassifier)(nil)
