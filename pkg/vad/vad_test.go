package vad

import (
	"errors"
	"testing"

	"github.com/vtc-robotics/raspbot/pkg/audioio"
)

func toneChunk(amplitude int16) audioio.Chunk {
	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = amplitude
	}
	return audioio.Chunk{Samples: samples, SampleRate: 16000, Channels: 1}
}

func TestEnergyClassifier(t *testing.T) {
	c := NewEnergyClassifier(500)

	tests := []struct {
		name      string
		amplitude int16
		want      bool
	}{
		{"silence", 0, false},
		{"quiet room", 120, false},
		{"just below threshold", 499, false},
		{"at threshold", 500, true},
		{"speech", 8000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(toneChunk(tt.amplitude))
			if err != nil {
				t.Fatalf("Classify() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify(amplitude=%d) = %v, want %v", tt.amplitude, got, tt.want)
			}
		})
	}
}

func TestEnergyClassifierDefaultThreshold(t *testing.T) {
	c := NewEnergyClassifier(0)
	if got, _ := c.Classify(toneChunk(400)); got {
		t.Error("expected 400 amplitude below default threshold")
	}
	if got, _ := c.Classify(toneChunk(600)); !got {
		t.Error("expected 600 amplitude above default threshold")
	}
}

func TestMockClassifierScript(t *testing.T) {
	c := &MockClassifier{Verdicts: []bool{true, false}, Fallback: false}

	chunk := toneChunk(1000)
	if got, _ := c.Classify(chunk); !got {
		t.Error("expected first verdict true")
	}
	if got, _ := c.Classify(chunk); got {
		t.Error("expected second verdict false")
	}
	if got, _ := c.Classify(chunk); got {
		t.Error("expected fallback false after script exhausted")
	}
	if c.Calls != 3 {
		t.Errorf("expected 3 calls recorded, got %d", c.Calls)
	}
}

func TestMockClassifierError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	c := &MockClassifier{Err: wantErr}
	if _, err := c.Classify(toneChunk(1000)); !errors.Is(err, wantErr) {
		t.Errorf("expected scripted error, got %v", err)
	}
}

func TestFactoryFallsBackWithoutModel(t *testing.T) {
	c, err := New(Options{Backend: "silero"}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.Name() != "energy" {
		t.Errorf("expected energy fallback, got %s", c.Name())
	}
}

func TestFactoryRejectsUnknownBackend(t *testing.T) {
	if _, err := New(Options{Backend: "webrtc"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
