package capture

import (
	"bytes"
	"fmt"
	"os"
	"time"

	wav "github.com/youpy/go-wav"

	"github.com/vtc-robotics/raspbot/pkg/audioio"
)

// Recording is a finished utterance ready for transcription.
type Recording struct {
	// Samples is the concatenated PCM16 audio.
	Samples []int16
	// SampleRate in Hz.
	SampleRate int
	// Channels is always 1.
	Channels int
}

func newRecording(frames []audioio.Chunk) *Recording {
	r := &Recording{}
	for _, f := range frames {
		r.Samples = append(r.Samples, f.Samples...)
		if r.SampleRate == 0 {
			r.SampleRate = f.SampleRate
			r.Channels = f.Channels
		}
	}
	return r
}

// Duration returns the playback length of the recording.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(r.Samples)) / float64(r.SampleRate) * float64(time.Second))
}

// Float32 returns the samples normalized to [-1, 1] for model input.
func (r *Recording) Float32() []float32 {
	out := make([]float32, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// WAV encodes the recording as a 16-bit PCM WAV file.
func (r *Recording) WAV() ([]byte, error) {
	samples := make([]wav.Sample, len(r.Samples))
	for i, s := range r.Samples {
		samples[i] = wav.Sample{Values: [2]int{int(s), 0}}
	}

	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(len(samples)), 1, uint32(r.SampleRate), 16)
	if err := writer.WriteSamples(samples); err != nil {
		return nil, fmt.Errorf("capture: encode wav: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteWAV writes the recording to a WAV file at path.
func (r *Recording) WriteWAV(path string) error {
	data, err := r.WAV()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
