package audioio

import "math"

// Chunk represents one fixed-size span of captured audio.
// Samples are signed 16-bit PCM, little-endian, mono.
// A Chunk is immutable once produced by a Source.
type Chunk struct {
	// Samples contains PCM16 audio samples.
	Samples []int16

	// SampleRate is the sample rate of this chunk in Hz.
	SampleRate int

	// Channels is the number of channels (1 for mono).
	Channels int
}

// Bytes returns the raw little-endian bytes of the chunk.
func (c Chunk) Bytes() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// ChunkFromBytes builds a Chunk from raw PCM16 bytes.
func ChunkFromBytes(data []byte, sampleRate, channels int) Chunk {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return Chunk{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// Duration returns the playback duration of this chunk in seconds.
func (c Chunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// RMS returns the root-mean-square energy of the chunk in 16-bit PCM
// units (0..32767). Silence is near zero.
func (c Chunk) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(c.Samples)))
}
