package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures microphone audio through miniaudio.
// Chunks arrive from the device callback and are re-framed to exactly
// Config.ChunkSamples before delivery.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	chunks  chan Chunk
	running bool
	closed  bool
}

// NewMalgoSource creates a malgo-backed capture source.
// The device is not opened until Start.
func NewMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audioio: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MalgoSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.malgo"),
	}, nil
}

// framer re-frames device callback buffers into fixed-size chunks.
// Owned entirely by the miniaudio data callback, which miniaudio
// serializes, so it needs no locking.
type framer struct {
	cfg     Config
	size    int
	pending []int16
}

func newFramer(cfg Config) *framer {
	return &framer{cfg: cfg, size: cfg.ChunkSamples()}
}

// push appends raw little-endian PCM16 bytes and returns any completed
// chunks.
func (f *framer) push(data []byte, samples int) []Chunk {
	for i := 0; i < samples; i++ {
		f.pending = append(f.pending, int16(data[i*2])|int16(data[i*2+1])<<8)
	}
	var out []Chunk
	for len(f.pending) >= f.size {
		buf := make([]int16, f.size)
		copy(buf, f.pending[:f.size])
		f.pending = append(f.pending[:0], f.pending[f.size:]...)
		out = append(out, Chunk{Samples: buf, SampleRate: f.cfg.SampleRate, Channels: f.cfg.Channels})
	}
	return out
}

// Start opens the default capture device and begins delivering chunks.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("audioio: source closed")
	}
	if s.running {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audioio: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	chunks := make(chan Chunk, 64)
	frames := newFramer(s.cfg)
	channels := s.cfg.Channels

	// The callback runs on miniaudio's audio thread and must never
	// touch s.mu: Stop uninits the device, and uninit waits for the
	// in-flight callback to return. All callback state lives in the
	// framer and the channel captured here.
	onRecvFrames := func(_, pSample []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		for _, chunk := range frames.push(pSample, int(framecount)*channels) {
			select {
			case chunks <- chunk:
			default:
				// Reader is behind; drop the oldest buffered chunk.
				// This callback is the only writer, so after the drain
				// the send cannot block.
				select {
				case <-chunks:
				default:
				}
				chunks <- chunk
			}
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("audioio: start device: %w", err)
	}

	s.chunks = chunks
	s.mctx = mctx
	s.device = device
	s.running = true
	s.logger.Info("capture started",
		"sample_rate", s.cfg.SampleRate,
		"chunk_ms", s.cfg.ChunkInterval.Milliseconds(),
	)
	return nil
}

// Stop halts capture and closes the chunk channel. The device teardown
// happens outside the mutex: uninit blocks until the data callback
// drains, and the channel is closed only after no callback can write
// to it.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	device := s.device
	mctx := s.mctx
	chunks := s.chunks
	s.device = nil
	s.mctx = nil
	s.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if mctx != nil {
		_ = mctx.Uninit()
		mctx.Free()
	}
	close(chunks)
	s.logger.Info("capture stopped")
	return nil
}

// Read returns the next chunk, blocking until one arrives.
func (s *MalgoSource) Read(ctx context.Context) (Chunk, error) {
	s.mu.Lock()
	ch := s.chunks
	s.mu.Unlock()

	if ch == nil {
		return Chunk{}, io.EOF
	}

	select {
	case chunk, ok := <-ch:
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	}
}

// Config returns the capture configuration.
func (s *MalgoSource) Config() Config { return s.cfg }

// Name returns "malgo".
func (s *MalgoSource) Name() string { return "malgo" }

// Close stops capture and releases the device permanently.
func (s *MalgoSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Verify MalgoSource implements Source at compile time.
var _ Source = (*MalgoSource)(nil)
