// Package cue plays the short tones that bracket phone mode: a rising
// chirp when listening starts and a falling one when it stops, so the
// user knows when the microphone is live without looking at a screen.
package cue

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

const (
	sampleRate = 16000
	amplitude  = 0.3

	toneDuration = 120 * time.Millisecond

	// playTimeout bounds a single cue so a wedged output device cannot
	// stall the controller.
	playTimeout = 2 * time.Second
)

// Player emits audible cues.
type Player interface {
	// PlayStart plays the listening-started cue.
	PlayStart()
	// PlayStop plays the listening-stopped cue.
	PlayStop()
}

// TonePlayer synthesizes cue tones and plays them through the default
// output device. Cues are best-effort; playback failures are logged
// and swallowed.
type TonePlayer struct {
	logger *slog.Logger

	mu        sync.Mutex
	startTone []int16
	stopTone  []int16
}

// NewTonePlayer creates the player. No device is held between cues.
func NewTonePlayer(logger *slog.Logger) *TonePlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TonePlayer{
		logger:    logger.With("component", "cue"),
		startTone: chirp(440, 880),
		stopTone:  chirp(880, 440),
	}
}

// PlayStart plays the rising chirp.
func (p *TonePlayer) PlayStart() { p.play(p.startTone) }

// PlayStop plays the falling chirp.
func (p *TonePlayer) PlayStop() { p.play(p.stopTone) }

// play opens the default playback device for the duration of one cue.
// Serialized so overlapping start/stop calls cannot mix tones.
func (p *TonePlayer) play(tone []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.playOnce(tone); err != nil {
		p.logger.Warn("cue playback failed", "error", err)
	}
}

func (p *TonePlayer) playOnce(tone []int16) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("cue: init context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	var pos int
	done := make(chan struct{})
	var once sync.Once

	onSendFrames := func(pOutput, _ []byte, framecount uint32) {
		n := int(framecount)
		for i := 0; i < n; i++ {
			var sample int16
			if pos < len(tone) {
				sample = tone[pos]
				pos++
			}
			pOutput[i*2] = byte(sample)
			pOutput[i*2+1] = byte(sample >> 8)
		}
		if pos >= len(tone) {
			once.Do(func() { close(done) })
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		return fmt.Errorf("cue: init device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("cue: start device: %w", err)
	}

	select {
	case <-done:
		// Let the device drain its last buffer.
		time.Sleep(20 * time.Millisecond)
	case <-time.After(playTimeout):
		return fmt.Errorf("cue: playback timed out")
	}
	return nil
}

// chirp renders a tone sweeping linearly between two frequencies, with
// a short fade at both ends to avoid clicks.
func chirp(fromHz, toHz float64) []int16 {
	n := int(toneDuration.Seconds() * sampleRate)
	samples := make([]int16, n)

	fade := n / 10
	var phase float64
	for i := 0; i < n; i++ {
		progress := float64(i) / float64(n)
		freq := fromHz + (toHz-fromHz)*progress
		phase += 2 * math.Pi * freq / sampleRate

		gain := 1.0
		if i < fade {
			gain = float64(i) / float64(fade)
		} else if i >= n-fade {
			gain = float64(n-i) / float64(fade)
		}

		samples[i] = int16(amplitude * gain * math.Sin(phase) * 32767)
	}
	return samples
}

// MockPlayer counts cue playbacks for tests.
type MockPlayer struct {
	mu     sync.Mutex
	Starts int
	Stops  int
}

func (m *MockPlayer) PlayStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Starts++
}

func (m *MockPlayer) PlayStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stops++
}

// Verify implementations at compile time.
var (
	_ Player = (*TonePlayer)(nil)
	_ Player = (*MockPlayer)(nil)
)
