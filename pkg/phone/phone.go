// Package phone runs the hands-free conversation loop: capture an
// utterance, transcribe it, produce a reply, speak it, then wait long
// enough that the device does not hear its own playback before
// listening again.
package phone

import (
	"context"
	"time"

	"github.com/vtc-robotics/raspbot/pkg/capture"
	"github.com/vtc-robotics/raspbot/pkg/tts"
)

// Transcriber converts a recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, rec *capture.Recording) (string, error)
}

// Dialog produces the spoken reply for an utterance.
type Dialog interface {
	Respond(ctx context.Context, input string) (string, error)
}

// VisionAnalyzer describes the current camera view.
type VisionAnalyzer interface {
	Analyze(ctx context.Context) (string, error)
}

// Synthesizer is the speech synthesis collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.Result, error)
}

// Notifier pushes loop events to connected browsers. The hub
// implements it.
type Notifier interface {
	Emit(event string, payload any)
}

// Turn is one completed exchange, appended to the chat transcript.
type Turn struct {
	UserText      string
	AssistantText string

	// AudioRef is the URL of the spoken reply, empty when synthesis
	// failed.
	AudioRef  string
	Timestamp time.Time
}

// TurnSink receives completed turns.
type TurnSink interface {
	RecordTurn(turn Turn)
}

// Timing holds the pacing policy for the loop.
type Timing struct {
	// RestartDelay is the wait before retrying after a failed or empty
	// transcription, or a dialog failure.
	RestartDelay time.Duration

	// VisionDelay is the fixed wait after a vision turn, covering the
	// time the description takes to be spoken.
	VisionDelay time.Duration

	// DefaultWait is used when synthesis fails and no playback
	// duration is known.
	DefaultWait time.Duration

	// PacingMargin is added to the reply's playback duration before
	// the next capture cycle.
	PacingMargin time.Duration
}

// DefaultTiming returns the stock pacing policy.
func DefaultTiming() Timing {
	return Timing{
		RestartDelay: 2 * time.Second,
		VisionDelay:  5 * time.Second,
		DefaultWait:  10 * time.Second,
		PacingMargin: 5 * time.Second,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.RestartDelay <= 0 {
		t.RestartDelay = d.RestartDelay
	}
	if t.VisionDelay <= 0 {
		t.VisionDelay = d.VisionDelay
	}
	if t.DefaultWait <= 0 {
		t.DefaultWait = d.DefaultWait
	}
	if t.PacingMargin <= 0 {
		t.PacingMargin = d.PacingMargin
	}
	return t
}

// noopNotifier discards events.
type noopNotifier struct{}

func (noopNotifier) Emit(string, any) {}

// noopSink discards turns.
type noopSink struct{}

func (noopSink) RecordTurn(Turn) {}
