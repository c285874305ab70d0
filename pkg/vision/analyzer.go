package vision

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vtc-robotics/raspbot/pkg/actions"
)

// ErrNoFrame is returned when no camera frame is available.
var ErrNoFrame = errors.New("vision: no camera frame available")

// FrameSource supplies the most recent camera frame as JPEG bytes.
// The browser client streams frames over the websocket; the hub keeps
// the latest one.
type FrameSource interface {
	LatestFrame() ([]byte, bool)
}

// Analyzer runs the latest frame through the describer and reacts to
// what it sees.
type Analyzer struct {
	describer Describer
	frames    FrameSource
	queue     *actions.Queue
	logger    *slog.Logger
}

// NewAnalyzer wires the analyzer. queue may be nil to disable the
// wave-at-people reaction.
func NewAnalyzer(describer Describer, frames FrameSource, queue *actions.Queue, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		describer: describer,
		frames:    frames,
		queue:     queue,
		logger:    logger.With("component", "vision.analyzer"),
	}
}

// Analyze describes the current camera view. When the description
// mentions a person, a wave gesture is enqueued as a side effect.
func (a *Analyzer) Analyze(ctx context.Context) (string, error) {
	frame, ok := a.frames.LatestFrame()
	if !ok || len(frame) == 0 {
		return "", ErrNoFrame
	}

	description, err := a.describer.Describe(ctx, frame)
	if err != nil {
		return "", err
	}

	if a.queue != nil && DescribesPerson(description) {
		a.logger.Info("person in view, waving")
		if err := a.queue.Enqueue(actions.WaveCommand()); err != nil {
			a.logger.Warn("wave dropped", "error", err)
		}
	}
	return description, nil
}
