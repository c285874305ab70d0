package actions

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrQueueFull is returned by Enqueue when the pending buffer is at
// capacity. Producers drop the gesture rather than blocking the voice
// loop.
var ErrQueueFull = errors.New("actions: queue full")

// DefaultQueueSize bounds the pending command buffer.
const DefaultQueueSize = 32

// DefaultMinInterval is the floor between dispatch starts. It
// approximates the device's physical motion time and prevents
// overlapping gestures.
const DefaultMinInterval = 4 * time.Second

// QueueConfig tunes the dispatch queue.
type QueueConfig struct {
	// Size bounds the pending buffer. 0 selects DefaultQueueSize.
	Size int
	// MinInterval is the minimum time between dispatch starts.
	// 0 selects DefaultMinInterval.
	MinInterval time.Duration
	// PacingFor overrides the per-command pacing. Nil selects the
	// larger of MinInterval and the command's estimated motion time.
	PacingFor func(Command) time.Duration
}

// Queue is a bounded FIFO of device commands with a single consumer.
// Producers enqueue from any goroutine; exactly one Run loop dequeues,
// dispatches, and paces. Dispatch failures are logged and the command
// is dropped; the device offers no retry semantics worth having, since
// a stale gesture replayed seconds later reads as a glitch.
type Queue struct {
	cfg        QueueConfig
	dispatcher Dispatcher
	logger     *slog.Logger
	pending    chan Command

	// OnDispatched, if set, fires after each successful dispatch.
	OnDispatched func(Command)
	// OnError, if set, fires after each failed dispatch.
	OnError func(Command, error)
}

// NewQueue creates a queue. Run must be called for commands to be
// dispatched.
func NewQueue(cfg QueueConfig, dispatcher Dispatcher, logger *slog.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = DefaultQueueSize
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger.With("component", "actions.queue"),
		pending:    make(chan Command, cfg.Size),
	}
}

// Enqueue adds a command without blocking. The repeat count is clamped
// defensively even for commands built outside NewCommand.
func (q *Queue) Enqueue(cmd Command) error {
	cmd.RepeatCount = ClampRepeat(cmd.RepeatCount)
	select {
	case q.pending <- cmd:
		q.logger.Debug("action enqueued",
			"action", ActionName(cmd.ActionID),
			"repeat", cmd.RepeatCount,
			"depth", len(q.pending),
		)
		return nil
	default:
		q.logger.Warn("action dropped, queue full", "action_id", cmd.ActionID)
		return ErrQueueFull
	}
}

// Clear drains all pending commands without dispatching them.
// Commands already handed to the dispatcher are not recalled.
func (q *Queue) Clear() int {
	drained := 0
	for {
		select {
		case <-q.pending:
			drained++
		default:
			if drained > 0 {
				q.logger.Info("pending actions cleared", "count", drained)
			}
			return drained
		}
	}
}

// Depth returns the number of pending commands.
func (q *Queue) Depth() int { return len(q.pending) }

// Run is the single consumer loop. It dequeues in FIFO order,
// dispatches, then waits out the pacing interval before the next
// command. Returns when ctx is cancelled. Must not be called from
// more than one goroutine.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("action dispatch worker started",
		"queue_size", q.cfg.Size,
		"min_interval", q.cfg.MinInterval,
	)
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("action dispatch worker stopped", "pending", len(q.pending))
			return ctx.Err()
		case cmd := <-q.pending:
			start := time.Now()
			if err := q.dispatcher.Dispatch(ctx, cmd); err != nil {
				q.logger.Error("action dispatch failed",
					"action_id", cmd.ActionID,
					"repeat", cmd.RepeatCount,
					"error", err,
				)
				if q.OnError != nil {
					q.OnError(cmd, err)
				}
			} else if q.OnDispatched != nil {
				q.OnDispatched(cmd)
			}

			if wait := q.pacing(cmd) - time.Since(start); wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
	}
}

func (q *Queue) pacing(cmd Command) time.Duration {
	if q.cfg.PacingFor != nil {
		return q.cfg.PacingFor(cmd)
	}
	if d := EstimatedDuration(cmd); d > q.cfg.MinInterval {
		return d
	}
	return q.cfg.MinInterval
}
