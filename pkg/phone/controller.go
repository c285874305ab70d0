package phone

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vtc-robotics/raspbot/pkg/capture"
)

// ErrAlreadyActive is returned by Start while the loop is active or a
// previous cycle is still winding down.
var ErrAlreadyActive = errors.New("phone: mode already active")

// Capturer runs one capture session to completion.
type Capturer interface {
	Capture(ctx context.Context) (*capture.Recording, error)
}

// CuePlayer plays the audible start/stop cues.
type CuePlayer interface {
	PlayStart()
	PlayStop()
}

// Controller owns the active/inactive state of the conversation loop.
// Stop is cooperative: an in-flight capture or turn finishes its
// current step, observes the inactive flag, and declines to restart.
type Controller struct {
	recorder Capturer
	pipeline *TurnPipeline
	notifier Notifier
	timing   Timing
	logger   *slog.Logger

	// Cues, if set, plays a tone on Start and Stop.
	Cues CuePlayer

	mu      sync.Mutex
	active  bool
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController wires the controller. notifier may be nil.
func NewController(recorder Capturer, pipeline *TurnPipeline, notifier Notifier, timing Timing, logger *slog.Logger) *Controller {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		recorder: recorder,
		pipeline: pipeline,
		notifier: notifier,
		timing:   timing.withDefaults(),
		logger:   logger.With("component", "phone.controller"),
	}
}

// Start activates the loop and launches the first capture cycle in
// the background. Returns ErrAlreadyActive while active or while a
// stopped cycle has not yet wound down.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active || c.running {
		return ErrAlreadyActive
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.active = true
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("phone mode started")
	c.notifier.Emit("mode_started", nil)
	if c.Cues != nil {
		go c.Cues.PlayStart()
	}

	go c.loop(loopCtx, c.done)
	return nil
}

// Stop deactivates the loop. The current cycle finishes its step and
// exits; nothing is interrupted mid-flight.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	c.active = false
	c.logger.Info("phone mode stopping")
	c.notifier.Emit("mode_stopped", nil)
	if c.Cues != nil {
		go c.Cues.PlayStop()
	}
}

// Close stops the loop and cancels the in-flight cycle, then waits for
// the worker to exit. Used at process shutdown where cooperative
// winding down is too slow.
func (c *Controller) Close() {
	c.mu.Lock()
	c.active = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Active reports whether the loop should keep cycling.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
		c.logger.Info("phone mode stopped")
	}()

	for c.Active() {
		rec, err := c.recorder.Capture(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrNoSpeech) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("capture cycle failed", "error", err)
			if !c.wait(ctx, c.timing.RestartDelay) {
				return
			}
			continue
		}

		if !c.Active() {
			return
		}

		delay := c.pipeline.ProcessTurn(ctx, rec)
		if !c.wait(ctx, delay) {
			return
		}
	}
}

// wait blocks for d, returning false when ctx is cancelled first.
func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
