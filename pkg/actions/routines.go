package actions

import (
	"log/slog"
	"math/rand"
)

// step is one move of a choreographed routine.
type step struct {
	actionID string
	repeat   int
}

// dances are the choreographed performances. Pacing between moves is
// the queue's job; routines only decide order.
var dances = map[string][]step{
	"bounce": {
		{"9", 1}, {"24", 1}, {"16", 1}, {"17", 1}, {"22", 1},
	},
	"sway": {
		{"3", 1}, {"4", 1}, {"13", 1}, {"14", 1}, {"9", 1},
	},
	"beat": {
		{"9", 1}, {"7", 1}, {"8", 1}, {"22", 1}, {"10", 1},
	},
}

// wingChun is the martial arts combination routine.
var wingChun = []step{
	{"15", 1},
	{"16", 2},
	{"17", 2},
	{"13", 1},
	{"14", 1},
}

// Routines enqueues multi-step performances. All device access goes
// through the queue; routines never dispatch directly, so a running
// performance still respects the one-command-in-flight contract and
// can be cancelled with Clear.
type Routines struct {
	queue  *Queue
	logger *slog.Logger
}

// NewRoutines creates a routine runner over the given queue.
func NewRoutines(queue *Queue, logger *slog.Logger) *Routines {
	if logger == nil {
		logger = slog.Default()
	}
	return &Routines{queue: queue, logger: logger.With("component", "actions.routines")}
}

// RandomDance enqueues one randomly chosen dance and returns its name.
func (r *Routines) RandomDance() string {
	names := make([]string, 0, len(dances))
	for name := range dances {
		names = append(names, name)
	}
	name := names[rand.Intn(len(names))]
	r.enqueueSteps(name, dances[name])
	return name
}

// WingChun enqueues the martial arts combination.
func (r *Routines) WingChun() {
	r.enqueueSteps("wing chun", wingChun)
}

func (r *Routines) enqueueSteps(name string, steps []step) {
	r.logger.Info("performance starting", "routine", name, "steps", len(steps))
	for _, s := range steps {
		cmd, err := NewCommand(s.actionID, s.repeat)
		if err != nil {
			r.logger.Error("invalid routine step", "routine", name, "action_id", s.actionID, "error", err)
			continue
		}
		if err := r.queue.Enqueue(cmd); err != nil {
			r.logger.Warn("routine truncated, queue full", "routine", name)
			return
		}
	}
}
