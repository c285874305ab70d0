// Package actions serializes physical device commands.
//
// Every component that wants the robot to move goes through the Queue;
// nothing dispatches to the device directly. The queue guarantees FIFO
// order, at most one in-flight command, and a minimum interval between
// dispatches so gestures never overlap mid-motion.
package actions

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes the device's two action ID namespaces.
type Kind string

const (
	// SingleDigit actions are the basic motions (IDs 0-9).
	SingleDigit Kind = "single"
	// DoubleDigit actions are performance motions (IDs 10-99).
	DoubleDigit Kind = "double"
)

const (
	// MinRepeat and MaxRepeat bound the repeat count. Values outside
	// the range are clamped, never rejected; a misparsed repeat must
	// not block the gesture entirely.
	MinRepeat = 1
	MaxRepeat = 10
)

// Command is one physical device instruction. Immutable once created;
// consumed exactly once by the dispatch worker.
type Command struct {
	Kind        Kind   `json:"kind"`
	ActionID    string `json:"action_id"`
	RepeatCount int    `json:"repeat_count"`
}

// NewCommand builds a command for the given action ID. The kind is
// derived from the ID length and the repeat count is clamped to
// [MinRepeat, MaxRepeat].
func NewCommand(actionID string, repeat int) (Command, error) {
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return Command{}, fmt.Errorf("actions: empty action id")
	}
	for _, r := range actionID {
		if r < '0' || r > '9' {
			return Command{}, fmt.Errorf("actions: invalid action id %q", actionID)
		}
	}

	kind := SingleDigit
	if len(actionID) > 1 {
		kind = DoubleDigit
	}
	return Command{
		Kind:        kind,
		ActionID:    actionID,
		RepeatCount: ClampRepeat(repeat),
	}, nil
}

// ClampRepeat bounds a repeat count to [MinRepeat, MaxRepeat].
func ClampRepeat(n int) int {
	if n < MinRepeat {
		return MinRepeat
	}
	if n > MaxRepeat {
		return MaxRepeat
	}
	return n
}

// ParseRepeat normalizes a repeat value that may arrive as an int or a
// digit string from upstream parsers. Unparseable values fall back to
// a single repetition.
func ParseRepeat(v any) int {
	switch n := v.(type) {
	case int:
		return ClampRepeat(n)
	case int64:
		return ClampRepeat(int(n))
	case float64:
		return ClampRepeat(int(n))
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return MinRepeat
		}
		return ClampRepeat(parsed)
	default:
		return MinRepeat
	}
}

// actionInfo describes a known device action.
type actionInfo struct {
	name     string
	duration time.Duration
}

// catalog maps action IDs to names and nominal motion durations.
// Durations were measured against the device; unknown IDs assume the
// defaultActionDuration.
var catalog = map[string]actionInfo{
	"0":  {"stand", 2 * time.Second},
	"1":  {"forward", 3 * time.Second},
	"2":  {"backward", 3 * time.Second},
	"3":  {"shift left", 3 * time.Second},
	"4":  {"shift right", 3 * time.Second},
	"7":  {"turn left", 3 * time.Second},
	"8":  {"turn right", 3 * time.Second},
	"9":  {"wave", 3 * time.Second},
	"10": {"bow", 3 * time.Second},
	"12": {"celebrate", 5 * time.Second},
	"13": {"left kick", 3 * time.Second},
	"14": {"right kick", 3 * time.Second},
	"15": {"wing chun", 5 * time.Second},
	"16": {"left hook", 3 * time.Second},
	"17": {"right hook", 3 * time.Second},
	"22": {"twist", 5 * time.Second},
	"24": {"step in place", 3 * time.Second},
}

const (
	defaultActionDuration = 2 * time.Second
	// actionSafetyMargin absorbs motor settle time after a gesture.
	actionSafetyMargin = time.Second
)

// ActionName returns a human-readable name for an action ID, or the ID
// itself when unknown.
func ActionName(actionID string) string {
	if info, ok := catalog[actionID]; ok {
		return info.name
	}
	return actionID
}

// EstimatedDuration returns how long the command's motion takes,
// including the safety margin.
func EstimatedDuration(cmd Command) time.Duration {
	base := defaultActionDuration
	if info, ok := catalog[cmd.ActionID]; ok {
		base = info.duration
	}
	return base*time.Duration(cmd.RepeatCount) + actionSafetyMargin
}

// WaveCommand is the greeting gesture shortcut.
func WaveCommand() Command {
	return Command{Kind: SingleDigit, ActionID: "9", RepeatCount: 1}
}
