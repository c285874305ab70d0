// Package capture turns a stream of classified audio chunks into a
// single utterance recording.
//
// The Session is a pure state machine fed one chunk at a time; the
// Recorder drives it from a live audioio.Source and a vad.Classifier.
// Splitting the two keeps the timeout and framing rules testable
// without audio hardware.
package capture

import (
	"time"

	"github.com/vtc-robotics/raspbot/pkg/audioio"
)

// State is the lifecycle phase of a capture session.
type State int

const (
	// StateWaitingForSpeech means no speech chunk has arrived yet.
	StateWaitingForSpeech State = iota
	// StateRecording means speech was detected and frames are
	// accumulating.
	StateRecording
	// StateFinished means a viable utterance was captured.
	StateFinished
	// StateDiscarded means the session ended without a usable utterance.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateWaitingForSpeech:
		return "waiting_for_speech"
	case StateRecording:
		return "recording"
	case StateFinished:
		return "finished"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has ended.
func (s State) Terminal() bool { return s == StateFinished || s == StateDiscarded }

// SessionConfig holds the capture timeouts, expressed in chunks.
type SessionConfig struct {
	// MaxWaitChunks bounds how long to wait for the first speech
	// chunk before discarding the session.
	MaxWaitChunks int
	// TrailingSilenceChunks ends the recording once this many
	// consecutive non-speech chunks follow speech.
	TrailingSilenceChunks int
	// HardCeilingChunks caps the total session length regardless of
	// state.
	HardCeilingChunks int
	// MinViableChunks is the minimum recorded length for a StateFinished
	// result; shorter speech-flagged recordings are classifier noise
	// and are discarded.
	MinViableChunks int
}

// SessionConfigFor derives chunk-denominated timeouts from durations.
func SessionConfigFor(audioCfg audioio.Config, maxWait, trailingSilence, hardCeiling time.Duration) SessionConfig {
	return SessionConfig{
		MaxWaitChunks:         audioCfg.ChunksFor(maxWait),
		TrailingSilenceChunks: audioCfg.ChunksFor(trailingSilence),
		HardCeilingChunks:     audioCfg.ChunksFor(hardCeiling),
		MinViableChunks:       10,
	}
}

// Session accumulates one utterance from classified chunks.
//
// Transition rules:
//   - first speech chunk moves StateWaitingForSpeech to StateRecording
//   - MaxWaitChunks without speech discards the session
//   - while recording, non-speech chunks are appended until the
//     trailing-silence run exceeds TrailingSilenceChunks
//   - HardCeilingChunks forces termination in any state
//   - a StateFinished result requires at least MinViableChunks frames
//
// Not safe for concurrent use.
type Session struct {
	cfg SessionConfig

	state          State
	frames         []audioio.Chunk
	speechDetected bool
	silenceRun     int
	totalChunks    int
}

// NewSession creates a session in StateWaitingForSpeech.
func NewSession(cfg SessionConfig) *Session {
	return &Session{cfg: cfg}
}

// Feed advances the state machine with one classified chunk and
// returns the resulting state. Chunks fed after a terminal state are
// ignored.
func (s *Session) Feed(chunk audioio.Chunk, speech bool) State {
	if s.state.Terminal() {
		return s.state
	}
	s.totalChunks++

	switch s.state {
	case StateWaitingForSpeech:
		if speech {
			s.state = StateRecording
			s.speechDetected = true
			s.silenceRun = 0
			s.frames = append(s.frames, chunk)
		} else if s.totalChunks > s.cfg.MaxWaitChunks {
			s.state = StateDiscarded
			return s.state
		}
	case StateRecording:
		if speech {
			s.silenceRun = 0
			s.frames = append(s.frames, chunk)
		} else {
			s.silenceRun++
			if s.silenceRun > s.cfg.TrailingSilenceChunks {
				s.finish()
				return s.state
			}
			s.frames = append(s.frames, chunk)
		}
	}

	if s.totalChunks >= s.cfg.HardCeilingChunks {
		if s.speechDetected {
			s.finish()
		} else {
			s.state = StateDiscarded
		}
	}
	return s.state
}

func (s *Session) finish() {
	if len(s.frames) < s.cfg.MinViableChunks {
		s.state = StateDiscarded
		return
	}
	s.state = StateFinished
}

// Terminate forces the session to a terminal state, as when the audio
// source ends mid-session. Applies the same viability rules as the
// hard ceiling.
func (s *Session) Terminate() State {
	if s.state.Terminal() {
		return s.state
	}
	if s.speechDetected {
		s.finish()
	} else {
		s.state = StateDiscarded
	}
	return s.state
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// SpeechDetected reports whether any speech chunk has been seen.
func (s *Session) SpeechDetected() bool { return s.speechDetected }

// Frames returns the accumulated chunks. Callers must not mutate the
// result after the session reaches StateFinished.
func (s *Session) Frames() []audioio.Chunk { return s.frames }

// Recording assembles the captured frames into an utterance artifact.
// Returns nil unless the session is StateFinished.
func (s *Session) Recording() *Recording {
	if s.state != StateFinished {
		return nil
	}
	return newRecording(s.frames)
}
