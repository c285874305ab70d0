// Package history persists the chat transcript shown in the web UI.
//
// The log survives restarts so a browser reconnecting mid-session sees
// the recent conversation, but it is intentionally short-lived: only
// the latest entries are kept and a log older than a day is discarded
// on load.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxEntries caps the transcript length.
	MaxEntries = 15

	// MaxAge is how long a persisted transcript stays valid.
	MaxAge = 24 * time.Hour
)

// MessageType distinguishes who produced a transcript entry.
type MessageType string

const (
	// TypeSent is a message from the user (transcribed speech or typed).
	TypeSent MessageType = "sent"
	// TypeReceived is a reply from the robot.
	TypeReceived MessageType = "received"
)

// Message is one transcript entry.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`

	// AudioSrc is the URL of the spoken reply, empty for user messages.
	AudioSrc string `json:"audioSrc,omitempty"`
}

type transcript struct {
	Messages []Message `json:"messages"`
}

// Log is a bounded, persistent chat transcript. Safe for concurrent
// use.
type Log struct {
	mu       sync.Mutex
	path     string
	messages []Message
	logger   *slog.Logger
	now      func() time.Time
}

// NewLog opens the transcript at path, loading any persisted entries.
// A transcript older than MaxAge is discarded. An empty path keeps the
// log in memory only.
func NewLog(path string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{
		path:   path,
		logger: logger.With("component", "history"),
		now:    time.Now,
	}
	l.load()
	return l
}

func (l *Log) load() {
	if l.path == "" {
		return
	}

	info, err := os.Stat(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("stat transcript failed", "error", err)
		}
		return
	}

	if l.now().Sub(info.ModTime()) > MaxAge {
		l.logger.Info("discarding outdated transcript", "age", l.now().Sub(info.ModTime()))
		if err := os.Remove(l.path); err != nil {
			l.logger.Warn("remove outdated transcript failed", "error", err)
		}
		return
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		l.logger.Warn("read transcript failed", "error", err)
		return
	}

	var t transcript
	if err := json.Unmarshal(data, &t); err != nil {
		l.logger.Warn("parse transcript failed", "error", err)
		return
	}
	l.messages = t.Messages
	if len(l.messages) > MaxEntries {
		l.messages = l.messages[len(l.messages)-MaxEntries:]
	}
}

// Append adds a message, trims to MaxEntries, and persists the
// transcript. The stored message (with its generated ID and timestamp)
// is returned.
func (l *Log) Append(msgType MessageType, text, audioSrc string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Text:      text,
		Timestamp: l.now(),
		AudioSrc:  audioSrc,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
	if len(l.messages) > MaxEntries {
		l.messages = l.messages[len(l.messages)-MaxEntries:]
	}

	if err := l.save(); err != nil {
		l.logger.Error("persist transcript failed", "error", err)
	}
	return msg
}

// Messages returns a copy of the transcript, oldest first.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Clear empties the transcript and removes the persisted file.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	if l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("history: remove transcript: %w", err)
	}
	return nil
}

// save is called with l.mu held.
func (l *Log) save() error {
	if l.path == "" {
		return nil
	}

	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(transcript{Messages: l.messages}, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode transcript: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("history: write transcript: %w", err)
	}
	return nil
}
