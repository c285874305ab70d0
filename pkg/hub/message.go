// Package hub fans out server events to connected browsers over
// websockets and keeps the most recent camera frame uploaded by a
// browser, using the channel-based broadcast pattern.
package hub

import (
	"encoding/json"
	"time"
)

// MessageType indicates the websocket message format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded event.
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data such as audio payloads.
	BinaryMessage
)

// Message is a payload queued for broadcast.
type Message struct {
	Type MessageType
	Data []byte
}

// Event is a named server event pushed to every connected browser.
type Event struct {
	// Name identifies the event, for example "speech_detected" or
	// "turn_response".
	Name string `json:"event"`

	// Payload carries event-specific data.
	Payload any `json:"payload,omitempty"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// encode serializes the event for the wire.
func (e Event) encode() ([]byte, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return json.Marshal(e)
}
