package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// frameMaxAge is how long a stored camera frame stays usable. Stale
// frames would have the robot describe a scene that is no longer in
// front of it.
const frameMaxAge = 10 * time.Second

// Hub maintains the set of active browser connections, broadcasts
// events to them, and stores the latest camera frame a browser
// uploaded.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	frameMu   sync.RWMutex
	frame     []byte
	frameTime time.Time
}

// New creates a hub. Run must be called before events are delivered.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With("component", "hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives the hub until ctx is cancelled. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full, the client is too slow to keep.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Emit broadcasts a named event to every connected browser. Events are
// dropped when the broadcast queue is full.
func (h *Hub) Emit(name string, payload any) {
	data, err := (Event{Name: name, Payload: payload, Timestamp: time.Now()}).encode()
	if err != nil {
		h.logger.Error("encode event failed", "event", name, "error", err)
		return
	}
	select {
	case h.broadcast <- Message{Type: JSONMessage, Data: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "event", name)
	}
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StoreFrame keeps the given JPEG as the latest camera frame.
func (h *Hub) StoreFrame(jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	h.frameMu.Lock()
	h.frame = jpeg
	h.frameTime = time.Now()
	h.frameMu.Unlock()
}

// LatestFrame returns the most recent camera frame, or false when no
// fresh frame is available.
func (h *Hub) LatestFrame() ([]byte, bool) {
	h.frameMu.RLock()
	defer h.frameMu.RUnlock()
	if h.frame == nil || time.Since(h.frameTime) > frameMaxAge {
		return nil, false
	}
	return h.frame, true
}
