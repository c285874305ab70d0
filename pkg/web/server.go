// Package web exposes the browser control surface: REST endpoints for
// phone mode, the action queue, and transcription settings, plus a
// websocket event stream and the static front-end assets.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/vtc-robotics/raspbot/pkg/actions"
	"github.com/vtc-robotics/raspbot/pkg/history"
	"github.com/vtc-robotics/raspbot/pkg/hub"
	"github.com/vtc-robotics/raspbot/pkg/stt"
)

// PhoneController is the phone mode control surface.
type PhoneController interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
}

// ActionQueue is the dispatch queue control surface.
type ActionQueue interface {
	Enqueue(cmd actions.Command) error
	Depth() int
	Clear() int
}

// STTControl switches and reports the transcription backend.
type STTControl interface {
	SwitchMode(mode stt.Mode) error
	Status() stt.Status
}

// Transcript is the chat history surface.
type Transcript interface {
	Messages() []history.Message
	Clear() error
}

// Server serves the control API and the websocket event stream.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	phone   PhoneController
	queue   ActionQueue
	sttCtl  STTControl
	history Transcript
	events  *hub.Hub
}

// Config holds server settings.
type Config struct {
	// Port to listen on.
	Port string

	// StaticDir holds the front-end assets and synthesized audio.
	StaticDir string
}

// NewServer wires the server. history may be nil.
func NewServer(cfg Config, phone PhoneController, queue ActionQueue, sttCtl STTControl, transcript Transcript, events *hub.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:    cfg.Port,
		logger:  logger.With("component", "web"),
		phone:   phone,
		queue:   queue,
		sttCtl:  sttCtl,
		history: transcript,
		events:  events,
	}

	app := fiber.New(fiber.Config{
		AppName:               "raspbot",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/static", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Post("/phone/start", s.handlePhoneStart)
	api.Post("/phone/stop", s.handlePhoneStop)
	api.Get("/phone/status", s.handlePhoneStatus)
	api.Get("/actions/status", s.handleActionsStatus)
	api.Post("/actions", s.handleActionsEnqueue)
	api.Post("/actions/clear", s.handleActionsClear)
	api.Get("/stt/status", s.handleSTTStatus)
	api.Post("/stt/mode", s.handleSTTMode)
	api.Get("/history", s.handleHistory)
	api.Post("/history/clear", s.handleHistoryClear)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("web server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithContext(context.Background())
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// handleEventsWS attaches a browser to the event hub. Blocks for the
// lifetime of the connection.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	hub.NewClient(s.events, c).Run()
}
