package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vtc-robotics/raspbot/pkg/actions"
	"github.com/vtc-robotics/raspbot/pkg/phone"
	"github.com/vtc-robotics/raspbot/pkg/stt"
)

func (s *Server) handlePhoneStart(c *fiber.Ctx) error {
	// The capture loop outlives the request, and fasthttp recycles the
	// request context after the handler returns. The loop is parented
	// on the process lifetime instead; shutdown goes through the
	// controller's Close.
	if err := s.phone.Start(context.Background()); err != nil {
		if errors.Is(err, phone.ErrAlreadyActive) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "phone mode already active",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"active": true})
}

func (s *Server) handlePhoneStop(c *fiber.Ctx) error {
	s.phone.Stop()
	return c.JSON(fiber.Map{"active": false})
}

func (s *Server) handlePhoneStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"active": s.phone.Active()})
}

func (s *Server) handleActionsStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"depth": s.queue.Depth()})
}

// actionRequest is the body for POST /api/actions. Repeat accepts a
// number or a digit string; controller apps send both.
type actionRequest struct {
	ActionID string `json:"action_id"`
	Repeat   any    `json:"repeat"`
}

func (s *Server) handleActionsEnqueue(c *fiber.Ctx) error {
	var req actionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	cmd, err := actions.NewCommand(req.ActionID, actions.ParseRepeat(req.Repeat))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := s.queue.Enqueue(cmd); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"action": actions.ActionName(cmd.ActionID),
		"repeat": cmd.RepeatCount,
		"depth":  s.queue.Depth(),
	})
}

func (s *Server) handleActionsClear(c *fiber.Ctx) error {
	drained := s.queue.Clear()
	s.logger.Info("action queue cleared via API", "drained", drained)
	return c.JSON(fiber.Map{"cleared": drained})
}

func (s *Server) handleSTTStatus(c *fiber.Ctx) error {
	return c.JSON(s.sttCtl.Status())
}

// sttModeRequest is the body for POST /api/stt/mode.
type sttModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSTTMode(c *fiber.Ctx) error {
	var req sttModeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := s.sttCtl.SwitchMode(stt.Mode(req.Mode)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.sttCtl.Status())
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.history == nil {
		return c.JSON(fiber.Map{"messages": []any{}})
	}
	return c.JSON(fiber.Map{"messages": s.history.Messages()})
}

func (s *Server) handleHistoryClear(c *fiber.Ctx) error {
	if s.history == nil {
		return c.JSON(fiber.Map{"cleared": true})
	}
	if err := s.history.Clear(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if s.events != nil {
		s.events.Emit("chat_history_cleared", nil)
	}
	return c.JSON(fiber.Map{"cleared": true})
}
