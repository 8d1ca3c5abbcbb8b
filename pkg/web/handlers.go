package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/roverbyte/go-rover/pkg/dispatch"
	"github.com/roverbyte/go-rover/pkg/hub"
)

// TextRequest is the request body for command and utterance submission.
type TextRequest struct {
	Text string `json:"text"`
}

// handleStatus returns the rover's current state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return c.JSON(s.state)
}

// handleHistory returns recent command records.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.OnHistory == nil {
		return c.JSON([]interface{}{})
	}
	return c.JSON(s.OnHistory())
}

// handleLines returns the recent device lines.
func (s *Server) handleLines(c *fiber.Ctx) error {
	s.linesMu.RLock()
	defer s.linesMu.RUnlock()
	return c.JSON(s.lines)
}

// handleCommand submits one console-grammar line to the pilot.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be {\"text\": \"...\"}",
		})
	}

	if s.OnCommand == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "command submission not configured",
		})
	}

	record, err := s.OnCommand(req.Text)
	if err != nil {
		status := fiber.StatusInternalServerError
		var parseErr *dispatch.ParseError
		if errors.As(err, &parseErr) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(record)
}

// handleUtterance queues natural-language text for the pilot.
func (s *Server) handleUtterance(c *fiber.Ctx) error {
	var req TextRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be {\"text\": \"...\"}",
		})
	}

	if s.OnUtterance == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "utterance submission not configured",
		})
	}

	if err := s.OnUtterance(req.Text); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"queued": true})
}

// handleLinesWS streams device lines to a websocket client.
func (s *Server) handleLinesWS(c *websocket.Conn) {
	// Replay the recent lines so the client starts with context.
	s.linesMu.RLock()
	for _, entry := range s.lines {
		if err := c.WriteJSON(entry); err != nil {
			break
		}
	}
	s.linesMu.RUnlock()

	hub.NewClient(s.lineHub, c).Run()
}

// handleStatusWS streams state snapshots to a websocket client.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()
	c.WriteJSON(state)

	hub.NewClient(s.statusHub, c).Run()
}
