package server

import (
	"livemarket/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListMessages handles GET /api/rooms/:id/messages
func (s *Server) ListMessages(c *fiber.Ctx) error {
	id := roomContext(c)
	query := validation.ParseMessageQuery(c.Query("limit"), c.Query("before"))

	messages, err := s.messageService.List(c.UserContext(), id, query)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// PostMessage handles POST /api/rooms/:id/messages
func (s *Server) PostMessage(c *fiber.Ctx) error {
	id := roomContext(c)
	input, err := validation.ValidateMessage(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	msg, err := s.messageService.Append(c.UserContext(), id, input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}
