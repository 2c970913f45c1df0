package server

import (
	"errors"

	"livemarket/internal/models"
	"livemarket/internal/streaming"
	"livemarket/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ProvisionStream handles POST /api/rooms/:id/stream
func (s *Server) ProvisionStream(c *fiber.Ctx) error {
	id := roomContext(c)
	room, stream, err := s.streamService.Provision(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"room":   room,
		"stream": stream,
	})
}

// EndStream handles POST /api/rooms/:id/stream/end
func (s *Server) EndStream(c *fiber.Ctx) error {
	id := roomContext(c)
	input, err := validation.ValidateEndStream(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	room, err := s.streamService.End(c.UserContext(), id, input.StreamID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(room)
}

// StreamWebhook handles POST /api/streaming/webhook
func (s *Server) StreamWebhook(c *fiber.Ctx) error {
	room, err := s.streamService.HandleWebhook(c.UserContext(), c.Get(streaming.SignatureHeader), c.Body())
	if err != nil {
		if errors.Is(err, streaming.ErrInvalidSignature) {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error: "Invalid webhook signature",
			})
		}
		return respondError(c, err)
	}
	if room == nil {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ignored": true})
	}
	return c.JSON(room)
}
