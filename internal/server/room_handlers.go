package server

import (
	"livemarket/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListRooms handles GET /api/rooms
func (s *Server) ListRooms(c *fiber.Ctx) error {
	filters, err := validation.ParseRoomFilters(
		c.Query("status"),
		c.Query("category"),
		c.Query("visibility"),
		c.Query("limit"),
	)
	if err != nil {
		return respondError(c, err)
	}

	rooms, err := s.roomService.List(c.UserContext(), filters)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

// CreateRoom handles POST /api/rooms
func (s *Server) CreateRoom(c *fiber.Ctx) error {
	input, err := validation.ValidateCreateRoom(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	room, err := s.roomService.Create(c.UserContext(), input)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

// GetRoom handles GET /api/rooms/:id
func (s *Server) GetRoom(c *fiber.Ctx) error {
	id := roomContext(c)
	room, err := s.roomService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(room)
}

// PatchRoom handles PATCH /api/rooms/:id
func (s *Server) PatchRoom(c *fiber.Ctx) error {
	id := roomContext(c)
	patch, err := validation.ValidateRoomPatch(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	room, err := s.roomService.Patch(c.UserContext(), id, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(room)
}

// Heartbeat handles POST /api/rooms/:id/heartbeat
func (s *Server) Heartbeat(c *fiber.Ctx) error {
	id := roomContext(c)
	hb, err := validation.ValidateHeartbeat(c.Body())
	if err != nil {
		return respondError(c, err)
	}

	room, err := s.roomService.Heartbeat(c.UserContext(), id, hb)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(room)
}
