package server

import (
	"log/slog"

	"livemarket/internal/middleware"
	"livemarket/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError answers with the status mapped from err. Server-side
// failures are logged with the request context; client errors are not.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// roomContext tags the request context with the :id route param.
func roomContext(c *fiber.Ctx) string {
	id := c.Params("id")
	c.SetUserContext(middleware.WithRoomID(c.UserContext(), id))
	return id
}
