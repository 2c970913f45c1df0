package server

import (
	"log/slog"

	"livemarket/internal/middleware"
	"livemarket/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// requireUpgrade rejects plain HTTP requests on websocket routes.
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// roomExists answers 404 for an unknown room before the body is validated
// or the connection upgraded.
func (s *Server) roomExists(c *fiber.Ctx) error {
	if _, err := s.roomService.Get(c.UserContext(), roomContext(c)); err != nil {
		return respondError(c, err)
	}
	return c.Next()
}

// RoomsFeedHandler streams the global rooms channel.
func (s *Server) RoomsFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		s.serveFeed(conn, realtime.GlobalChannel)
	})
}

// RoomFeedHandler streams one room's state and chat channel.
func (s *Server) RoomFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		s.serveFeed(conn, realtime.RoomChannel(conn.Params("id")))
	})
}

func (s *Server) serveFeed(conn *websocket.Conn, channel string) {
	client, err := s.hub.Register(channel, conn)
	if err != nil {
		middleware.Logger.Warn("websocket subscribe rejected",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}
