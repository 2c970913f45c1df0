// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"livemarket/internal/bootstrap"
	"livemarket/internal/config"
	"livemarket/internal/middleware"
	"livemarket/internal/models"
	"livemarket/internal/realtime"
	"livemarket/internal/repository"
	"livemarket/internal/service"
	"livemarket/internal/streaming"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// bodyLimit caps request bodies; the largest legitimate body is a room
// description.
const bodyLimit = 256 * 1024

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	realtime *bootstrap.Realtime
	hub      *realtime.Hub
	fanout   *realtime.Fanout

	roomService    *service.RoomService
	messageService *service.MessageService
	streamService  *service.StreamService
	sweeper        *service.HeartbeatSweeper
	sweepDone      chan struct{}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return nil, err
	}
	rt, err := bootstrap.NewRealtime(cfg, rdb)
	if err != nil {
		return nil, fmt.Errorf("realtime setup failed: %w", err)
	}
	return NewServerWithDeps(cfg, db, rdb, rt, streaming.NewDevProvider(
		cfg.StreamingIngestURL,
		cfg.StreamingPlaybackBaseURL,
		cfg.StreamingWebhookSecret,
	))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	rt *bootstrap.Realtime,
	provider streaming.Provider,
) (*Server, error) {
	if rt == nil || rt.Hub == nil {
		return nil, fmt.Errorf("realtime hub is required")
	}

	rooms := repository.NewRoomRepository(db, nil)
	messages := repository.NewMessageRepository(db, nil)
	fanout := realtime.NewFanout(rt.Publisher, cfg.FanoutTimeout())

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("livemarket-api"),
		realtime:       rt,
		hub:            rt.Hub,
		fanout:         fanout,
	}
	server.roomService = service.NewRoomService(rooms, fanout)
	server.messageService = service.NewMessageService(rooms, messages, fanout)
	server.streamService = service.NewStreamService(server.roomService, server.messageService, provider)
	if cfg.HeartbeatSweepEnabled {
		server.sweeper = service.NewHeartbeatSweeper(rooms, fanout, cfg.HeartbeatTimeout(), cfg.HeartbeatSweepInterval())
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version, " + streaming.SignatureHeader,
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		MaxAge:       86400,
	}))

	// Broadcasters heartbeat often; the per-IP ceiling only stops floods.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Livemarket Metrics Dashboard",
	}))

	writeLimit := s.config.RateLimitWritesPerMinute

	rooms := api.Group("/rooms")
	rooms.Get("/", s.ListRooms)
	rooms.Post("/", middleware.RateLimit(s.redis, writeLimit, time.Minute, "create_room"), s.CreateRoom)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	rooms.Post("/:id/heartbeat", s.roomExists, s.Heartbeat)
	rooms.Get("/:id/messages", s.ListMessages)
	rooms.Post("/:id/messages", middleware.RateLimit(s.redis, writeLimit, time.Minute, "post_message"), s.roomExists, s.PostMessage)
	rooms.Post("/:id/stream/end", s.roomExists, s.EndStream)
	rooms.Post("/:id/stream", s.ProvisionStream)
	rooms.Get("/:id", s.GetRoom)
	rooms.Patch("/:id", middleware.RateLimit(s.redis, writeLimit, time.Minute, "patch_room"), s.roomExists, s.PatchRoom)

	api.Post("/streaming/webhook", s.StreamWebhook)

	ws := api.Group("/ws", requireUpgrade)
	ws.Get("/rooms", s.RoomsFeedHandler())
	ws.Get("/rooms/:id", s.roomExists, s.RoomFeedHandler())
}

// App returns the configured Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "Livemarket API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis only gates readiness when it carries realtime events.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}
	redisRequired := s.config.RealtimeDriver == config.RealtimeRedis

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || (redisRequired && redisStatus != "healthy") {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"realtime": s.config.RealtimeDriver,
		"time":     time.Now(),
	})
}

// Start wires the realtime feed, starts the sweep if enabled and listens.
// It returns once Shutdown stops the listener.
func (s *Server) Start() error {
	app := s.App()
	if err := s.startBackground(); err != nil {
		return err
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// startBackground starts the work that runs beside the listener. Shutdown
// cancels it and waits for the sweep to return.
func (s *Server) startBackground() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	if err := s.realtime.Start(ctx); err != nil {
		return fmt.Errorf("start realtime feed: %w", err)
	}
	if s.sweeper != nil {
		middleware.Logger.Info("heartbeat sweep enabled",
			slog.Duration("timeout", s.config.HeartbeatTimeout()),
			slog.Duration("interval", s.config.HeartbeatSweepInterval()),
		)
		s.sweepDone = make(chan struct{})
		go func() {
			defer close(s.sweepDone)
			s.sweeper.Run(ctx)
		}()
	}
	return nil
}

// Shutdown stops accepting requests, waits for the sweep, drains in-flight
// fanout and closes subscribers and connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// The sweep publishes through the fanout, so it must stop first.
	if s.sweepDone != nil {
		select {
		case <-s.sweepDone:
		case <-ctx.Done():
			middleware.Logger.Warn("heartbeat sweep did not stop before shutdown", slog.String("error", ctx.Err().Error()))
		}
	}

	if err := s.fanout.Wait(ctx); err != nil {
		middleware.Logger.Warn("fanout did not drain before shutdown", slog.String("error", err.Error()))
	}

	if err := s.realtime.Close(ctx); err != nil {
		middleware.Logger.Error("error closing realtime", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
