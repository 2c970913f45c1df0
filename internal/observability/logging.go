// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger for code that runs outside a request:
// fanout goroutines, websocket pumps and the heartbeat sweep.
var GlobalLogger *Logger

func init() {
	var handler slog.Handler
	switch os.Getenv("APP_ENV") {
	case "test":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetLogger replaces the handler behind GlobalLogger, typically with the
// request-aware logger so background lines carry the same context keys.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

// WSLogger provides structured logging for websocket feeds.
type WSLogger struct {
	hubName string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName}
}

func (l *WSLogger) LogConnect(ctx context.Context, channel string, subscribers int) {
	GlobalLogger.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.String("channel", channel),
		slog.Int("subscribers", subscribers),
	)
}

func (l *WSLogger) LogDisconnect(ctx context.Context, channel, reason string) {
	GlobalLogger.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.String("channel", channel),
		slog.String("reason", reason),
	)
}

// LogError logs a websocket error event.
func (l *WSLogger) LogError(ctx context.Context, channel string, err error, eventType string) {
	GlobalLogger.WarnContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.String("channel", channel),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogAsyncOperationError logs a failure in work detached from the request
// that triggered it.
func LogAsyncOperationError(ctx context.Context, operation string, err error, attrs ...slog.Attr) {
	args := []any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	GlobalLogger.WarnContext(ctx, "async operation failed", args...)
}
