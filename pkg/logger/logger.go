package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with festival-specific helpers
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	level := getLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text output while developing, JSON everywhere else
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", c.GetString("request_id")),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Schedule logging methods

// LogSlotConflict logs a rejected slot placement
func (l *Logger) LogSlotConflict(ctx context.Context, editionID, stageID, day string, conflicts int) {
	l.Logger.WarnContext(ctx,
		"Slot Conflict",
		slog.String("edition_id", editionID),
		slog.String("stage_id", stageID),
		slog.String("day", day),
		slog.Int("conflicts", conflicts),
	)
}

// LogSlotCommitted logs a slot write together with the event it triggers
func (l *Logger) LogSlotCommitted(ctx context.Context, slotID, status, event string) {
	l.Logger.InfoContext(ctx,
		"Slot Committed",
		slog.String("slot_id", slotID),
		slog.String("status", status),
		slog.String("event", event),
	)
}

// Ticket logging methods

// LogReservation logs a successful reservation
func (l *Logger) LogReservation(ctx context.Context, ticketTypeID, channel string, quantity, remaining int, dryRun bool) {
	l.Logger.InfoContext(ctx,
		"Ticket Reservation",
		slog.String("ticket_type_id", ticketTypeID),
		slog.String("channel", channel),
		slog.Int("quantity", quantity),
		slog.Int("remaining", remaining),
		slog.Bool("dry_run", dryRun),
	)
}

// LogReservationRejected logs a reservation refused by an inventory rule
func (l *Logger) LogReservationRejected(ctx context.Context, ticketTypeID, reason string) {
	l.Logger.WarnContext(ctx,
		"Ticket Reservation Rejected",
		slog.String("ticket_type_id", ticketTypeID),
		slog.String("reason", reason),
	)
}

// LogPhaseChanged logs a pricing phase transition
func (l *Logger) LogPhaseChanged(ctx context.Context, ticketTypeID, from, to string) {
	l.Logger.InfoContext(ctx,
		"Ticket Phase Changed",
		slog.String("ticket_type_id", ticketTypeID),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// Security logging methods

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Helper methods for common patterns

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.InfoContext(ctx, msg, args...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
