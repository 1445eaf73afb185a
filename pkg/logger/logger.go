package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance writing to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter creates a logger writing to w at the given level
func NewWithWriter(w io.Writer, levelStr string) *Logger {
	level := getLogLevel(levelStr)

	// Create handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Create handler based on environment
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		// Use text handler for development (more readable)
		handler = slog.NewTextHandler(w, opts)
	} else {
		// Use JSON handler for production (structured)
		handler = slog.NewJSONHandler(w, opts)
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

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("user_id", userID)),
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
		slog.String("user_agent", c.Request.UserAgent()),
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

// Booking logging methods

// LogReservationCreated logs when seats are reserved
func (l *Logger) LogReservationCreated(ctx context.Context, reservationID, showID, holder string, seats int) {
	l.Logger.InfoContext(ctx,
		"Reservation Created",
		slog.String("reservation_id", reservationID),
		slog.String("show_id", showID),
		slog.String("holder", holder),
		slog.Int("seats", seats),
	)
}

// LogReservationReleased logs when a reservation gives its seats back
func (l *Logger) LogReservationReleased(ctx context.Context, reservationID, reason string, seatsReleased int64) {
	l.Logger.InfoContext(ctx,
		"Reservation Released",
		slog.String("reservation_id", reservationID),
		slog.String("reason", reason),
		slog.Int64("seats_released", seatsReleased),
	)
}

// LogOrderCreated logs when a pending order is created
func (l *Logger) LogOrderCreated(ctx context.Context, orderID, reservationID string, totalCents int64) {
	l.Logger.InfoContext(ctx,
		"Order Created",
		slog.String("order_id", orderID),
		slog.String("reservation_id", reservationID),
		slog.Int64("total_cents", totalCents),
	)
}

// LogOrderPaid logs when an order is finalized
func (l *Logger) LogOrderPaid(ctx context.Context, orderID, paymentReference string, tickets int) {
	l.Logger.InfoContext(ctx,
		"Order Paid",
		slog.String("order_id", orderID),
		slog.String("payment_reference", paymentReference),
		slog.Int("tickets", tickets),
	)
}

// LogPaymentRejected logs a confirmation that did not pass verification
func (l *Logger) LogPaymentRejected(ctx context.Context, orderID, reason string, terminal bool) {
	l.Logger.WarnContext(ctx,
		"Payment Rejected",
		slog.String("order_id", orderID),
		slog.String("reason", reason),
		slog.Bool("terminal", terminal),
	)
}

// LogSweepCompleted logs the outcome of one expiration sweep
func (l *Logger) LogSweepCompleted(ctx context.Context, scanned, expired int, seatsReleased int64, failed int, duration time.Duration) {
	level := slog.LevelDebug
	if expired > 0 || failed > 0 {
		level = slog.LevelInfo
	}
	l.Logger.Log(ctx, level,
		"Expiration Sweep Completed",
		slog.Int("scanned", scanned),
		slog.Int("expired", expired),
		slog.Int64("seats_released", seatsReleased),
		slog.Int("failed", failed),
		slog.Duration("duration", duration),
	)
}

// Security logging methods

// LogAuthFailure logs failed authentication
func (l *Logger) LogAuthFailure(ctx context.Context, reason, ip string) {
	l.Logger.WarnContext(ctx,
		"Authentication Failure",
		slog.String("reason", reason),
		slog.String("ip", ip),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// LogWebhookRejected logs a webhook that failed signature verification
func (l *Logger) LogWebhookRejected(ctx context.Context, reason, ip string) {
	l.Logger.WarnContext(ctx,
		"Webhook Rejected",
		slog.String("reason", reason),
		slog.String("ip", ip),
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

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.DebugContext(ctx, msg, args...)
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
