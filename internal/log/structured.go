package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger emits the request and domain events the HTTP layer
// reports, keyed with the shared field names.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// HTTPStart logs the beginning of a request.
func (sl *StructuredLogger) HTTPStart(ctx context.Context, r *http.Request, clientIP, requestID string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.InfoContext(ctx, "Request started", fields.ToSlice()...)
}

// HTTPEnd logs request completion, escalating the level for error statuses.
func (sl *StructuredLogger) HTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP, requestID string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.Log(ctx, level, "Request completed", fields.ToSlice()...)
}

// Suspicious logs a request matching a known probe pattern.
func (sl *StructuredLogger) Suspicious(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), "").
		WithClientIP(clientIP).
		WithComponent(ComponentSecurity)

	sl.logger.WarnContext(ctx, "Suspicious request detected", fields.ToSlice()...)
}

// RateLimited logs a request rejected by the rate limiter.
func (sl *StructuredLogger) RateLimited(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, "", "", "").
		WithClientIP(clientIP).
		WithComponent(ComponentRateLimit)

	sl.logger.WarnContext(ctx, "Rate limit exceeded", fields.ToSlice()...)
}

// RecordCreated logs a successfully stored record.
func (sl *StructuredLogger) RecordCreated(ctx context.Context, recordID, projectID string, revenueCents, costCents int64) {
	fields := NewFields().
		WithRecord(recordID, projectID, revenueCents, costCents).
		WithOperation(OpCreate).
		WithComponent(ComponentRecord)

	sl.logger.InfoContext(ctx, "Record created", fields.ToSlice()...)
}

// Error logs a failure with component and operation context.
func (sl *StructuredLogger) Error(ctx context.Context, msg string, err error, component, operation string) {
	fields := NewFields().
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
