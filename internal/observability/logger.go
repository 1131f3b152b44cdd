// Package observability provides per-turn structured logging and funnel metrics.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldDialogID is the field name for dialog ID.
	LogFieldDialogID = "dialog_id"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldUtterance is the field name for the (truncated) user utterance.
	LogFieldUtterance = "utterance"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
	// LogFieldState is the field name for the funnel state.
	LogFieldState = "state"
	// LogFieldSource is the field name for a classifier source.
	LogFieldSource = "source"
)

// RequestContext carries the identity of one funnel turn for structured logging.
type RequestContext struct {
	RequestID string
	DialogID  string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRequestContext creates a new request context with a generated request ID.
func NewRequestContext(logger *slog.Logger, dialogID string) *RequestContext {
	return NewRequestContextWithID(logger, generateRequestID(), dialogID)
}

// NewRequestContextWithID creates a new request context with a specific request ID.
func NewRequestContextWithID(logger *slog.Logger, requestID, dialogID string) *RequestContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestContext{
		RequestID: requestID,
		DialogID:  dialogID,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// Info logs an info message.
func (r *RequestContext) Info(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelInfo, msg, attrs...)
}

// Debug logs a debug message.
func (r *RequestContext) Debug(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelDebug, msg, attrs...)
}

// Warn logs a warning message.
func (r *RequestContext) Warn(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelWarn, msg, attrs...)
}

// Error logs an error message with the error.
func (r *RequestContext) Error(msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	r.log(slog.LevelError, msg, attrs...)
}

// DurationMs returns the elapsed time in milliseconds.
func (r *RequestContext) DurationMs() int64 {
	return time.Since(r.StartTime).Milliseconds()
}

func (r *RequestContext) log(level slog.Level, msg string, attrs ...slog.Attr) {
	combined := append([]slog.Attr{
		slog.String(LogFieldRequestID, r.RequestID),
		slog.String(LogFieldDialogID, r.DialogID),
	}, attrs...)
	r.Logger.LogAttrs(context.Background(), level, msg, combined...)
}

func generateRequestID() string {
	return uuid.New().String()
}

type ctxKey struct{}

// WithRequestContext adds the request context to the context.
func WithRequestContext(ctx context.Context, reqCtx *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, reqCtx)
}

// FromContext extracts the request context from the context.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	reqCtx, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return reqCtx, ok
}

// DialogIDFromContext returns the dialog id of the current turn, if any.
func DialogIDFromContext(ctx context.Context) string {
	if reqCtx, ok := FromContext(ctx); ok {
		return reqCtx.DialogID
	}
	return ""
}

// Truncate shortens s to at most maxRunes runes for log output.
func Truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
