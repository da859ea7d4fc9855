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
	// LogFieldChannel is the field name for the conversation channel.
	LogFieldChannel = "channel"
	// LogFieldUserID is the field name for the channel-scoped user ID.
	LogFieldUserID = "user_id"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldMessageLen is the field name for message length.
	LogFieldMessageLen = "message_length"
	// LogFieldLanguage is the field name for the resolved language.
	LogFieldLanguage = "language"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
)

// TurnContext carries structured logging state for one conversation turn.
type TurnContext struct {
	RequestID string
	Channel   string
	UserID    string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewTurnContext creates a turn context with a generated request ID.
func NewTurnContext(logger *slog.Logger, channel, userID string) *TurnContext {
	return &TurnContext{
		RequestID: uuid.New().String(),
		Channel:   channel,
		UserID:    userID,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// Info logs an info message.
func (t *TurnContext) Info(msg string, attrs ...slog.Attr) {
	t.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, t.withBase(attrs...)...)
}

// Debug logs a debug message.
func (t *TurnContext) Debug(msg string, attrs ...slog.Attr) {
	t.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, t.withBase(attrs...)...)
}

// Warn logs a warning message.
func (t *TurnContext) Warn(msg string, attrs ...slog.Attr) {
	t.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, t.withBase(attrs...)...)
}

// Error logs an error message with the error.
func (t *TurnContext) Error(msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	t.Logger.LogAttrs(context.Background(), slog.LevelError, msg, t.withBase(attrs...)...)
}

// Duration returns the elapsed time since the turn started.
func (t *TurnContext) Duration() time.Duration {
	return time.Since(t.StartTime)
}

func (t *TurnContext) withBase(attrs ...slog.Attr) []slog.Attr {
	base := []slog.Attr{
		slog.String(LogFieldRequestID, t.RequestID),
		slog.String(LogFieldChannel, t.Channel),
		slog.String(LogFieldUserID, t.UserID),
	}
	return append(base, attrs...)
}

type ctxKey struct{}

// WithTurnContext adds the turn context to the context.
func WithTurnContext(ctx context.Context, tc *TurnContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext extracts the turn context from the context.
func FromContext(ctx context.Context) (*TurnContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*TurnContext)
	return tc, ok
}
