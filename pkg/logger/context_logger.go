package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// WithRequestID stores the request id for later log enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithUserID stores the authenticated broadcaster identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger *zap.SugaredLogger
}

// NewContextLogger creates a new context logger
func NewContextLogger(logger *zap.SugaredLogger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// For returns a logger carrying request_id and user_id from ctx when present.
func (cl *ContextLogger) For(ctx context.Context) *zap.SugaredLogger {
	var kv []interface{}
	if id := RequestIDFromContext(ctx); id != "" {
		kv = append(kv, "request_id", id)
	}
	if id := UserIDFromContext(ctx); id != "" {
		kv = append(kv, "user_id", id)
	}
	if len(kv) == 0 {
		return cl.logger
	}
	return cl.logger.With(kv...)
}

// Base returns the logger without context fields.
func (cl *ContextLogger) Base() *zap.SugaredLogger {
	return cl.logger
}
