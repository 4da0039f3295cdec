package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	fieldsKey    ctxKey = "log_fields"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithFields attaches fields that every FromCtx logger of ctx will carry,
// e.g. the caller once authenticated or the order a handler works on.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	prev := fieldsFrom(ctx)
	merged := make([]zap.Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey, merged)
}

// WithActor tags ctx with the authenticated caller.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	return WithFields(ctx, zap.String("actor_id", actorID), zap.String("actor_role", role))
}

// WithOrder tags ctx with the order being handled.
func WithOrder(ctx context.Context, orderID string) context.Context {
	if orderID == "" {
		return ctx
	}
	return WithFields(ctx, zap.String("order_id", orderID))
}

func fieldsFrom(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(fieldsKey).([]zap.Field)
	return fields
}

// FromCtx returns the global logger with request_id and any WithFields values.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if fields := fieldsFrom(ctx); len(fields) > 0 {
		l = l.With(fields...)
	}
	return l
}
