// Package middleware provides HTTP middleware for the Gin framework.
//
// The chain installed by the router is Recovery, RequestID, CorrelationID,
// TaskContext, telemetry and Logging, so every later handler sees a request
// context carrying the IDs, an active task context and an enriched logger.
package middleware

import "context"

type idKey int

const (
	requestIDKey idKey = iota
	correlationIDKey
)

// RequestIDFromContext returns the request ID stored by the RequestID
// middleware, or "" when there is none.
func RequestIDFromContext(ctx context.Context) string {
	return idFrom(ctx, requestIDKey)
}

// CorrelationIDFromContext returns the correlation ID stored by the
// CorrelationID middleware, or "" when there is none. Work dispatched from a
// request runs in a fresh execution unit derived from the request context
// and so keeps the ID.
func CorrelationIDFromContext(ctx context.Context) string {
	return idFrom(ctx, correlationIDKey)
}

// ContextWithRequestID stores a request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// ContextWithCorrelationID stores a correlation ID in the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func idFrom(ctx context.Context, key idKey) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(key).(string)

	return id
}
