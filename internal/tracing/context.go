package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceIDKey struct{}

// ContextWithTraceID tags ctx with the run's trace ID so log lines and
// downstream operations can be correlated with the exported span.
// An empty ID leaves ctx unchanged.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext returns the trace ID set by ContextWithTraceID,
// or an empty string when none is set.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// NewTraceID returns a random trace ID in W3C format (16 bytes, hex).
// Used for correlation when the span context carries no valid ID,
// which is the case whenever tracing is disabled.
func NewTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
