package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id. Loggers derived with
// WithContext log it as request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// contextIDs returns the request_id and trace_id attributes for ctx.
// The trace ID comes from the active OpenTelemetry span, if any.
func contextIDs(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var ids []any
	if id := RequestID(ctx); id != "" {
		ids = append(ids, "request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ids = append(ids, "trace_id", sc.TraceID().String())
	}
	return ids
}
