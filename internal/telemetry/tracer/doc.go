// Package tracer provides request tracing for kubedash.
//
// It configures an OpenTelemetry tracer provider, exporting over
// OTLP/HTTP when an endpoint is configured, and exposes StartSpan for
// the API client. Without an endpoint spans are created but dropped.
package tracer
