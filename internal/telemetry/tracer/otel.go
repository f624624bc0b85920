package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kubedash/kubedash-go"

// Config configures tracing.
type Config struct {
	// ServiceName is reported as service.name. Default: kubedash-cli.
	ServiceName string `koanf:"service_name" json:"service_name" yaml:"service_name"`
	// Endpoint is the OTLP/HTTP collector URL. Empty disables export.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	// SampleRatio is the fraction of root spans sampled (0..1). Default: 1.
	SampleRatio float64 `koanf:"sample_ratio" json:"sample_ratio" yaml:"sample_ratio"`
}

// Provider manages the OpenTelemetry tracer provider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// New creates a tracer provider and installs it as the global provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []sdktrace.TracerProviderOption
	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, fmt.Errorf("tracer: create exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return newProvider(ctx, cfg, opts...)
}

// NewWithExporter creates a provider that exports synchronously to exp.
func NewWithExporter(ctx context.Context, cfg Config, exp sdktrace.SpanExporter) (*Provider, error) {
	return newProvider(ctx, cfg, sdktrace.WithSyncer(exp))
}

func newProvider(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "kubedash-cli"
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return nil, fmt.Errorf("tracer: build resource: %w", err)
	}

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartSpan starts a new client span from the global provider.
func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, s := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, otelSpan{s}
}

// Inject writes the trace context of ctx into outgoing headers.
func Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// Span represents a trace span.
type Span interface {
	End()
	SetAttribute(key string, value any)
	RecordError(err error)
}

type otelSpan struct {
	s trace.Span
}

func (o otelSpan) End() { o.s.End() }

func (o otelSpan) SetAttribute(key string, value any) {
	var kv attribute.KeyValue
	switch v := value.(type) {
	case string:
		kv = attribute.String(key, v)
	case int:
		kv = attribute.Int(key, v)
	case int64:
		kv = attribute.Int64(key, v)
	case bool:
		kv = attribute.Bool(key, v)
	case float64:
		kv = attribute.Float64(key, v)
	default:
		kv = attribute.String(key, fmt.Sprint(v))
	}
	o.s.SetAttributes(kv)
}

func (o otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	o.s.RecordError(err)
	o.s.SetStatus(codes.Error, err.Error())
}
