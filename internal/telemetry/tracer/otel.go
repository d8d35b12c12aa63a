package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTracerName is the instrumentation scope used by StartSpan.
const DefaultTracerName = "github.com/yndnr/chaingate"

// Provider resolves tracers from the global OpenTelemetry provider.
type Provider struct {
	name   string
	tracer trace.Tracer
}

// New creates a provider for the named instrumentation scope.
func New(name string) *Provider {
	if name == "" {
		name = DefaultTracerName
	}
	return &Provider{name: name, tracer: otel.Tracer(name)}
}

// Name returns the instrumentation scope name.
func (p *Provider) Name() string {
	return p.name
}

// Start starts a span named name as a child of any span in ctx.
func (p *Provider) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, s := p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, otelSpan{s}
}

var defaultProvider = New(DefaultTracerName)

// StartSpan starts a span from the default provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	return defaultProvider.Start(ctx, name, attrs...)
}

// TraceID returns the hex trace id of the span in ctx, or "" when the span
// is not sampled or absent.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
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
	o.s.SetAttributes(toAttribute(key, value))
}

func (o otelSpan) RecordError(err error) {
	if err == nil {
		o.s.SetStatus(codes.Ok, "")
		return
	}
	o.s.RecordError(err)
	o.s.SetStatus(codes.Error, err.Error())
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case uint64:
		return attribute.Int64(key, int64(v))
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
