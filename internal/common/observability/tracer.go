package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer is the port stages and clients emit start/end/error events through.
// Implementations must never block or fail the traced operation.
type Tracer interface {
	Start(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, Span)
}

// Span is closed by exactly one of End or Fail.
type Span interface {
	End(attrs map[string]interface{})
	Fail(err error)
}

// NopTracer drops every event.
type NopTracer struct{}

func (NopTracer) Start(ctx context.Context, _ string, _ map[string]interface{}) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) End(map[string]interface{}) {}
func (nopSpan) Fail(error)                 {}

// OTelTracer adapts an OpenTelemetry tracer to the Tracer port.
type OTelTracer struct {
	tracer trace.Tracer
}

func NewOTelTracer(provider trace.TracerProvider, name string) *OTelTracer {
	if provider == nil {
		provider = noop.NewTracerProvider()
	}
	return &OTelTracer{tracer: provider.Tracer(name)}
}

func (t *OTelTracer) Start(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
	return ctx, &otelSpan{span: span, started: time.Now()}
}

type otelSpan struct {
	span    trace.Span
	started time.Time
}

func (s *otelSpan) End(attrs map[string]interface{}) {
	s.span.SetAttributes(toAttributes(attrs)...)
	s.span.SetAttributes(attribute.Int64("duration_ms", time.Since(s.started).Milliseconds()))
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
}

func (s *otelSpan) Fail(err error) {
	s.span.SetAttributes(attribute.Int64("duration_ms", time.Since(s.started).Milliseconds()))
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func toAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return out
}

// NewTracerProvider exports spans to a Jaeger collector endpoint.
func NewTracerProvider(serviceName, endpoint string, sampleRatio float64) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	), nil
}

// Summarize trims free text so it can travel as a span attribute.
func Summarize(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
