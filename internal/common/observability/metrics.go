package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records pipeline-level measurements through the OpenTelemetry meter API.
type Metrics struct {
	meterProvider *metric.MeterProvider
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	carsReturned  otelmetric.Int64Histogram
}

// NewMetrics wires an OTel meter provider onto the Prometheus exporter. A failed exporter
// yields a Metrics whose methods are no-ops.
func NewMetrics(serviceName string) (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Metrics{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	runCounter, _ := meter.Int64Counter(
		"pipeline.runs",
		otelmetric.WithDescription("Number of pipeline runs"),
	)
	runDuration, _ := meter.Float64Histogram(
		"pipeline.duration",
		otelmetric.WithDescription("End to end pipeline duration"),
		otelmetric.WithUnit("ms"),
	)
	carsReturned, _ := meter.Int64Histogram(
		"pipeline.cars",
		otelmetric.WithDescription("Cars returned per successful run"),
	)

	return &Metrics{
		meterProvider: provider,
		runCounter:    runCounter,
		runDuration:   runDuration,
		carsReturned:  carsReturned,
	}, nil
}

func (m *Metrics) RecordRun(ctx context.Context, operation, status string, duration time.Duration, cars int) {
	if m == nil || m.runCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.runCounter.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if status == "success" {
		m.carsReturned.Record(ctx, int64(cars), otelmetric.WithAttributes(attribute.String("operation", operation)))
	}
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.Shutdown(ctx)
}
