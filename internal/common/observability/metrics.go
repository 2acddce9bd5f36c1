package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	fetchCounter   otelmetric.Int64Counter
	handleDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	fetchCounter, _ := meter.Int64Counter(
		"snapshots.fetched",
		otelmetric.WithDescription("Number of notification snapshots fetched"),
	)

	handleDuration, _ := meter.Float64Histogram(
		"snapshots.handle.duration",
		otelmetric.WithDescription("Time spent handling an applied snapshot"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		fetchCounter:   fetchCounter,
		handleDuration: handleDuration,
	}
}

func (o *Observability) RecordSnapshotFetched(ctx context.Context, status string) {
	if o.fetchCounter != nil {
		o.fetchCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordHandleDuration(ctx context.Context, duration time.Duration, status string) {
	if o.handleDuration != nil {
		o.handleDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
