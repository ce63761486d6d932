package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// durationBuckets spans local queue writes (sub-millisecond) up to a direct API call hitting
// the default 15s transport timeout.
var durationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15}

// BusinessMetrics records counts and latencies of queue and inventory operations.
type BusinessMetrics interface {
	// RecordOperation counts one call.
	// Domains: "queue", "inventory". Operations: "operation_enqueue", "operation_retry", "batch_collect".
	// Status: "success"/"error" for the queue, "applied"/"pending"/"error" for inventory writes.
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes the latency of one call in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

type businessMetrics struct {
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// NewBusinessMetrics registers the "<namespace>_operations_total" counter and the
// "<namespace>_operation_duration_seconds" histogram on meterProvider.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	calls, err := meter.Int64Counter(
		namespace+"_operations_total",
		metric.WithDescription("Total number of queue and inventory operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		namespace+"_operation_duration_seconds",
		metric.WithDescription("Duration of queue and inventory operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &businessMetrics{calls: calls, latency: latency}, nil
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.calls.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.latency.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

// NoOpBusinessMetrics discards everything. Used when METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}
