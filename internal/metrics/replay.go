package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QueueDepthFunc reports the number of replayable and dead-lettered operations.
type QueueDepthFunc func(ctx context.Context) (pending, deadLettered int, err error)

// ReplayMetrics records the outcome of every replayed operation.
type ReplayMetrics interface {
	// RecordReplay counts one replay attempt.
	// Outcome examples: "succeeded", "rejected", "retryable", "dead_lettered"
	RecordReplay(ctx context.Context, operationType, outcome string)
}

type replayMetrics struct {
	replayCounter metric.Int64Counter
}

// NewReplayMetrics creates ReplayMetrics and registers an observable queue depth gauge fed by depth.
func NewReplayMetrics(meterProvider metric.MeterProvider, namespace string, depth QueueDepthFunc) (ReplayMetrics, error) {
	meter := meterProvider.Meter(namespace)

	replayCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_replay_attempts_total", namespace),
		metric.WithDescription("Total number of replayed operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay counter: %w", err)
	}

	if depth != nil {
		_, err = meter.Int64ObservableGauge(
			fmt.Sprintf("%s_queue_depth", namespace),
			metric.WithDescription("Number of queued operations by state"),
			metric.WithUnit("{operation}"),
			metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
				pending, deadLettered, err := depth(ctx)
				if err != nil {
					return err
				}
				o.Observe(int64(pending), metric.WithAttributes(attribute.String("state", "pending")))
				o.Observe(int64(deadLettered), metric.WithAttributes(attribute.String("state", "dead_lettered")))
				return nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create queue depth gauge: %w", err)
		}
	}

	return &replayMetrics{replayCounter: replayCounter}, nil
}

func (r *replayMetrics) RecordReplay(ctx context.Context, operationType, outcome string) {
	r.replayCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation_type", operationType),
			attribute.String("outcome", outcome),
		),
	)
}

// NoOpReplayMetrics is a no-op implementation of ReplayMetrics for when metrics are disabled.
type NoOpReplayMetrics struct{}

// NewNoOpReplayMetrics creates a no-op ReplayMetrics implementation.
func NewNoOpReplayMetrics() ReplayMetrics {
	return &NoOpReplayMetrics{}
}

// RecordReplay does nothing when metrics are disabled.
func (n *NoOpReplayMetrics) RecordReplay(ctx context.Context, operationType, outcome string) {}
