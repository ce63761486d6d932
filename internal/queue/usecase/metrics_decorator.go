package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/metrics"
	"github.com/allisson/invsync/internal/queue/domain"
)

const metricsDomain = "queue"

// queueUseCaseWithMetrics decorates QueueUseCase with metrics instrumentation.
type queueUseCaseWithMetrics struct {
	next    QueueUseCase
	metrics metrics.BusinessMetrics
}

// NewQueueUseCaseWithMetrics wraps a QueueUseCase with metrics recording.
func NewQueueUseCaseWithMetrics(useCase QueueUseCase, m metrics.BusinessMetrics) QueueUseCase {
	return &queueUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (q *queueUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	q.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	q.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// Enqueue records metrics for operation enqueue.
func (q *queueUseCaseWithMetrics) Enqueue(ctx context.Context, input EnqueueInput) (*domain.Operation, error) {
	start := time.Now()
	op, err := q.next.Enqueue(ctx, input)
	q.record(ctx, "operation_enqueue", start, err)
	return op, err
}

func (q *queueUseCaseWithMetrics) ListPending(ctx context.Context) ([]*domain.Operation, error) {
	start := time.Now()
	operations, err := q.next.ListPending(ctx)
	q.record(ctx, "operation_list_pending", start, err)
	return operations, err
}

func (q *queueUseCaseWithMetrics) CountPending(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := q.next.CountPending(ctx)
	q.record(ctx, "operation_count_pending", start, err)
	return count, err
}

func (q *queueUseCaseWithMetrics) ListDeadLettered(ctx context.Context) ([]*domain.Operation, error) {
	start := time.Now()
	operations, err := q.next.ListDeadLettered(ctx)
	q.record(ctx, "operation_list_dead_lettered", start, err)
	return operations, err
}

func (q *queueUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	start := time.Now()
	op, err := q.next.Get(ctx, id)
	q.record(ctx, "operation_get", start, err)
	return op, err
}

func (q *queueUseCaseWithMetrics) HasPendingFor(ctx context.Context, entity string) (bool, error) {
	start := time.Now()
	pending, err := q.next.HasPendingFor(ctx, entity)
	q.record(ctx, "operation_has_pending", start, err)
	return pending, err
}

func (q *queueUseCaseWithMetrics) MarkInFlight(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	start := time.Now()
	op, err := q.next.MarkInFlight(ctx, id)
	q.record(ctx, "operation_mark_in_flight", start, err)
	return op, err
}

func (q *queueUseCaseWithMetrics) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := q.next.MarkSucceeded(ctx, id)
	q.record(ctx, "operation_mark_succeeded", start, err)
	return err
}

func (q *queueUseCaseWithMetrics) MarkFailed(ctx context.Context, id uuid.UUID, cause string) (*domain.Operation, error) {
	start := time.Now()
	op, err := q.next.MarkFailed(ctx, id, cause)
	q.record(ctx, "operation_mark_failed", start, err)
	return op, err
}

func (q *queueUseCaseWithMetrics) Reject(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := q.next.Reject(ctx, id)
	q.record(ctx, "operation_reject", start, err)
	return err
}

// Retry records metrics for user-initiated dead letter retries.
func (q *queueUseCaseWithMetrics) Retry(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	start := time.Now()
	op, err := q.next.Retry(ctx, id)
	q.record(ctx, "operation_retry", start, err)
	return op, err
}

func (q *queueUseCaseWithMetrics) Discard(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := q.next.Discard(ctx, id)
	q.record(ctx, "operation_discard", start, err)
	return err
}

func (q *queueUseCaseWithMetrics) Clear(ctx context.Context) error {
	start := time.Now()
	err := q.next.Clear(ctx)
	q.record(ctx, "queue_clear", start, err)
	return err
}

func (q *queueUseCaseWithMetrics) Recover(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := q.next.Recover(ctx)
	q.record(ctx, "queue_recover", start, err)
	return count, err
}
