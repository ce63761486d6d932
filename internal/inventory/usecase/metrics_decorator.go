package usecase

import (
	"context"
	"time"

	"github.com/allisson/invsync/internal/metrics"
	"github.com/allisson/invsync/internal/mutation"
)

const metricsDomain = "inventory"

// inventoryUseCaseWithMetrics decorates InventoryUseCase with metrics instrumentation.
type inventoryUseCaseWithMetrics struct {
	next    InventoryUseCase
	metrics metrics.BusinessMetrics
}

// NewInventoryUseCaseWithMetrics wraps an InventoryUseCase with metrics recording. The status
// label distinguishes writes applied online ("applied"), queued ("pending") and failed ("error").
func NewInventoryUseCaseWithMetrics(useCase InventoryUseCase, m metrics.BusinessMetrics) InventoryUseCase {
	return &inventoryUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (i *inventoryUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	result *mutation.Result,
	err error,
) {
	status := "error"
	if err == nil && result != nil {
		status = string(result.Status)
	}

	i.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	i.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (i *inventoryUseCaseWithMetrics) AddBatch(ctx context.Context, input AddBatchInput) (*mutation.Result, error) {
	start := time.Now()
	result, err := i.next.AddBatch(ctx, input)
	i.record(ctx, "batch_add", start, result, err)
	return result, err
}

func (i *inventoryUseCaseWithMetrics) CollectBatch(
	ctx context.Context,
	batchID string,
	input ConsumeInput,
) (*mutation.Result, error) {
	start := time.Now()
	result, err := i.next.CollectBatch(ctx, batchID, input)
	i.record(ctx, "batch_collect", start, result, err)
	return result, err
}

func (i *inventoryUseCaseWithMetrics) WriteOff(
	ctx context.Context,
	batchID string,
	input ConsumeInput,
) (*mutation.Result, error) {
	start := time.Now()
	result, err := i.next.WriteOff(ctx, batchID, input)
	i.record(ctx, "batch_write_off", start, result, err)
	return result, err
}

func (i *inventoryUseCaseWithMetrics) UpdateBatch(
	ctx context.Context,
	batchID string,
	input UpdateBatchInput,
) (*mutation.Result, error) {
	start := time.Now()
	result, err := i.next.UpdateBatch(ctx, batchID, input)
	i.record(ctx, "batch_update", start, result, err)
	return result, err
}

func (i *inventoryUseCaseWithMetrics) DeleteBatch(ctx context.Context, batchID, hotelID string) (*mutation.Result, error) {
	start := time.Now()
	result, err := i.next.DeleteBatch(ctx, batchID, hotelID)
	i.record(ctx, "batch_delete", start, result, err)
	return result, err
}
