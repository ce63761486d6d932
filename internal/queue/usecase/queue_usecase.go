package usecase

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/database"
	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/queue/domain"
)

// queueUseCase implements QueueUseCase.
type queueUseCase struct {
	mu          sync.Mutex
	repo        OperationRepository
	txManager   database.TxManager
	overlay     EffectReverter
	maxAttempts int
	logger      *slog.Logger
}

// NewQueueUseCase creates a new QueueUseCase. maxAttempts below 1 is treated as 1.
func NewQueueUseCase(
	repo OperationRepository,
	txManager database.TxManager,
	overlay EffectReverter,
	maxAttempts int,
	logger *slog.Logger,
) QueueUseCase {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &queueUseCase{
		repo:        repo,
		txManager:   txManager,
		overlay:     overlay,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (q *queueUseCase) Enqueue(ctx context.Context, input EnqueueInput) (*domain.Operation, error) {
	if err := ValidateEnqueueInput(input); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := input.ID
	if id == uuid.Nil {
		var err error
		if id, err = uuid.NewV7(); err != nil {
			return nil, apperrors.Wrap(err, "failed to generate operation id")
		}
	} else {
		_, err := q.repo.Get(ctx, id)
		if err == nil {
			return nil, domain.ErrDuplicateOperation
		}
		if !apperrors.Is(err, domain.ErrOperationNotFound) {
			return nil, apperrors.Join(domain.ErrStorage, err)
		}
	}

	op := (&domain.Operation{
		ID:         id,
		Type:       input.Type,
		Entity:     input.Entity,
		Endpoint:   input.Endpoint,
		Method:     input.Method,
		Payload:    input.Payload,
		Effects:    input.Effects,
		CacheKeys:  input.CacheKeys,
		EnqueuedAt: time.Now().UTC(),
		Status:     domain.StatusPending,
	}).Clone()

	if err := q.repo.Append(ctx, op); err != nil {
		return nil, apperrors.Join(domain.ErrStorage, err)
	}

	q.logger.Debug("operation enqueued",
		slog.String("operation_id", op.ID.String()),
		slog.String("type", string(op.Type)),
		slog.String("entity", op.Entity),
	)

	return op, nil
}

func (q *queueUseCase) ListPending(ctx context.Context) ([]*domain.Operation, error) {
	return q.filter(ctx, func(op *domain.Operation) bool {
		return op.Status != domain.StatusDeadLettered
	})
}

func (q *queueUseCase) CountPending(ctx context.Context) (int, error) {
	operations, err := q.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	return len(operations), nil
}

func (q *queueUseCase) ListDeadLettered(ctx context.Context) ([]*domain.Operation, error) {
	return q.filter(ctx, func(op *domain.Operation) bool {
		return op.Status == domain.StatusDeadLettered
	})
}

func (q *queueUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	return q.repo.Get(ctx, id)
}

func (q *queueUseCase) HasPendingFor(ctx context.Context, entity string) (bool, error) {
	operations, err := q.repo.ListAll(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(operations, func(op *domain.Operation) bool {
		return op.Entity == entity
	}), nil
}

func (q *queueUseCase) MarkInFlight(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	return q.transition(ctx, id, func(op *domain.Operation) error {
		if !op.Status.Runnable() {
			return apperrors.Wrapf(domain.ErrInvalidOperation, "cannot replay %s operation", op.Status)
		}
		op.Status = domain.StatusInFlight
		return nil
	})
}

func (q *queueUseCase) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.repo.Remove(ctx, id)
}

func (q *queueUseCase) MarkFailed(ctx context.Context, id uuid.UUID, cause string) (*domain.Operation, error) {
	return q.transition(ctx, id, func(op *domain.Operation) error {
		op.Attempts++
		op.LastError = &cause
		op.Status = domain.StatusFailed
		if op.Attempts >= q.maxAttempts {
			op.Status = domain.StatusDeadLettered
		}
		return nil
	})
}

func (q *queueUseCase) Reject(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.repo.Remove(ctx, id)
}

func (q *queueUseCase) Retry(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	op, err := q.transition(ctx, id, func(op *domain.Operation) error {
		if op.Status != domain.StatusDeadLettered {
			return domain.ErrNotDeadLettered
		}
		op.Status = domain.StatusPending
		op.Attempts = 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The effect was reconciled away when the operation was dead-lettered.
	if err := q.overlay.Restore(ctx, []*domain.Operation{op}); err != nil {
		q.logger.Warn("failed to restore optimistic effect",
			slog.String("operation_id", op.ID.String()),
			slog.Any("error", err),
		)
	}
	return op, nil
}

func (q *queueUseCase) Discard(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if op.Status == domain.StatusInFlight {
		return domain.ErrOperationInFlight
	}
	if err := q.repo.Remove(ctx, id); err != nil {
		return err
	}
	return q.overlay.Rollback(ctx, op)
}

func (q *queueUseCase) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	operations, err := q.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	if err := q.repo.RemoveAll(ctx); err != nil {
		return err
	}

	var errs []error
	for _, op := range slices.Backward(operations) {
		if err := q.overlay.Rollback(ctx, op); err != nil {
			errs = append(errs, err)
		}
	}

	q.logger.Info("operation queue cleared", slog.Int("removed", len(operations)))
	return apperrors.Join(errs...)
}

func (q *queueUseCase) Recover(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	operations, err := q.repo.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	replayable := make([]*domain.Operation, 0, len(operations))
	var interrupted []*domain.Operation
	for _, op := range operations {
		if op.Status == domain.StatusDeadLettered {
			continue
		}
		if op.Status == domain.StatusInFlight {
			// The outcome of the interrupted call is unknown; replaying it relies on
			// the server honouring the idempotency key.
			op.Status = domain.StatusPending
			interrupted = append(interrupted, op)
		}
		replayable = append(replayable, op)
	}

	err = q.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, op := range interrupted {
			if err := q.repo.Update(ctx, op.ID, op.Patch()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, op := range interrupted {
		q.logger.Info("recovered in-flight operation", slog.String("operation_id", op.ID.String()))
	}

	if err := q.overlay.Restore(ctx, replayable); err != nil {
		return len(replayable), err
	}
	return len(replayable), nil
}

func (q *queueUseCase) filter(ctx context.Context, keep func(*domain.Operation) bool) ([]*domain.Operation, error) {
	operations, err := q.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(operations, func(op *domain.Operation) bool { return !keep(op) }), nil
}

// transition loads an operation, lets change mutate its state, and persists the result.
func (q *queueUseCase) transition(
	ctx context.Context,
	id uuid.UUID,
	change func(op *domain.Operation) error,
) (*domain.Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := change(op); err != nil {
		return nil, err
	}
	if err := q.repo.Update(ctx, op.ID, op.Patch()); err != nil {
		return nil, err
	}
	return op, nil
}
