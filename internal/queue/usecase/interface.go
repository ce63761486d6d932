// Package usecase implements the sync queue manager: the single append point for intercepted
// writes and the owner of every operation state transition.
package usecase

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/allisson/invsync/internal/queue/domain"
)

// OperationRepository defines durable storage for queued operations.
type OperationRepository interface {
	Append(ctx context.Context, op *domain.Operation) error
	ListAll(ctx context.Context) ([]*domain.Operation, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.StatePatch) error
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveAll(ctx context.Context) error
}

// EffectReverter is the part of the optimistic overlay the queue drives on user actions and restart.
type EffectReverter interface {
	Rollback(ctx context.Context, op *domain.Operation) error
	Restore(ctx context.Context, ops []*domain.Operation) error
}

// EnqueueInput describes an intercepted write.
type EnqueueInput struct {
	// ID is optional; a UUIDv7 is generated when zero.
	ID        uuid.UUID
	Type      domain.OperationType
	Entity    string
	Endpoint  string
	Method    string
	Payload   json.RawMessage
	Effects   []domain.Effect
	CacheKeys []string
}

// QueueUseCase defines the sync queue manager operations.
type QueueUseCase interface {
	// Enqueue validates and durably appends a new pending operation. A storage failure is
	// reported as domain.ErrStorage so callers can tell the user the write was not queued.
	Enqueue(ctx context.Context, input EnqueueInput) (*domain.Operation, error)
	// ListPending returns every non-dead-lettered operation in FIFO order.
	ListPending(ctx context.Context) ([]*domain.Operation, error)
	CountPending(ctx context.Context) (int, error)
	ListDeadLettered(ctx context.Context) ([]*domain.Operation, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	// HasPendingFor reports whether any queued operation, dead letters included, targets entity.
	HasPendingFor(ctx context.Context, entity string) (bool, error)

	MarkInFlight(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	// MarkFailed records a retryable failure and dead-letters the operation once it reaches
	// the attempt limit.
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) (*domain.Operation, error)
	Reject(ctx context.Context, id uuid.UUID) error

	// Retry moves a dead-lettered operation back to pending with a fresh attempt budget.
	Retry(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	// Discard removes an operation that is not being replayed and reverts its optimistic effects.
	Discard(ctx context.Context, id uuid.UUID) error
	// Clear removes every operation and reverts every optimistic effect.
	Clear(ctx context.Context) error
	// Recover returns in-flight operations to pending in one transaction after a restart and restores the
	// optimistic effects of everything still replayable. It returns the number of replayable operations.
	Recover(ctx context.Context) (int, error)
}
