// Package mocks provides mock implementations for testing the sync queue and its callers.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/invsync/internal/queue/domain"
	"github.com/allisson/invsync/internal/queue/usecase"
)

// MockOperationRepository is a mock implementation of usecase.OperationRepository.
type MockOperationRepository struct {
	mock.Mock
}

func (m *MockOperationRepository) Append(ctx context.Context, op *domain.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperationRepository) ListAll(ctx context.Context) ([]*domain.Operation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Operation), args.Error(1)
}

func (m *MockOperationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockOperationRepository) Update(ctx context.Context, id uuid.UUID, patch domain.StatePatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockOperationRepository) Remove(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOperationRepository) RemoveAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockTxManager is a mock implementation of database.TxManager. A nil return runs fn.
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockEffectReverter is a mock implementation of usecase.EffectReverter.
type MockEffectReverter struct {
	mock.Mock
}

func (m *MockEffectReverter) Rollback(ctx context.Context, op *domain.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockEffectReverter) Restore(ctx context.Context, ops []*domain.Operation) error {
	args := m.Called(ctx, ops)
	return args.Error(0)
}

// MockQueueUseCase is a mock implementation of usecase.QueueUseCase.
type MockQueueUseCase struct {
	mock.Mock
}

func (m *MockQueueUseCase) Enqueue(ctx context.Context, input usecase.EnqueueInput) (*domain.Operation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockQueueUseCase) ListPending(ctx context.Context) ([]*domain.Operation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Operation), args.Error(1)
}

func (m *MockQueueUseCase) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueUseCase) ListDeadLettered(ctx context.Context) ([]*domain.Operation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Operation), args.Error(1)
}

func (m *MockQueueUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockQueueUseCase) HasPendingFor(ctx context.Context, entity string) (bool, error) {
	args := m.Called(ctx, entity)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueUseCase) MarkInFlight(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockQueueUseCase) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQueueUseCase) MarkFailed(ctx context.Context, id uuid.UUID, cause string) (*domain.Operation, error) {
	args := m.Called(ctx, id, cause)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockQueueUseCase) Reject(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQueueUseCase) Retry(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockQueueUseCase) Discard(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQueueUseCase) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockQueueUseCase) Recover(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
