// Package mocks provides mock implementations for testing inventory handlers and use cases.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/invsync/internal/inventory/usecase"
	"github.com/allisson/invsync/internal/mutation"
)

// MockPerformer is a mock implementation of usecase.Performer.
type MockPerformer struct {
	mock.Mock
}

func (m *MockPerformer) Perform(ctx context.Context, intent mutation.Intent) (*mutation.Result, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mutation.Result), args.Error(1)
}

// MockInventoryUseCase is a mock implementation of usecase.InventoryUseCase.
type MockInventoryUseCase struct {
	mock.Mock
}

func (m *MockInventoryUseCase) AddBatch(ctx context.Context, input usecase.AddBatchInput) (*mutation.Result, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mutation.Result), args.Error(1)
}

func (m *MockInventoryUseCase) CollectBatch(
	ctx context.Context,
	batchID string,
	input usecase.ConsumeInput,
) (*mutation.Result, error) {
	args := m.Called(ctx, batchID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mutation.Result), args.Error(1)
}

func (m *MockInventoryUseCase) WriteOff(
	ctx context.Context,
	batchID string,
	input usecase.ConsumeInput,
) (*mutation.Result, error) {
	args := m.Called(ctx, batchID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mutation.Result), args.Error(1)
}

func (m *MockInventoryUseCase) UpdateBatch(
	ctx context.Context,
	batchID string,
	input usecase.UpdateBatchInput,
) (*mutation.Result, error) {
	args := m.Called(ctx, batchID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mutation.Result), args.Error(1)
}

func (m *MockInventoryUseCase) DeleteBatch(ctx context.Context, batchID, hotelID string) (*mutation.Result, error) {
	args := m.Called(ctx, batchID, hotelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mutation.Result), args.Error(1)
}
