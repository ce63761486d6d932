// Package usecase turns inventory writes into mutation intents with their optimistic effects.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/invsync/internal/mutation"
)

// Performer executes write intents.
type Performer interface {
	Perform(ctx context.Context, intent mutation.Intent) (*mutation.Result, error)
}

// AddBatchInput describes a new batch. ID is generated when empty so later writes can
// reference the batch before the server has seen it.
type AddBatchInput struct {
	ID        string
	HotelID   string
	Product   string
	Quantity  int
	Unit      string
	ExpiresAt *time.Time
}

// ConsumeInput takes Quantity units out of a batch.
type ConsumeInput struct {
	HotelID  string
	Quantity int
	// Reason is recorded with write-offs and optional for collections.
	Reason string
}

// UpdateBatchInput changes descriptive fields of a batch. Nil fields are left unchanged.
type UpdateBatchInput struct {
	HotelID   string
	Product   *string
	Unit      *string
	ExpiresAt *time.Time
}

// InventoryUseCase performs inventory writes, online or queued.
type InventoryUseCase interface {
	AddBatch(ctx context.Context, input AddBatchInput) (*mutation.Result, error)
	CollectBatch(ctx context.Context, batchID string, input ConsumeInput) (*mutation.Result, error)
	WriteOff(ctx context.Context, batchID string, input ConsumeInput) (*mutation.Result, error)
	UpdateBatch(ctx context.Context, batchID string, input UpdateBatchInput) (*mutation.Result, error)
	DeleteBatch(ctx context.Context, batchID, hotelID string) (*mutation.Result, error)
}
