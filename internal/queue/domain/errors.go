package domain

import (
	"github.com/allisson/invsync/internal/errors"
)

// Operation-specific error definitions.
var (
	// ErrOperationNotFound indicates no queued operation has the given ID.
	ErrOperationNotFound = errors.Wrap(errors.ErrNotFound, "operation not found")

	// ErrStorage indicates the durable store rejected a write, so the operation was not queued.
	ErrStorage = errors.Wrap(errors.ErrUnavailable, "operation was not queued")

	// ErrInvalidOperation indicates the operation failed local validation.
	ErrInvalidOperation = errors.Wrap(errors.ErrInvalidInput, "invalid operation")

	// ErrDuplicateOperation indicates an operation with the same ID is already queued.
	ErrDuplicateOperation = errors.Wrap(errors.ErrConflict, "operation already queued")

	// ErrNotDeadLettered indicates a retry was requested for an operation that is still replayable.
	ErrNotDeadLettered = errors.Wrap(errors.ErrConflict, "operation is not dead-lettered")

	// ErrOperationInFlight indicates the operation is being replayed and cannot be discarded.
	ErrOperationInFlight = errors.Wrap(errors.ErrConflict, "operation is being replayed")
)
