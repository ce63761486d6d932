package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOperationType_Valid(t *testing.T) {
	for _, opType := range OperationTypes {
		assert.True(t, opType.Valid(), string(opType))
	}
	assert.False(t, OperationType("MOVE").Valid())
	assert.False(t, OperationType("").Valid())
}

func TestStatus_Runnable(t *testing.T) {
	assert.True(t, StatusPending.Runnable())
	assert.True(t, StatusFailed.Runnable())
	assert.False(t, StatusInFlight.Runnable())
	assert.False(t, StatusDeadLettered.Runnable())
}

func TestOperation_Keys(t *testing.T) {
	op := &Operation{
		Effects: []Effect{
			{Key: "/api/hotels/1/batches", Transform: "list.adjust"},
			{Key: "/api/batches/7", Transform: "object.adjust"},
			{Key: "/api/hotels/1/batches", Transform: "list.merge"},
		},
		CacheKeys: []string{"/api/batches/7", "/api/hotels/1/stock"},
	}

	assert.Equal(t, []string{"/api/hotels/1/batches", "/api/batches/7", "/api/hotels/1/stock"}, op.Keys())
}

func TestOperation_Clone(t *testing.T) {
	lastError := "timeout"
	op := &Operation{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      OperationTypeCollect,
		Payload:   json.RawMessage(`{"quantity":5}`),
		Effects:   []Effect{{Key: "k", Transform: "list.adjust", Args: json.RawMessage(`{"delta":-5}`)}},
		CacheKeys: []string{"a"},
		LastError: &lastError,
	}

	clone := op.Clone()
	clone.Payload[0] = '['
	clone.Effects[0].Args[0] = '['
	clone.CacheKeys[0] = "b"
	*clone.LastError = "changed"

	assert.Equal(t, `{"quantity":5}`, string(op.Payload))
	assert.Equal(t, `{"delta":-5}`, string(op.Effects[0].Args))
	assert.Equal(t, "a", op.CacheKeys[0])
	assert.Equal(t, "timeout", *op.LastError)
	assert.Equal(t, op.ID, clone.ID)
}

func TestOperation_PatchApply(t *testing.T) {
	cause := "boom"
	op := &Operation{Status: StatusPending}
	op.Apply(StatePatch{Attempts: 2, Status: StatusFailed, LastError: &cause})

	assert.Equal(t, 2, op.Attempts)
	assert.Equal(t, StatusFailed, op.Status)
	assert.Equal(t, StatePatch{Attempts: 2, Status: StatusFailed, LastError: &cause}, op.Patch())
}
