// Package domain defines the operation record persisted by the offline mutation queue.
package domain

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// OperationType identifies the kind of inventory write an operation replays.
type OperationType string

const (
	OperationTypeCreate   OperationType = "CREATE"
	OperationTypeUpdate   OperationType = "UPDATE"
	OperationTypeDelete   OperationType = "DELETE"
	OperationTypeCollect  OperationType = "COLLECT"
	OperationTypeWriteOff OperationType = "WRITE_OFF"
)

// OperationTypes lists every supported operation type.
var OperationTypes = []OperationType{
	OperationTypeCreate,
	OperationTypeUpdate,
	OperationTypeDelete,
	OperationTypeCollect,
	OperationTypeWriteOff,
}

// Valid reports whether t is one of the supported operation types.
func (t OperationType) Valid() bool {
	return slices.Contains(OperationTypes, t)
}

// Status is the replay state of an operation.
type Status string

const (
	// StatusPending is waiting for its first replay attempt.
	StatusPending Status = "pending"
	// StatusInFlight has a replay call outstanding.
	StatusInFlight Status = "in_flight"
	// StatusFailed hit a retryable failure and waits for the next attempt.
	StatusFailed Status = "failed"
	// StatusDeadLettered exhausted its attempts and is excluded from replay.
	StatusDeadLettered Status = "dead_lettered"
)

// Runnable reports whether an operation in this status may be replayed.
func (s Status) Runnable() bool {
	return s == StatusPending || s == StatusFailed
}

// Effect declares an optimistic change: apply the named transform with Args to the cached view at Key.
type Effect struct {
	Key       string          `json:"key"`
	Transform string          `json:"transform"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Operation is a single intercepted write waiting to be replayed against the server.
//
// Everything except Attempts, Status and LastError is fixed at enqueue time.
type Operation struct {
	ID         uuid.UUID
	Seq        int64
	Type       OperationType
	Entity     string
	Endpoint   string
	Method     string
	Payload    json.RawMessage
	Effects    []Effect
	CacheKeys  []string
	EnqueuedAt time.Time
	Attempts   int
	Status     Status
	LastError  *string
}

// StatePatch carries the mutable fields of an operation.
type StatePatch struct {
	Attempts  int
	Status    Status
	LastError *string
}

// Patch returns the current mutable state of the operation.
func (o *Operation) Patch() StatePatch {
	return StatePatch{Attempts: o.Attempts, Status: o.Status, LastError: o.LastError}
}

// Apply copies patch into the operation.
func (o *Operation) Apply(patch StatePatch) {
	o.Attempts = patch.Attempts
	o.Status = patch.Status
	o.LastError = patch.LastError
}

// Keys returns every cache key the operation touches, effect keys first, without duplicates.
func (o *Operation) Keys() []string {
	keys := make([]string, 0, len(o.Effects)+len(o.CacheKeys))
	for _, effect := range o.Effects {
		if !slices.Contains(keys, effect.Key) {
			keys = append(keys, effect.Key)
		}
	}
	for _, key := range o.CacheKeys {
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	clone := *o
	clone.Payload = slices.Clone(o.Payload)
	clone.CacheKeys = slices.Clone(o.CacheKeys)
	clone.Effects = make([]Effect, len(o.Effects))
	for i, effect := range o.Effects {
		clone.Effects[i] = Effect{
			Key:       effect.Key,
			Transform: effect.Transform,
			Args:      slices.Clone(effect.Args),
		}
	}
	if o.LastError != nil {
		lastError := *o.LastError
		clone.LastError = &lastError
	}
	return &clone
}
