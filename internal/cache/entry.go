// Package cache provides the key-addressed view cache the optimistic overlay writes through.
package cache

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"
)

// AppliedEffect records one optimistic effect folded into a cached view.
type AppliedEffect struct {
	OperationID uuid.UUID       `json:"operation_id"`
	Transform   string          `json:"transform"`
	Args        json.RawMessage `json:"args,omitempty"`
}

// Entry is a cached view. An optimistic entry carries the confirmed view it was derived from
// and the ordered effects applied on top of it, so it can be recomputed or restored exactly.
type Entry struct {
	Value      json.RawMessage `json:"value"`
	Optimistic bool            `json:"optimistic"`
	// Base is nil when no view was cached before the first effect.
	Base    json.RawMessage `json:"base,omitempty"`
	Effects []AppliedEffect `json:"effects,omitempty"`
}

// HasOperation reports whether an effect of the given operation is applied to the entry.
func (e *Entry) HasOperation(id uuid.UUID) bool {
	return slices.ContainsFunc(e.Effects, func(effect AppliedEffect) bool {
		return effect.OperationID == id
	})
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	clone := &Entry{
		Value:      slices.Clone(e.Value),
		Optimistic: e.Optimistic,
		Base:       slices.Clone(e.Base),
		Effects:    make([]AppliedEffect, len(e.Effects)),
	}
	for i, effect := range e.Effects {
		clone.Effects[i] = AppliedEffect{
			OperationID: effect.OperationID,
			Transform:   effect.Transform,
			Args:        slices.Clone(effect.Args),
		}
	}
	return clone
}
