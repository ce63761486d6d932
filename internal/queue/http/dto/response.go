// Package dto provides data transfer objects for the sync API.
package dto

import (
	"encoding/json"
	"time"

	"github.com/allisson/invsync/internal/cache"
	"github.com/allisson/invsync/internal/httputil"
	queueDomain "github.com/allisson/invsync/internal/queue/domain"
)

// OperationResponse represents a queued operation in API responses.
type OperationResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Entity     string          `json:"entity"`
	Method     string          `json:"method"`
	Endpoint   string          `json:"endpoint"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	LastError  *string         `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// MapOperationToResponse converts a domain operation to an API response.
func MapOperationToResponse(op *queueDomain.Operation) OperationResponse {
	return OperationResponse{
		ID:         op.ID.String(),
		Type:       string(op.Type),
		Entity:     op.Entity,
		Method:     op.Method,
		Endpoint:   op.Endpoint,
		Payload:    op.Payload,
		Status:     string(op.Status),
		Attempts:   op.Attempts,
		LastError:  op.LastError,
		EnqueuedAt: op.EnqueuedAt,
	}
}

// ListOperationsResponse represents a paginated list of operations in API responses.
type ListOperationsResponse struct {
	Data []OperationResponse `json:"data"`
}

// MapOperationsToListResponse converts a window of domain operations to a list API response.
// Out-of-range offsets yield an empty list.
func MapOperationsToListResponse(ops []*queueDomain.Operation, offset, limit int) ListOperationsResponse {
	start, end := httputil.Window(len(ops), offset, limit)

	data := make([]OperationResponse, 0, end-start)
	for _, op := range ops[start:end] {
		data = append(data, MapOperationToResponse(op))
	}
	return ListOperationsResponse{Data: data}
}

// StatusResponse summarizes the sync state shown by the UI badge.
type StatusResponse struct {
	Online       bool   `json:"online"`
	Syncing      bool   `json:"syncing"`
	State        string `json:"state"`
	Current      string `json:"current_operation_id,omitempty"`
	Pending      int    `json:"pending"`
	DeadLettered int    `json:"dead_lettered"`
}

// CacheEntryResponse is a cached view tagged with whether it reflects unconfirmed writes.
type CacheEntryResponse struct {
	Key          string          `json:"key"`
	Value        json.RawMessage `json:"value"`
	Optimistic   bool            `json:"optimistic"`
	OperationIDs []string        `json:"operation_ids,omitempty"`
}

// MapEntryToResponse converts a cache entry to an API response.
func MapEntryToResponse(key string, entry *cache.Entry) CacheEntryResponse {
	response := CacheEntryResponse{
		Key:        key,
		Value:      entry.Value,
		Optimistic: entry.Optimistic,
	}
	for _, effect := range entry.Effects {
		response.OperationIDs = append(response.OperationIDs, effect.OperationID.String())
	}
	return response
}
