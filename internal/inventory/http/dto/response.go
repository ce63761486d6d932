package dto

import (
	"encoding/json"

	"github.com/allisson/invsync/internal/mutation"
)

// MutationResponse reports how a write was handled: "applied" carries the server's answer,
// "pending" the ID of the queued operation.
type MutationResponse struct {
	Status      string          `json:"status"`
	OperationID string          `json:"operation_id"`
	BatchID     string          `json:"batch_id,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// MapResultToResponse converts a mutation result to an API response.
func MapResultToResponse(result *mutation.Result, batchID string) MutationResponse {
	response := MutationResponse{
		Status:      string(result.Status),
		OperationID: result.OperationID.String(),
		BatchID:     batchID,
	}
	if result.Status == mutation.StatusApplied && json.Valid(result.Body) {
		response.Result = result.Body
	}
	return response
}
