// Package domain defines inventory batches as the local client addresses them: the entity key
// that orders their writes, the API endpoints that change them and the cached views they appear in.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Batch is a lot of one product held by a hotel.
type Batch struct {
	ID        uuid.UUID  `json:"id"`
	HotelID   string     `json:"hotel_id"`
	Product   string     `json:"product"`
	Quantity  int        `json:"quantity"`
	Unit      string     `json:"unit,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// EntityKey is the queue entity all writes to a batch share.
func EntityKey(batchID string) string {
	return "batch:" + batchID
}

// BatchKey is the cached view of a single batch.
func BatchKey(batchID string) string {
	return "/api/batches/" + batchID
}

// HotelBatchesKey is the cached list of a hotel's batches.
func HotelBatchesKey(hotelID string) string {
	return "/api/hotels/" + hotelID + "/batches"
}

// CreateEndpoint creates a batch under a hotel.
func CreateEndpoint(hotelID string) string {
	return HotelBatchesKey(hotelID)
}

// CollectEndpoint takes stock out of a batch for use.
func CollectEndpoint(batchID string) string {
	return BatchKey(batchID) + "/collect"
}

// WriteOffEndpoint removes spoiled or lost stock from a batch.
func WriteOffEndpoint(batchID string) string {
	return BatchKey(batchID) + "/write-offs"
}
