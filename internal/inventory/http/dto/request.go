// Package dto provides data transfer objects for inventory HTTP requests and responses.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	"github.com/allisson/invsync/internal/inventory/usecase"
	customValidation "github.com/allisson/invsync/internal/validation"
)

// AddBatchRequest creates a batch. ID may be supplied by clients that already reference the
// batch in later writes.
type AddBatchRequest struct {
	ID        string     `json:"id"`
	Product   string     `json:"product"`
	Quantity  int        `json:"quantity"`
	Unit      string     `json:"unit"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Validate checks if the add batch request is valid.
func (r *AddBatchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, customValidation.UUID),
		validation.Field(&r.Product, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.Unit, validation.Length(0, 32)),
	)
}

// ToInput maps the request to the use case input.
func (r *AddBatchRequest) ToInput(hotelID string) usecase.AddBatchInput {
	return usecase.AddBatchInput{
		ID:        r.ID,
		HotelID:   hotelID,
		Product:   r.Product,
		Quantity:  r.Quantity,
		Unit:      r.Unit,
		ExpiresAt: r.ExpiresAt,
	}
}

// CollectRequest takes stock out of a batch.
type CollectRequest struct {
	HotelID  string `json:"hotel_id"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

// Validate checks if the collect request is valid.
func (r *CollectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.HotelID, validation.Required, customValidation.NoWhitespace),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.Note, validation.Length(0, 500)),
	)
}

// ToInput maps the request to the use case input.
func (r *CollectRequest) ToInput() usecase.ConsumeInput {
	return usecase.ConsumeInput{HotelID: r.HotelID, Quantity: r.Quantity, Reason: r.Note}
}

// WriteOffRequest removes spoiled or lost stock from a batch.
type WriteOffRequest struct {
	HotelID  string `json:"hotel_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// Validate checks if the write-off request is valid.
func (r *WriteOffRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.HotelID, validation.Required, customValidation.NoWhitespace),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.Reason, validation.Required, customValidation.NotBlank, validation.Length(1, 500)),
	)
}

// ToInput maps the request to the use case input.
func (r *WriteOffRequest) ToInput() usecase.ConsumeInput {
	return usecase.ConsumeInput{HotelID: r.HotelID, Quantity: r.Quantity, Reason: r.Reason}
}

// UpdateBatchRequest changes descriptive fields of a batch.
type UpdateBatchRequest struct {
	HotelID   string     `json:"hotel_id"`
	Product   *string    `json:"product"`
	Unit      *string    `json:"unit"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Validate checks if the update request is valid.
func (r *UpdateBatchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.HotelID, validation.Required, customValidation.NoWhitespace),
		validation.Field(&r.Product, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Unit, validation.Length(0, 32)),
	)
}

// ToInput maps the request to the use case input.
func (r *UpdateBatchRequest) ToInput() usecase.UpdateBatchInput {
	return usecase.UpdateBatchInput{
		HotelID:   r.HotelID,
		Product:   r.Product,
		Unit:      r.Unit,
		ExpiresAt: r.ExpiresAt,
	}
}
