// Package http provides HTTP handlers for inventory writes. Every write answers 200 when the
// inventory API applied it and 202 when it was queued for replay.
package http

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/invsync/internal/httputil"
	"github.com/allisson/invsync/internal/inventory/http/dto"
	inventoryUseCase "github.com/allisson/invsync/internal/inventory/usecase"
	"github.com/allisson/invsync/internal/mutation"
	customValidation "github.com/allisson/invsync/internal/validation"
)

// InventoryHandler handles HTTP requests for inventory writes.
type InventoryHandler struct {
	inventoryUseCase inventoryUseCase.InventoryUseCase
	logger           *slog.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(useCase inventoryUseCase.InventoryUseCase, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventoryUseCase: useCase,
		logger:           logger,
	}
}

// AddBatchHandler creates a batch.
// POST /v1/hotels/:hotelID/batches
func (h *InventoryHandler) AddBatchHandler(c *gin.Context) {
	hotelID := c.Param("hotelID")
	if hotelID == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("hotel id cannot be empty"), h.logger)
		return
	}

	var req dto.AddBatchRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}
	// The batch ID is fixed here so the caller can reference the batch before it syncs.
	if req.ID == "" {
		req.ID = uuid.Must(uuid.NewV7()).String()
	}

	result, err := h.inventoryUseCase.AddBatch(c.Request.Context(), req.ToInput(hotelID))
	h.respond(c, result, err, req.ID)
}

// CollectHandler takes stock out of a batch.
// POST /v1/batches/:batchID/collect
func (h *InventoryHandler) CollectHandler(c *gin.Context) {
	batchID, ok := h.batchID(c)
	if !ok {
		return
	}

	var req dto.CollectRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}

	result, err := h.inventoryUseCase.CollectBatch(c.Request.Context(), batchID, req.ToInput())
	h.respond(c, result, err, batchID)
}

// WriteOffHandler removes spoiled or lost stock from a batch.
// POST /v1/batches/:batchID/write-offs
func (h *InventoryHandler) WriteOffHandler(c *gin.Context) {
	batchID, ok := h.batchID(c)
	if !ok {
		return
	}

	var req dto.WriteOffRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}

	result, err := h.inventoryUseCase.WriteOff(c.Request.Context(), batchID, req.ToInput())
	h.respond(c, result, err, batchID)
}

// UpdateHandler changes descriptive fields of a batch.
// PATCH /v1/batches/:batchID
func (h *InventoryHandler) UpdateHandler(c *gin.Context) {
	batchID, ok := h.batchID(c)
	if !ok {
		return
	}

	var req dto.UpdateBatchRequest
	if !h.bind(c, &req, req.Validate) {
		return
	}

	result, err := h.inventoryUseCase.UpdateBatch(c.Request.Context(), batchID, req.ToInput())
	h.respond(c, result, err, batchID)
}

// DeleteHandler deletes a batch.
// DELETE /v1/batches/:batchID?hotel_id=...
func (h *InventoryHandler) DeleteHandler(c *gin.Context) {
	batchID, ok := h.batchID(c)
	if !ok {
		return
	}

	hotelID := c.Query("hotel_id")
	if err := validation.Validate(hotelID, validation.Required, customValidation.NoWhitespace); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(fmt.Errorf("hotel_id: %w", err)), h.logger)
		return
	}

	result, err := h.inventoryUseCase.DeleteBatch(c.Request.Context(), batchID, hotelID)
	h.respond(c, result, err, batchID)
}

func (h *InventoryHandler) batchID(c *gin.Context) (string, bool) {
	batchID := c.Param("batchID")
	if batchID == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("batch id cannot be empty"), h.logger)
		return "", false
	}
	return batchID, true
}

// bind decodes the JSON body into req and validates it.
func (h *InventoryHandler) bind(c *gin.Context, req any, validate func() error) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}
	if err := validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return false
	}
	return true
}

func (h *InventoryHandler) respond(c *gin.Context, result *mutation.Result, err error, batchID string) {
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(result.HTTPStatus(), dto.MapResultToResponse(result, batchID))
}
