package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/invsync/internal/inventory/http/dto"
	"github.com/allisson/invsync/internal/inventory/usecase"
	"github.com/allisson/invsync/internal/inventory/usecase/mocks"
	"github.com/allisson/invsync/internal/mutation"
	"github.com/allisson/invsync/internal/overlay"
	queueDomain "github.com/allisson/invsync/internal/queue/domain"
)

func setupTestHandler(t *testing.T) (*InventoryHandler, *mocks.MockInventoryUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockUseCase := &mocks.MockInventoryUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Cleanup(func() { mockUseCase.AssertExpectations(t) })

	return NewInventoryHandler(mockUseCase, logger), mockUseCase
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(body, &response))
	return response
}

func TestInventoryHandler_AddBatchHandler(t *testing.T) {
	t.Run("Success_QueuedWithGeneratedBatchID", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		operationID := uuid.Must(uuid.NewV7())

		var input usecase.AddBatchInput
		mockUseCase.On("AddBatch", mock.Anything, mock.AnythingOfType("usecase.AddBatchInput")).
			Run(func(args mock.Arguments) { input = args.Get(1).(usecase.AddBatchInput) }).
			Return(&mutation.Result{Status: mutation.StatusPending, OperationID: operationID}, nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/hotels/h1/batches", dto.AddBatchRequest{
			Product:  "towels",
			Quantity: 40,
		})
		c.Params = gin.Params{{Key: "hotelID", Value: "h1"}}

		handler.AddBatchHandler(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "h1", input.HotelID)
		_, err := uuid.Parse(input.ID)
		assert.NoError(t, err)

		var response dto.MutationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "pending", response.Status)
		assert.Equal(t, operationID.String(), response.OperationID)
		assert.Equal(t, input.ID, response.BatchID)
	})

	t.Run("Error_InvalidJSON", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/hotels/h1/batches", nil)
		c.Params = gin.Params{{Key: "hotelID", Value: "h1"}}
		c.Request.Body = io.NopCloser(bytes.NewReader([]byte("invalid json")))

		handler.AddBatchHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decode(t, w.Body.Bytes())["error"])
	})

	t.Run("Error_ValidationFailed", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/hotels/h1/batches", dto.AddBatchRequest{Product: "towels"})
		c.Params = gin.Params{{Key: "hotelID", Value: "h1"}}

		handler.AddBatchHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "validation_error", decode(t, w.Body.Bytes())["error"])
	})
}

func TestInventoryHandler_CollectHandler(t *testing.T) {
	t.Run("Success_AppliedOnline", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)
		operationID := uuid.Must(uuid.NewV7())

		mockUseCase.On("CollectBatch", mock.Anything, "7", usecase.ConsumeInput{HotelID: "h1", Quantity: 5}).
			Return(&mutation.Result{
				Status:      mutation.StatusApplied,
				OperationID: operationID,
				StatusCode:  http.StatusOK,
				Body:        json.RawMessage(`{"id":"7","quantity":5}`),
			}, nil).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/batches/7/collect", dto.CollectRequest{HotelID: "h1", Quantity: 5})
		c.Params = gin.Params{{Key: "batchID", Value: "7"}}

		handler.CollectHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decode(t, w.Body.Bytes())
		assert.Equal(t, "applied", response["status"])
		assert.Equal(t, map[string]any{"id": "7", "quantity": float64(5)}, response["result"])
	})

	t.Run("Error_StorageFailure", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("CollectBatch", mock.Anything, "7", mock.Anything).Return(nil, queueDomain.ErrStorage).Once()

		c, w := createTestContext(http.MethodPost, "/v1/batches/7/collect", dto.CollectRequest{HotelID: "h1", Quantity: 5})
		c.Params = gin.Params{{Key: "batchID", Value: "7"}}

		handler.CollectHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unavailable", decode(t, w.Body.Bytes())["error"])
	})
}

func TestInventoryHandler_WriteOffHandler(t *testing.T) {
	t.Run("Error_LocallyRejected", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("WriteOff", mock.Anything, "7", usecase.ConsumeInput{HotelID: "h1", Quantity: 50, Reason: "expired"}).
			Return(nil, overlay.ErrTransformRejected).
			Once()

		c, w := createTestContext(http.MethodPost, "/v1/batches/7/write-offs", dto.WriteOffRequest{
			HotelID:  "h1",
			Quantity: 50,
			Reason:   "expired",
		})
		c.Params = gin.Params{{Key: "batchID", Value: "7"}}

		handler.WriteOffHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "invalid_input", decode(t, w.Body.Bytes())["error"])
	})

	t.Run("Error_ServerRejected", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("WriteOff", mock.Anything, "7", mock.Anything).Return(nil, mutation.ErrRejected).Once()

		c, w := createTestContext(http.MethodPost, "/v1/batches/7/write-offs", dto.WriteOffRequest{
			HotelID:  "h1",
			Quantity: 1,
			Reason:   "expired",
		})
		c.Params = gin.Params{{Key: "batchID", Value: "7"}}

		handler.WriteOffHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestInventoryHandler_UpdateHandler(t *testing.T) {
	handler, mockUseCase := setupTestHandler(t)
	product := "bath towels"

	mockUseCase.On("UpdateBatch", mock.Anything, "7", usecase.UpdateBatchInput{HotelID: "h1", Product: &product}).
		Return(&mutation.Result{Status: mutation.StatusPending, OperationID: uuid.Must(uuid.NewV7())}, nil).
		Once()

	c, w := createTestContext(http.MethodPatch, "/v1/batches/7", dto.UpdateBatchRequest{HotelID: "h1", Product: &product})
	c.Params = gin.Params{{Key: "batchID", Value: "7"}}

	handler.UpdateHandler(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestInventoryHandler_DeleteHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("DeleteBatch", mock.Anything, "7", "h1").
			Return(&mutation.Result{Status: mutation.StatusPending, OperationID: uuid.Must(uuid.NewV7())}, nil).
			Once()

		c, w := createTestContext(http.MethodDelete, "/v1/batches/7?hotel_id=h1", nil)
		c.Params = gin.Params{{Key: "batchID", Value: "7"}}

		handler.DeleteHandler(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("Error_MissingHotel", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodDelete, "/v1/batches/7", nil)
		c.Params = gin.Params{{Key: "batchID", Value: "7"}}

		handler.DeleteHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
