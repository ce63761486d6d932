package usecase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/inventory/usecase"
	"github.com/allisson/invsync/internal/inventory/usecase/mocks"
	"github.com/allisson/invsync/internal/mutation"
	"github.com/allisson/invsync/internal/overlay"
	queueDomain "github.com/allisson/invsync/internal/queue/domain"
)

// capture records the intent passed to Perform and answers with a pending result.
func capture(performer *mocks.MockPerformer, intent *mutation.Intent) *mutation.Result {
	result := &mutation.Result{Status: mutation.StatusPending, OperationID: uuid.Must(uuid.NewV7())}
	performer.On("Perform", mock.Anything, mock.AnythingOfType("mutation.Intent")).
		Run(func(args mock.Arguments) { *intent = args.Get(1).(mutation.Intent) }).
		Return(result, nil).
		Once()
	return result
}

// runEffect applies one declared effect to view with the built-in transforms.
func runEffect(t *testing.T, effect queueDomain.Effect, view string) string {
	t.Helper()
	out, err := overlay.NewRegistry().Run(effect.Transform, json.RawMessage(view), effect.Args)
	require.NoError(t, err)
	return string(out)
}

func TestInventoryUseCase_AddBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_GeneratesBatchID", func(t *testing.T) {
		performer := &mocks.MockPerformer{}
		var intent mutation.Intent
		expected := capture(performer, &intent)

		result, err := usecase.NewInventoryUseCase(performer).AddBatch(ctx, usecase.AddBatchInput{
			HotelID:  "h1",
			Product:  "towels",
			Quantity: 40,
		})
		require.NoError(t, err)
		assert.Equal(t, expected, result)

		assert.Equal(t, queueDomain.OperationTypeCreate, intent.Type)
		assert.Equal(t, "/api/hotels/h1/batches", intent.Endpoint)
		assert.Equal(t, http.MethodPost, intent.Method)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(intent.Payload, &payload))
		batchID, err := uuid.Parse(payload["id"].(string))
		require.NoError(t, err)
		assert.Equal(t, "batch:"+batchID.String(), intent.Entity)
		assert.Equal(t, []string{"/api/batches/" + batchID.String()}, intent.CacheKeys)

		require.Len(t, intent.Effects, 1)
		assert.Equal(t, "/api/hotels/h1/batches", intent.Effects[0].Key)
		view := runEffect(t, intent.Effects[0], `[{"id":"old","quantity":1}]`)
		assert.Contains(t, view, `"product":"towels"`)
		performer.AssertExpectations(t)
	})

	t.Run("Success_KeepsClientBatchID", func(t *testing.T) {
		performer := &mocks.MockPerformer{}
		var intent mutation.Intent
		capture(performer, &intent)
		expires := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

		_, err := usecase.NewInventoryUseCase(performer).AddBatch(ctx, usecase.AddBatchInput{
			ID:        "7",
			HotelID:   "h1",
			Product:   "soap",
			Quantity:  10,
			Unit:      "box",
			ExpiresAt: &expires,
		})
		require.NoError(t, err)
		assert.Equal(t, "batch:7", intent.Entity)
		assert.JSONEq(t,
			`{"id":"7","hotel_id":"h1","product":"soap","quantity":10,"unit":"box","expires_at":"2026-12-01T00:00:00Z"}`,
			string(intent.Payload),
		)
	})
}

func TestInventoryUseCase_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_CollectAdjustsBothViews", func(t *testing.T) {
		performer := &mocks.MockPerformer{}
		var intent mutation.Intent
		capture(performer, &intent)

		_, err := usecase.NewInventoryUseCase(performer).CollectBatch(ctx, "7", usecase.ConsumeInput{HotelID: "h1", Quantity: 5})
		require.NoError(t, err)

		assert.Equal(t, queueDomain.OperationTypeCollect, intent.Type)
		assert.Equal(t, "batch:7", intent.Entity)
		assert.Equal(t, "/api/batches/7/collect", intent.Endpoint)
		assert.JSONEq(t, `{"quantity":5}`, string(intent.Payload))

		require.Len(t, intent.Effects, 2)
		assert.JSONEq(t, `{"id":"7","quantity":5}`, runEffect(t, intent.Effects[0], `{"id":"7","quantity":10}`))
		assert.JSONEq(t,
			`[{"id":"7","quantity":5},{"id":"8","quantity":3}]`,
			runEffect(t, intent.Effects[1], `[{"id":"7","quantity":10},{"id":"8","quantity":3}]`),
		)
	})

	t.Run("Success_WriteOffCarriesReason", func(t *testing.T) {
		performer := &mocks.MockPerformer{}
		var intent mutation.Intent
		capture(performer, &intent)

		_, err := usecase.NewInventoryUseCase(performer).WriteOff(ctx, "7", usecase.ConsumeInput{
			HotelID:  "h1",
			Quantity: 3,
			Reason:   "damaged",
		})
		require.NoError(t, err)

		assert.Equal(t, queueDomain.OperationTypeWriteOff, intent.Type)
		assert.Equal(t, "/api/batches/7/write-offs", intent.Endpoint)
		assert.JSONEq(t, `{"quantity":3,"reason":"damaged"}`, string(intent.Payload))
	})

	t.Run("Error_PropagatesPerformFailure", func(t *testing.T) {
		performer := &mocks.MockPerformer{}
		performer.On("Perform", mock.Anything, mock.Anything).Return(nil, queueDomain.ErrStorage).Once()

		result, err := usecase.NewInventoryUseCase(performer).WriteOff(ctx, "7", usecase.ConsumeInput{HotelID: "h1", Quantity: 1})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, queueDomain.ErrStorage)
	})
}

func TestInventoryUseCase_UpdateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_MergesChangedFields", func(t *testing.T) {
		performer := &mocks.MockPerformer{}
		var intent mutation.Intent
		capture(performer, &intent)
		product := "bath towels"

		_, err := usecase.NewInventoryUseCase(performer).UpdateBatch(ctx, "7", usecase.UpdateBatchInput{
			HotelID: "h1",
			Product: &product,
		})
		require.NoError(t, err)

		assert.Equal(t, queueDomain.OperationTypeUpdate, intent.Type)
		assert.Equal(t, http.MethodPatch, intent.Method)
		assert.Equal(t, "/api/batches/7", intent.Endpoint)
		assert.JSONEq(t, `{"product":"bath towels"}`, string(intent.Payload))
		assert.JSONEq(t,
			`{"id":"7","product":"bath towels","quantity":2}`,
			runEffect(t, intent.Effects[0], `{"id":"7","product":"towels","quantity":2}`),
		)
	})

	t.Run("Error_NothingToUpdate", func(t *testing.T) {
		performer := &mocks.MockPerformer{}

		result, err := usecase.NewInventoryUseCase(performer).UpdateBatch(ctx, "7", usecase.UpdateBatchInput{HotelID: "h1"})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		performer.AssertNotCalled(t, "Perform", mock.Anything, mock.Anything)
	})
}

func TestInventoryUseCase_DeleteBatch(t *testing.T) {
	performer := &mocks.MockPerformer{}
	var intent mutation.Intent
	capture(performer, &intent)

	_, err := usecase.NewInventoryUseCase(performer).DeleteBatch(context.Background(), "7", "h1")
	require.NoError(t, err)

	assert.Equal(t, queueDomain.OperationTypeDelete, intent.Type)
	assert.Equal(t, http.MethodDelete, intent.Method)
	assert.Empty(t, intent.Payload)
	assert.Equal(t, []string{"/api/batches/7"}, intent.CacheKeys)
	assert.JSONEq(t, `[{"id":"8"}]`, runEffect(t, intent.Effects[0], `[{"id":"7"},{"id":"8"}]`))
}
