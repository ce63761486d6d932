package usecase

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/inventory/domain"
	"github.com/allisson/invsync/internal/mutation"
	queueDomain "github.com/allisson/invsync/internal/queue/domain"
)

type inventoryUseCase struct {
	performer Performer
}

// NewInventoryUseCase creates a new InventoryUseCase.
func NewInventoryUseCase(performer Performer) InventoryUseCase {
	return &inventoryUseCase{performer: performer}
}

func (i *inventoryUseCase) AddBatch(ctx context.Context, input AddBatchInput) (*mutation.Result, error) {
	batchID := input.ID
	if batchID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to generate batch id")
		}
		batchID = id.String()
	}

	batch := map[string]any{
		"id":       batchID,
		"hotel_id": input.HotelID,
		"product":  input.Product,
		"quantity": input.Quantity,
	}
	if input.Unit != "" {
		batch["unit"] = input.Unit
	}
	if input.ExpiresAt != nil {
		batch["expires_at"] = input.ExpiresAt.UTC()
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode batch")
	}

	return i.performer.Perform(ctx, mutation.Intent{
		Type:     queueDomain.OperationTypeCreate,
		Entity:   domain.EntityKey(batchID),
		Endpoint: domain.CreateEndpoint(input.HotelID),
		Method:   http.MethodPost,
		Payload:  payload,
		Effects: []queueDomain.Effect{
			{Key: domain.HotelBatchesKey(input.HotelID), Transform: "list.prepend", Args: payload},
		},
		CacheKeys: []string{domain.BatchKey(batchID)},
	})
}

func (i *inventoryUseCase) CollectBatch(ctx context.Context, batchID string, input ConsumeInput) (*mutation.Result, error) {
	return i.consume(ctx, queueDomain.OperationTypeCollect, domain.CollectEndpoint(batchID), batchID, input)
}

func (i *inventoryUseCase) WriteOff(ctx context.Context, batchID string, input ConsumeInput) (*mutation.Result, error) {
	return i.consume(ctx, queueDomain.OperationTypeWriteOff, domain.WriteOffEndpoint(batchID), batchID, input)
}

// consume lowers the batch quantity in both the batch view and the hotel list. The transforms
// refuse to take a quantity below zero, which rejects the write locally.
func (i *inventoryUseCase) consume(
	ctx context.Context,
	opType queueDomain.OperationType,
	endpoint, batchID string,
	input ConsumeInput,
) (*mutation.Result, error) {
	body := map[string]any{"quantity": input.Quantity}
	if input.Reason != "" {
		body["reason"] = input.Reason
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode request")
	}

	objectArgs, err := json.Marshal(map[string]any{"field": "quantity", "delta": -input.Quantity})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode effect")
	}
	listArgs, err := json.Marshal(map[string]any{"id": batchID, "field": "quantity", "delta": -input.Quantity})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode effect")
	}

	return i.performer.Perform(ctx, mutation.Intent{
		Type:     opType,
		Entity:   domain.EntityKey(batchID),
		Endpoint: endpoint,
		Method:   http.MethodPost,
		Payload:  payload,
		Effects: []queueDomain.Effect{
			{Key: domain.BatchKey(batchID), Transform: "object.adjust", Args: objectArgs},
			{Key: domain.HotelBatchesKey(input.HotelID), Transform: "list.adjust", Args: listArgs},
		},
	})
}

func (i *inventoryUseCase) UpdateBatch(ctx context.Context, batchID string, input UpdateBatchInput) (*mutation.Result, error) {
	fields := map[string]any{}
	if input.Product != nil {
		fields["product"] = *input.Product
	}
	if input.Unit != nil {
		fields["unit"] = *input.Unit
	}
	if input.ExpiresAt != nil {
		fields["expires_at"] = input.ExpiresAt.UTC()
	}
	if len(fields) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "nothing to update")
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode request")
	}
	objectArgs, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode effect")
	}
	listArgs, err := json.Marshal(map[string]any{"id": batchID, "fields": fields})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode effect")
	}

	return i.performer.Perform(ctx, mutation.Intent{
		Type:     queueDomain.OperationTypeUpdate,
		Entity:   domain.EntityKey(batchID),
		Endpoint: domain.BatchKey(batchID),
		Method:   http.MethodPatch,
		Payload:  payload,
		Effects: []queueDomain.Effect{
			{Key: domain.BatchKey(batchID), Transform: "object.merge", Args: objectArgs},
			{Key: domain.HotelBatchesKey(input.HotelID), Transform: "list.merge", Args: listArgs},
		},
	})
}

func (i *inventoryUseCase) DeleteBatch(ctx context.Context, batchID, hotelID string) (*mutation.Result, error) {
	args, err := json.Marshal(map[string]any{"id": batchID})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode effect")
	}

	return i.performer.Perform(ctx, mutation.Intent{
		Type:     queueDomain.OperationTypeDelete,
		Entity:   domain.EntityKey(batchID),
		Endpoint: domain.BatchKey(batchID),
		Method:   http.MethodDelete,
		Effects: []queueDomain.Effect{
			{Key: domain.HotelBatchesKey(hotelID), Transform: "list.remove", Args: args},
		},
		CacheKeys: []string{domain.BatchKey(batchID)},
	})
}
