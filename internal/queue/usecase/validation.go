package usecase

import (
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/invsync/internal/errors"
	"github.com/allisson/invsync/internal/queue/domain"
	customValidation "github.com/allisson/invsync/internal/validation"
)

var operationTypeRule = validation.By(func(value interface{}) error {
	opType, _ := value.(domain.OperationType)
	if !opType.Valid() {
		return validation.NewError("validation_operation_type", "must be a supported operation type")
	}
	return nil
})

// ValidateEnqueueInput applies local validation; failures wrap domain.ErrInvalidOperation.
func ValidateEnqueueInput(input EnqueueInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Type, validation.Required, operationTypeRule),
		validation.Field(&input.Entity, validation.Required, customValidation.EntityKey),
		validation.Field(&input.Endpoint, validation.Required, customValidation.APIPath),
		validation.Field(&input.Method, validation.Required, customValidation.WriteMethod),
		validation.Field(&input.Payload, customValidation.JSONDocument),
		validation.Field(&input.CacheKeys, validation.Each(validation.Required, customValidation.APIPath)),
	)
	if err != nil {
		return apperrors.Wrap(domain.ErrInvalidOperation, err.Error())
	}

	for i, effect := range input.Effects {
		err := validation.ValidateStruct(&effect,
			validation.Field(&effect.Key, validation.Required, customValidation.APIPath),
			validation.Field(&effect.Transform, validation.Required, customValidation.NotBlank),
			validation.Field(&effect.Args, customValidation.JSONDocument),
		)
		if err != nil {
			return apperrors.Wrapf(domain.ErrInvalidOperation, "effects[%d]: %s", i, err.Error())
		}
	}
	return nil
}
