// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/invsync/internal/errors"
)

var (
	// entityKeyRegex matches logical entity keys such as "batch:0192f0c4-...".
	entityKeyRegex = regexp.MustCompile(`^[a-z][a-z_]*:[A-Za-z0-9._-]+$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// EntityKey validates a logical entity key of the form "<kind>:<id>".
var EntityKey = validation.NewStringRuleWithError(
	func(s string) bool {
		return entityKeyRegex.MatchString(s)
	},
	validation.NewError("validation_entity_key", "must be of the form kind:id"),
)

// APIPath validates a path on the inventory API, e.g. "/api/batches/7".
var APIPath = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.HasPrefix(s, "/") && !strings.ContainsAny(s, " \t\r\n")
	},
	validation.NewError("validation_api_path", "must be an absolute path without whitespace"),
)

// UUID validates a canonical UUID string.
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// WriteMethod validates the HTTP method of a replayable write.
var WriteMethod = validation.In("POST", "PUT", "PATCH", "DELETE").
	Error("must be one of POST, PUT, PATCH or DELETE")
