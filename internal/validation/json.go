package validation

import (
	"encoding/json"

	validation "github.com/jellydator/validation"
)

// JSONDocument validates that a byte slice or json.RawMessage holds well-formed JSON.
var JSONDocument = validation.By(func(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		return validation.NewError("validation_json_type", "must be a JSON document")
	}
	if len(data) == 0 {
		return nil // Let Required handle empty documents
	}
	if !json.Valid(data) {
		return validation.NewError("validation_json", "must be valid JSON")
	}
	return nil
})
