package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaValidator checks a JSON document against a schema supplied inline by
// the model. Validation problems are reported in the result rather than as
// Go errors; the model is expected to read the outcome and revise.
func schemaValidator(_ context.Context, args map[string]any) (any, error) {
	data := args["data"]
	rawSchema := args["schema"]

	encoded, err := json.Marshal(rawSchema)
	if err != nil {
		return map[string]any{
			"valid": false,
			"error": fmt.Sprintf("schema is not encodable: %v", err),
		}, nil
	}

	schema, err := jsonschema.CompileString("document.schema.json", string(encoded))
	if err != nil {
		return map[string]any{
			"valid": false,
			"error": fmt.Sprintf("invalid schema: %v", err),
		}, nil
	}

	if err := schema.Validate(data); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return map[string]any{
				"valid":         false,
				"errors":        flattenValidationErrors(validationErr),
				"error_message": validationErr.Error(),
			}, nil
		}
		return map[string]any{
			"valid": false,
			"error": err.Error(),
		}, nil
	}

	return map[string]any{
		"valid":  true,
		"errors": []any{},
	}, nil
}

// flattenValidationErrors collects the leaf causes of a validation failure.
// Leaves carry the actionable messages; interior nodes only restate that a
// child failed.
func flattenValidationErrors(validationErr *jsonschema.ValidationError) []map[string]any {
	if len(validationErr.Causes) == 0 {
		return []map[string]any{{
			"message":           validationErr.Message,
			"instance_location": validationErr.InstanceLocation,
			"keyword_location":  validationErr.KeywordLocation,
		}}
	}

	var flattened []map[string]any
	for _, cause := range validationErr.Causes {
		flattened = append(flattened, flattenValidationErrors(cause)...)
	}
	return flattened
}
