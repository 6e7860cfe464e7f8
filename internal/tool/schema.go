package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// emptyObject is validated when a caller sends no arguments at all.
var emptyObject = json.RawMessage(`{}`)

// compileSchema parses a tool input schema. The schema must be a JSON object.
func compileSchema(raw json.RawMessage) (*gojsonschema.Schema, error) {
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return schema, nil
}

// validateArgs checks args against schema. All violations are reported in a
// single ErrSchemaValidation error.
func validateArgs(schema *gojsonschema.Schema, args json.RawMessage) error {
	if len(args) == 0 || string(args) == "null" {
		args = emptyObject
	}
	if !json.Valid(args) {
		return fmt.Errorf("%w: arguments are not valid JSON", ErrSchemaValidation)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaValidation, strings.Join(msgs, "; "))
}
