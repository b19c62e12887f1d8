package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "room-schema.json"

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	compiled *jsonschema.Schema
	raw      json.RawMessage
}

// Compile compiles a schema given as decoded JSON (a map), raw JSON bytes,
// a json.RawMessage or a string.
func Compile(schema any) (*Schema, error) {
	raw, err := schemaBytes(schema)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{compiled: compiled, raw: raw}, nil
}

func schemaBytes(schema any) ([]byte, error) {
	switch s := schema.(type) {
	case nil:
		return nil, errors.New("schema is empty")
	case json.RawMessage:
		return s, nil
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	default:
		// Convert to JSON to ensure consistent types
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema: %w", err)
		}
		return b, nil
	}
}

// Raw returns the schema JSON.
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// Validate checks a record against the schema.
func (s *Schema) Validate(record any) *Result {
	result := &Result{Valid: true}

	// Round-trip through JSON so Go numeric and slice types match the
	// JSON model the validator expects.
	b, err := json.Marshal(record)
	if err != nil {
		result.AddError(&FieldError{Code: ErrCodeInvalidJSON, Message: err.Error()})
		return result
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		result.AddError(&FieldError{Code: ErrCodeInvalidJSON, Message: err.Error()})
		return result
	}

	if err := s.compiled.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			parseSchemaErrors(verr, result)
		} else {
			result.AddError(&FieldError{Code: ErrCodeSchema, Message: err.Error()})
		}
	}
	return result
}

// parseSchemaErrors extracts the leaf errors of a validation failure.
func parseSchemaErrors(err *jsonschema.ValidationError, result *Result) {
	if len(err.Causes) == 0 {
		result.AddError(&FieldError{
			Field:   extractFieldFromPath(err.InstanceLocation),
			Code:    ErrCodeSchema,
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		parseSchemaErrors(cause, result)
	}
}

// extractFieldFromPath converts a JSON Pointer to dot notation.
func extractFieldFromPath(path string) string {
	if path == "" || path == "/" {
		return ""
	}
	path = strings.TrimPrefix(path, "/")
	path = strings.ReplaceAll(path, "/", ".")
	path = strings.ReplaceAll(path, "~1", "/")
	return strings.ReplaceAll(path, "~0", "~")
}
