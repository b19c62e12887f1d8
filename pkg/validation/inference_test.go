package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]string{
		"550e8400-e29b-41d4-a716-446655440000": "uuid",
		"ann@example.com":                      "email",
		"10.0.0.1":                             "ipv4",
		"::1":                                  "ipv6",
		"1990-04-12":                           "date",
		"2026-01-02T15:04:05Z":                 "date-time",
		"https://example.com/x":                "uri",
		"Ann":                                  "",
		"ann@localhost":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, DetectFormat(in), in)
	}
}

func TestInferSchema(t *testing.T) {
	schema := InferSchema(
		map[string]any{
			"name":     "Ann",
			"email":    "ann@example.com",
			"age":      float64(34),
			"weight":   float64(60),
			"nickname": nil,
			"primaryContact": map[string]any{
				"phone": "555-0100",
				"email": "pc@example.com",
			},
			"allergies": []any{"pollen"},
		},
		map[string]any{
			"name":      "Bob",
			"email":     "bob@example.com",
			"age":       float64(40),
			"weight":    72.5,
			"nickname":  "Bobby",
			"extra":     true,
			"allergies": []any{},
			"primaryContact": map[string]any{
				"phone": "555-0101",
			},
		},
	)

	assert.Equal(t, draft2020, schema["$schema"])
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"age", "allergies", "email", "name", "primaryContact", "weight"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "format": "email"}, props["email"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["age"])
	assert.Equal(t, map[string]any{"type": "number"}, props["weight"])
	assert.Equal(t, map[string]any{"type": "boolean"}, props["extra"])
	assert.Equal(t, map[string]any{"type": "string"}, props["nickname"])
	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, props["allergies"])

	contact := props["primaryContact"].(map[string]any)
	assert.Equal(t, "object", contact["type"])
	assert.Equal(t, []string{"phone"}, contact["required"])

	// The inferred schema must accept the samples it came from.
	s, err := Compile(schema)
	require.NoError(t, err)
	assert.True(t, s.Validate(map[string]any{
		"name": "Cy", "email": "cy@example.com", "age": 3, "weight": 4,
		"allergies": []any{}, "primaryContact": map[string]any{"phone": "1"},
	}).Valid)
}

func TestInferSchemaMixedTypes(t *testing.T) {
	schema := InferSchema(
		map[string]any{"id": "a", "when": "2026-01-01"},
		map[string]any{"id": float64(1), "when": "tomorrow"},
	)
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{}, props["id"])
	assert.Equal(t, map[string]any{"type": "string"}, props["when"])
}

func TestInferSchemaJSONNumbers(t *testing.T) {
	schema := InferSchema(
		map[string]any{"count": json.Number("3"), "ratio": json.Number("0.5")},
		map[string]any{"count": json.Number("7"), "ratio": json.Number("2")},
	)
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "integer"}, props["count"])
	assert.Equal(t, map[string]any{"type": "number"}, props["ratio"])
}
