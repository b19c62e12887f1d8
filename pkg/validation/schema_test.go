package validation

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactSchema = `{
	"type": "object",
	"required": ["name", "email", "emergencyContacts"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"email": {"type": "string", "format": "email"},
		"age": {"type": "integer", "minimum": 0},
		"emergencyContacts": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {"name": {"type": "string"}}
			}
		}
	}
}`

func TestCompileInputs(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(contactSchema), &decoded))

	for name, in := range map[string]any{
		"string":      contactSchema,
		"bytes":       []byte(contactSchema),
		"raw message": json.RawMessage(contactSchema),
		"map":         decoded,
	} {
		t.Run(name, func(t *testing.T) {
			s, err := Compile(in)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Raw())
		})
	}

	_, err := Compile(nil)
	assert.Error(t, err)
	_, err = Compile(`{"type": 12}`)
	assert.Error(t, err)
	_, err = Compile(`{not json`)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s, err := Compile(contactSchema)
	require.NoError(t, err)

	t.Run("valid record", func(t *testing.T) {
		res := s.Validate(map[string]any{
			"name":              "Ann",
			"email":             "ann@example.com",
			"age":               34,
			"emergencyContacts": []map[string]any{{"name": "Jane"}},
		})
		assert.True(t, res.Valid, res.Error())
		assert.False(t, res.HasErrors())
	})

	t.Run("missing required", func(t *testing.T) {
		res := s.Validate(map[string]any{"name": "Ann", "email": "ann@example.com"})
		require.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, ErrCodeSchema, res.Errors[0].Code)
		assert.Contains(t, res.Errors[0].Message, "emergencyContacts")
	})

	t.Run("nested field paths", func(t *testing.T) {
		res := s.Validate(map[string]any{
			"name":              "Ann",
			"email":             "not-an-email",
			"age":               -1,
			"emergencyContacts": []any{map[string]any{"name": 5}},
		})
		require.False(t, res.Valid)

		fields := map[string]bool{}
		for _, fe := range res.Errors {
			fields[fe.Field] = true
		}
		assert.True(t, fields["email"], "errors: %s", res.Error())
		assert.True(t, fields["age"], "errors: %s", res.Error())
		assert.True(t, fields["emergencyContacts.0.name"], "errors: %s", res.Error())
	})

	t.Run("unencodable record", func(t *testing.T) {
		res := s.Validate(map[string]any{"f": func() {}})
		require.False(t, res.Valid)
		assert.Equal(t, ErrCodeInvalidJSON, res.Errors[0].Code)
	})
}

func TestExtractFieldFromPath(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"/":          "",
		"/name":      "name",
		"/a/0/b":     "a.0.b",
		"/a~1b/c~0d": "a/b.c~d",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractFieldFromPath(in), in)
	}
}

func TestResultHelpers(t *testing.T) {
	r := &Result{Valid: true}
	r.Merge(nil)
	assert.True(t, r.Valid)

	other := &Result{Valid: true}
	other.AddError(&FieldError{Field: "email", Code: ErrCodeSchema, Message: "bad"})
	other.AddError(&FieldError{Code: ErrCodeSchema, Message: "root"})
	r.Merge(other)

	assert.False(t, r.Valid)
	assert.Equal(t, "email: bad; root", r.Error())
}

func TestErrorResponse(t *testing.T) {
	res := &Result{Valid: true}
	res.AddError(&FieldError{Field: "name", Code: ErrCodeSchema, Message: "missing"})

	rec := httptest.NewRecorder()
	NewErrorResponse(res, 422).WriteResponse(rec)

	assert.Equal(t, 422, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Validation Failed", body.Title)
	assert.Equal(t, "name: missing", body.Detail)
	assert.Len(t, body.Errors, 1)

	res.AddError(&FieldError{Field: "age", Message: "negative"})
	assert.Equal(t, "2 validation errors", NewErrorResponse(res, 422).Detail)
}
