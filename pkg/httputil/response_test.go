package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	t.Run("writes JSON with correct content type", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSON(rec, http.StatusOK, map[string]string{"foo": "bar"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var result map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "bar", result["foo"])
	})

	t.Run("handles nil data", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()

		WriteJSON(rec, http.StatusAccepted, nil)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "invalid_input", "name is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_input", body.Error)
	assert.Equal(t, "name is required", body.Message)
	assert.NotContains(t, rec.Body.String(), "details")
}

func TestWriteErrorWithDetails(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteErrorWithDetails(rec, http.StatusPaymentRequired, "plan_limit", "upgrade", map[string]int{"limit": 3})

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.JSONEq(t, `{"error":"plan_limit","message":"upgrade","details":{"limit":3}}`, rec.Body.String())
}

func TestWriteProblem(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteProblem(rec, http.StatusUnprocessableEntity, map[string]any{"title": "Validation Failed", "status": 422})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"title":"Validation Failed","status":422}`, rec.Body.String())
}

func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(http.ResponseWriter)
		want  int
	}{
		{"created", func(w http.ResponseWriter) { WriteCreated(w, map[string]string{"id": "1"}) }, http.StatusCreated},
		{"ok", func(w http.ResponseWriter) { WriteOK(w, []string{}) }, http.StatusOK},
		{"no content", WriteNoContent, http.StatusNoContent},
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "c", "m") }, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "c", "m") }, http.StatusNotFound},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "c", "m") }, http.StatusForbidden},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "c", "m") }, http.StatusInternalServerError},
		{"too many", func(w http.ResponseWriter) { WriteTooManyRequests(w, "c", "m") }, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}
	decode := func(body string) (payload, error) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := DecodeJSON(httptest.NewRecorder(), req, &p)
		return p, err
	}

	p, err := decode(`{"name":"intake"}`)
	require.NoError(t, err)
	assert.Equal(t, "intake", p.Name)

	_, err = decode("")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = decode(`{"name":"a","extra":1}`)
	assert.ErrorContains(t, err, "unknown field")

	_, err = decode(`{"name":"a"} {"name":"b"}`)
	assert.ErrorContains(t, err, "unexpected data")

	_, err = decode(`{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`)
	assert.ErrorContains(t, err, "exceeds")
}

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	t.Run("implicit ok", func(t *testing.T) {
		t.Parallel()
		rec := NewStatusRecorder(httptest.NewRecorder())
		_, _ = rec.Write([]byte("hello"))
		assert.Equal(t, http.StatusOK, rec.Status())
		assert.EqualValues(t, 5, rec.Written())
	})

	t.Run("first status wins", func(t *testing.T) {
		t.Parallel()
		inner := httptest.NewRecorder()
		rec := NewStatusRecorder(inner)
		rec.WriteHeader(http.StatusNotFound)
		rec.WriteHeader(http.StatusOK)
		assert.Equal(t, http.StatusNotFound, rec.Status())
		assert.Equal(t, http.StatusNotFound, inner.Code)
	})

	t.Run("does not double wrap", func(t *testing.T) {
		t.Parallel()
		rec := NewStatusRecorder(httptest.NewRecorder())
		assert.Same(t, rec, NewStatusRecorder(rec))
	})
}
