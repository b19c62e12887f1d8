package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)

	documented := 0
	for _, item := range doc.Paths.Map() {
		documented += len(item.Operations())
	}
	assert.Equal(t, len(routes), documented, "routes and documented operations differ")

	for _, rt := range routes {
		item := doc.Paths.Value(rt.path)
		if !assert.NotNil(t, item, "%s is not documented", rt.path) {
			continue
		}
		op := item.GetOperation(rt.method)
		if !assert.NotNil(t, op, "%s %s is not documented", rt.method, rt.path) {
			continue
		}

		// Operations inherit the bearer requirement unless they clear it.
		public := op.Security != nil && len(*op.Security) == 0
		assert.Equal(t, !rt.auth, public, "%s %s security", rt.method, rt.path)
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	a := newTestAPI(t, Config{})
	rec := a.do(http.MethodGet, "/v1/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "3.0.3", body["openapi"])
	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/v1/rooms/{id}/join")
}
