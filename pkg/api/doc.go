// Package api serves formroom over HTTP.
//
// Routes use Go 1.22 ServeMux method patterns and are listed in routes.go.
// Everything under /v1 except the stateless template endpoints and
// /v1/openapi.json requires a bearer token; the caller's user ID comes from
// pkg/identity. openapi.yaml describes every route and must change with the
// route table. Domain errors from pkg/forms and
// pkg/rooms are mapped to status codes in writeServiceError.
package api
