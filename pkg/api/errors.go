package api

import (
	"errors"
	"net/http"

	"github.com/oneform/formroom/pkg/audit"
	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/httputil"
	"github.com/oneform/formroom/pkg/metrics"
	"github.com/oneform/formroom/pkg/rooms"
	"github.com/oneform/formroom/pkg/template"
	"github.com/oneform/formroom/pkg/validation"
)

// Messages returned for errors whose text may leak internals.
const (
	ErrMsgInternalError = "An internal error occurred"
	ErrMsgInvalidJSON   = "Invalid JSON in request body"
)

// writeServiceError maps a domain error to a status code and body. Errors
// that match no domain sentinel are logged and reported as 500 without
// their text.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	var schemaErr *rooms.SchemaError
	var syntaxErr *template.SyntaxError

	switch {
	case errors.As(err, &schemaErr):
		metrics.RecordDomainError("schema")
		result := &validation.Result{Valid: false, Errors: schemaErr.Errors}
		resp := validation.NewErrorResponse(result, http.StatusUnprocessableEntity)
		resp.Title = "Form does not satisfy the room schema"
		httputil.WriteProblem(w, resp.Status, resp)

	case errors.Is(err, forms.ErrNotFound), errors.Is(err, rooms.ErrNotFound), errors.Is(err, rooms.ErrAccessNotFound):
		metrics.RecordDomainError("not_found")
		httputil.WriteNotFound(w, "not_found", err.Error())

	case errors.Is(err, rooms.ErrWindowClosed):
		metrics.RecordDomainError("window_closed")
		httputil.WriteForbidden(w, "window_closed", err.Error())

	case errors.Is(err, forms.ErrForbidden), errors.Is(err, rooms.ErrForbidden):
		metrics.RecordDomainError("forbidden")
		httputil.WriteForbidden(w, "forbidden", err.Error())

	case errors.Is(err, rooms.ErrPlanLimit):
		metrics.RecordDomainError("plan_limit")
		httputil.WriteError(w, http.StatusPaymentRequired, "plan_limit", err.Error())

	case errors.As(err, &syntaxErr),
		errors.Is(err, forms.ErrInvalidForm),
		errors.Is(err, rooms.ErrInvalidRoom),
		errors.Is(err, rooms.ErrInvalidWindow),
		errors.Is(err, rooms.ErrNoTemplate):
		metrics.RecordDomainError("invalid")
		httputil.WriteBadRequest(w, "invalid_request", err.Error())

	default:
		s.log.Error("operation failed",
			"operation", operation,
			"error", err,
			"trace_id", audit.TraceID(r.Context()),
		)
		httputil.WriteInternalError(w, "internal_error", ErrMsgInternalError)
	}
}

// writeDecodeError reports a malformed request body.
func writeDecodeError(w http.ResponseWriter, err error) {
	metrics.RecordDomainError("invalid")
	msg := ErrMsgInvalidJSON
	if err != nil {
		msg += ": " + err.Error()
	}
	httputil.WriteBadRequest(w, "invalid_json", msg)
}
