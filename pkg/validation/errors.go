package validation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode constants for machine-readable error identification
const (
	ErrCodeSchema      = "schema"
	ErrCodeInvalidJSON = "invalid_json"
)

// FieldError represents a validation error for a single field.
type FieldError struct {
	// Field is the dotted path of the value that failed; empty for the root
	Field string `json:"field"`

	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`
}

// Error implements the error interface
func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Result contains the outcome of validation.
type Result struct {
	Valid  bool          `json:"valid"`
	Errors []*FieldError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (r *Result) AddError(err *FieldError) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}

// HasErrors returns true if there are any validation errors
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Merge combines another result into this one
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	if !other.Valid {
		r.Valid = false
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// Error summarises all field errors on one line.
func (r *Result) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrorResponse is the HTTP response body for validation failures.
// It follows RFC 7807 Problem Details format.
type ErrorResponse struct {
	Type   string        `json:"type"`
	Title  string        `json:"title"`
	Status int           `json:"status"`
	Detail string        `json:"detail,omitempty"`
	Errors []*FieldError `json:"errors"`
}

// NewErrorResponse creates an ErrorResponse from a Result
func NewErrorResponse(result *Result, status int) *ErrorResponse {
	resp := &ErrorResponse{
		Type:   "about:blank",
		Title:  "Validation Failed",
		Status: status,
		Errors: result.Errors,
	}
	switch n := len(result.Errors); n {
	case 0:
	case 1:
		resp.Detail = result.Errors[0].Error()
	default:
		resp.Detail = fmt.Sprintf("%d validation errors", n)
	}
	return resp
}

// WriteResponse writes the error response as application/problem+json.
func (e *ErrorResponse) WriteResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}
