package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Entity     string `json:"entity,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// Predefined errors for common transport scenarios
var (
	ErrNotFound       = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// ToAPIError maps a disclosure error onto an HTTP error response. Validation
// failures are the client's data problem; ambiguity is ours.
func ToAPIError(err error) *APIError {
	var de *DisclosureError
	if !stderrors.As(err, &de) {
		return ErrInternalServer
	}

	status := http.StatusUnprocessableEntity
	if de.Type == ErrTypeAmbiguity {
		status = http.StatusInternalServerError
	}

	api := New(status, string(de.Type), de.Message)
	api.Entity = de.Entity
	return api
}
