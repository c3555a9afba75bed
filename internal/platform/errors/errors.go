// Package errors provides structured error handling with context propagation and HTTP status code mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error for metrics and response formatting.
type ErrorType string

const (
	// TypeValidation indicates invalid input, including out-of-bounds grid placement (HTTP 400)
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates a missing or tenant-mismatched resource (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeOverlapConflict indicates a grid collision with another region (HTTP 409)
	TypeOverlapConflict ErrorType = "overlap_conflict"
	// TypeVersionConflict indicates a compare-and-swap mismatch (HTTP 409)
	TypeVersionConflict ErrorType = "version_conflict"
	// TypeSagaStepFailure indicates a saga step exhausted its retries (HTTP 500)
	TypeSagaStepFailure ErrorType = "saga_step_failure"
	// TypeSagaRollbackFailure indicates a compensation failed; logged, never escalated
	TypeSagaRollbackFailure ErrorType = "saga_rollback_failure"
	// TypeStore indicates a generic persistence failure (HTTP 500)
	TypeStore ErrorType = "store"
)

// Sentinels for errors.Is comparisons against a type. A structured error
// matches the sentinel of its own type regardless of message or cause.
var (
	ErrValidation          = &Error{Type: TypeValidation}
	ErrNotFound            = &Error{Type: TypeNotFound}
	ErrOverlapConflict     = &Error{Type: TypeOverlapConflict}
	ErrVersionConflict     = &Error{Type: TypeVersionConflict}
	ErrSagaStepFailure     = &Error{Type: TypeSagaStepFailure}
	ErrSagaRollbackFailure = &Error{Type: TypeSagaRollbackFailure}
	ErrStore               = &Error{Type: TypeStore}
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Type == e.Type
}

// HTTPStatus returns the appropriate HTTP status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeOverlapConflict, TypeVersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError creates a new validation error (HTTP 400).
func ValidationError(message string) *Error {
	return &Error{
		Type:    TypeValidation,
		Message: message,
		Context: make(map[string]any),
	}
}

// NotFoundError creates a new not-found error (HTTP 404).
func NotFoundError(message string) *Error {
	return &Error{
		Type:    TypeNotFound,
		Message: message,
		Context: make(map[string]any),
	}
}

// OverlapConflictError creates a grid collision error naming the occupied position (HTTP 409).
func OverlapConflictError(row, col int) *Error {
	return &Error{
		Type:    TypeOverlapConflict,
		Message: fmt.Sprintf("region overlaps existing region at row %d, col %d", row, col),
		Context: map[string]any{"grid_row": row, "grid_col": col},
	}
}

// VersionConflictError creates a compare-and-swap mismatch error (HTTP 409).
func VersionConflictError(message string) *Error {
	return &Error{
		Type:    TypeVersionConflict,
		Message: message,
		Context: make(map[string]any),
	}
}

// SagaStepFailureError records the terminal failure of a forward saga step.
func SagaStepFailureError(stepID string, cause error) *Error {
	return &Error{
		Type:    TypeSagaStepFailure,
		Message: fmt.Sprintf("saga step %q failed", stepID),
		Cause:   cause,
		Context: map[string]any{"step_id": stepID},
	}
}

// SagaRollbackFailureError records a failed compensation.
func SagaRollbackFailureError(stepID string, cause error) *Error {
	return &Error{
		Type:    TypeSagaRollbackFailure,
		Message: fmt.Sprintf("rollback of saga step %q failed", stepID),
		Cause:   cause,
		Context: map[string]any{"step_id": stepID},
	}
}

// StoreError wraps an unexpected persistence failure with the operation that caused it.
func StoreError(op string, cause error) *Error {
	return &Error{
		Type:    TypeStore,
		Message: "store operation failed: " + op,
		Cause:   cause,
		Context: map[string]any{"operation": op},
	}
}

// WithContext adds context fields to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithField is an alias for WithContext (chainable).
func (e *Error) WithField(key string, value any) *Error {
	return e.WithContext(key, value)
}

// ErrorResponse represents the JSON structure sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse converts an Error to an ErrorResponse for JSON serialization.
// The cause is deliberately left out; it is for logs only.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as a store error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return StoreError("unknown", err)
}

// TypeOf returns the error type of err, or "" when err is not structured.
func TypeOf(err error) ErrorType {
	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr.Type
	}
	return ""
}
