package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackend indicates that the systematic-review backend answered with a non-2xx status.
	ErrBackend = errors.New("backend error")

	// ErrNetwork indicates that no response was received from the backend.
	ErrNetwork = errors.New("network error")

	// ErrSchema indicates that a backend payload did not match the expected shape.
	ErrSchema = errors.New("schema mismatch")

	// ErrStaleResponse indicates that a response arrived after the active review
	// changed and was discarded without being applied.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrQueueEmpty indicates a screening decision was requested with no pending study.
	ErrQueueEmpty = errors.New("no pending study to screen")

	// ErrNoActiveReview indicates an operation that needs an active review was called without one.
	ErrNoActiveReview = errors.New("no active review")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// BackendError is a non-2xx answer from the systematic-review backend.
type BackendError struct {
	Operation  string
	StatusCode int
	// Detail is the server-provided "detail" field, empty when absent.
	Detail string
}

// Error implements the error interface. The server detail is preferred;
// otherwise a generic status message is returned.
func (e *BackendError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("API error: %d", e.StatusCode)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *BackendError) Unwrap() error {
	return ErrBackend
}

// IsNotFound reports whether the backend answered 404.
func (e *BackendError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NetworkError is a transport failure where no response was received.
type NetworkError struct {
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Operation, e.Cause)
}

// Unwrap exposes both the sentinel and the transport cause.
func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetwork, e.Cause}
}

// SchemaError reports a backend payload that failed boundary validation.
type SchemaError struct {
	Entity  string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema error: %s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("schema error: %s.%s: %s", e.Entity, e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewBackendError creates a new BackendError.
func NewBackendError(operation string, statusCode int, detail string) *BackendError {
	return &BackendError{
		Operation:  operation,
		StatusCode: statusCode,
		Detail:     detail,
	}
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(operation string, cause error) *NetworkError {
	return &NetworkError{
		Operation: operation,
		Cause:     cause,
	}
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(entity, field, message string) *SchemaError {
	return &SchemaError{
		Entity:  entity,
		Field:   field,
		Message: message,
	}
}
