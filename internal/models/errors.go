package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the pipeline stages and the HTTP layer.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrExternalService = errors.New("external service error")
	ErrStore           = errors.New("store error")
)

// ValidationError describes a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ExternalError wraps a failure of an external capability (fetch, AI, mail, storage...).
type ExternalError struct {
	Service string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalError) Unwrap() []error { return []error{ErrExternalService, e.Err} }

// NewExternalError wraps err as a failure of the named external service.
func NewExternalError(service string, err error) *ExternalError {
	return &ExternalError{Service: service, Err: err}
}

// NotFoundError returns an error wrapping ErrNotFound for the given entity and id.
func NotFoundError(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
