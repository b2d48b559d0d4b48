// Package apperr defines the error taxonomy shared by the claim workflow.
// Callers wrap these sentinels with fmt.Errorf("%w: ...") and classify them
// with errors.Is at the transport edge.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned when required fields are missing or malformed
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when a transition is attempted from a state that does not permit it
	ErrInvalidState = errors.New("invalid claim state")

	// ErrNotFound is returned when a claim or user id does not resolve
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the caller identity cannot be established
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller's role or ownership does not match the transition
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the stored revision advanced since the claim was read
	ErrConflict = errors.New("revision conflict")

	// ErrUpstreamPayout is returned when the payout collaborator reports a failure
	ErrUpstreamPayout = errors.New("payout failed")
)

// FieldError describes a single invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found in one payload
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// NewValidationError creates a ValidationError with a single field problem
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add records a field problem
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field problem was recorded
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns the error only when it carries field problems
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
