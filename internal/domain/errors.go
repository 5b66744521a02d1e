package domain

import (
	"errors"
	"fmt"
)

// Sentinel validation errors for clinical data integrity.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidSeverity      = errors.New("invalid severity")
	ErrInvalidConditionType = errors.New("invalid condition type")
	ErrInvalidOperator      = errors.New("invalid condition operator")
)

// ValidationError represents malformed or missing required input. It is
// raised before any partial work begins and always surfaces to the caller.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// DependencyError represents a required collaborator being unavailable or
// failing. It propagates, never downgrades: silently weakening a safety
// check is unacceptable.
type DependencyError struct {
	Dependency string `json:"dependency"`
	Message    string `json:"message"`
	Cause      error  `json:"-"`
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dependency '%s' failed: %s: %v", e.Dependency, e.Message, e.Cause)
	}
	return fmt.Sprintf("dependency '%s' failed: %s", e.Dependency, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *DependencyError) Unwrap() error {
	return e.Cause
}

// NewDependencyError creates a new DependencyError.
func NewDependencyError(dependency, message string, cause error) *DependencyError {
	return &DependencyError{Dependency: dependency, Message: message, Cause: cause}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDependencyError reports whether err is (or wraps) a DependencyError.
func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}
