package utils

import (
	"errors"
	"fmt"
)

// ErrLedgerUnavailable marks a failed call to the ledger store (network, auth or
// service error). It is never converted into an empty result.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// ValidationError represents a rejected query parameter.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewFieldError creates a ValidationError bound to a named parameter.
//
// Parameters:
//   - field: The offending parameter name.
//   - format: The format string.
//   - args: Arguments for the format string.
func NewFieldError(field, format string, args ...interface{}) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// LedgerUnavailable wraps a store failure so that errors.Is(err, ErrLedgerUnavailable) holds
// while keeping the underlying cause inspectable.
func LedgerUnavailable(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, cause)
}
