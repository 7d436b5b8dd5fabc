package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "test error message",
	}

	assert.Equal(t, "test error message", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("validation failed")

	assert.Error(t, err)
	assert.Equal(t, "validation failed", err.Error())

	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "validation failed", validationErr.Message)
}

func TestNewFieldError(t *testing.T) {
	err := NewFieldError("n", "must be >= 0, got %d", -1)

	assert.Equal(t, "n: must be >= 0, got -1", err.Error())
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsValidationError(errors.New("plain")))
}

func TestLedgerUnavailable(t *testing.T) {
	cause := context.DeadlineExceeded
	err := LedgerUnavailable("select trades", cause)

	assert.True(t, errors.Is(err, ErrLedgerUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "select trades")
	assert.False(t, IsValidationError(err))
}
