package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsType(t *testing.T) {
	err := NewConflictError("slot taken")
	assert.True(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(err, ErrorTypeValidation))

	wrapped := fmt.Errorf("booking failed: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeConflict))

	assert.False(t, IsType(errors.New("plain"), ErrorTypeConflict))
	assert.False(t, IsType(nil, ErrorTypeConflict))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewRateLimitedError("throttled", nil)))
	assert.True(t, Retryable(NewUnavailableError("timeout", nil)))

	assert.False(t, Retryable(NewConflictError("slot taken")))
	assert.False(t, Retryable(NewUnauthorizedError("token revoked")))
	assert.False(t, Retryable(NewNotFoundError("gone")))
	assert.False(t, Retryable(NewValidationError("bad input")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := NewConflictError("slot taken").WithDetail("conflicting_interval", "x")
	require.NotNil(t, err.Detail)
	assert.Equal(t, "x", err.Detail["conflicting_interval"])
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnavailableError("provider unreachable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UNAVAILABLE")
	assert.Contains(t, err.Error(), "connection refused")
}
