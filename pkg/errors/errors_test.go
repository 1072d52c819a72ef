package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	t.Run("WithoutCause", func(t *testing.T) {
		err := New(ErrCodeUserLocked, "account is locked")
		assert.Equal(t, "[USER_LOCKED] account is locked", err.Error())
	})

	t.Run("WithCause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := Wrap(cause, ErrCodeInternal, "failed to load account")
		assert.Equal(t, "[INTERNAL_ERROR] failed to load account: connection refused", err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("WrapNil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
		assert.Nil(t, Wrapf(nil, ErrCodeInternal, "ignored %d", 1))
	})
}

func TestCodeInspection(t *testing.T) {
	err := fmt.Errorf("login: %w", New(ErrCodeInvalidCredentials, "invalid email or password"))

	assert.True(t, IsCode(err, ErrCodeInvalidCredentials))
	assert.False(t, IsCode(err, ErrCodeUserLocked))
	assert.Equal(t, ErrCodeInvalidCredentials, GetCode(err))
	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("plain")))
	assert.Nil(t, GetDetails(fmt.Errorf("plain")))
}

func TestViolations(t *testing.T) {
	violations := []string{"Password must be at least 8 characters long", "Password must contain at least one digit"}
	err := fmt.Errorf("register: %w", PasswordComplexity(violations))

	require.True(t, IsCode(err, ErrCodePasswordComplexity))
	assert.Equal(t, violations, Violations(err))
	assert.Nil(t, Violations(InvalidCredentials()))
	assert.Nil(t, Violations(fmt.Errorf("plain")))
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCodeUserLocked, "locked").
		WithDetail(DetailLockedUntil, "2026-01-01T00:00:00Z").
		WithDetails(map[string]interface{}{"attempts": 5})

	assert.Equal(t, "2026-01-01T00:00:00Z", err.Details[DetailLockedUntil])
	assert.Equal(t, 5, err.Details["attempts"])
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodePasswordComplexity, http.StatusBadRequest},
		{ErrCodePasswordConfirmationMismatch, http.StatusBadRequest},
		{ErrCodeCurrentPasswordIncorrect, http.StatusBadRequest},
		{ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeTokenTypeMismatch, http.StatusUnauthorized},
		{ErrCodeUserDisabled, http.StatusForbidden},
		{ErrCodeUserNotFound, http.StatusNotFound},
		{ErrCodeUserAlreadyExists, http.StatusConflict},
		{ErrCodeUserLocked, http.StatusLocked},
		{ErrCodeTooManyAttempts, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorCodeToHTTPStatus(tt.code))
			assert.Equal(t, tt.want, New(tt.code, "x").HTTPStatusCode())
		})
	}
}

func TestTooManyAttempts(t *testing.T) {
	err := TooManyAttempts(3 * time.Minute)
	assert.True(t, IsCode(err, ErrCodeTooManyAttempts))
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatusCode())
	assert.Equal(t, 3*time.Minute, GetDetails(err)[DetailRetryAfter])
}
