package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Authentication errors
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeTooManyAttempts    ErrorCode = "TOO_MANY_ATTEMPTS"

	// Token errors
	ErrCodeTokenExpired        ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid        ErrorCode = "TOKEN_INVALID"
	ErrCodeTokenMalformed      ErrorCode = "TOKEN_MALFORMED"
	ErrCodeTokenTypeMismatch   ErrorCode = "TOKEN_TYPE_MISMATCH"
	ErrCodeTokenMissingSubject ErrorCode = "TOKEN_MISSING_SUBJECT"

	// Account errors
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserAlreadyExists ErrorCode = "USER_ALREADY_EXISTS"
	ErrCodeUserLocked        ErrorCode = "USER_LOCKED"
	ErrCodeUserDisabled      ErrorCode = "USER_DISABLED"

	// Password errors
	ErrCodePasswordComplexity           ErrorCode = "PASSWORD_COMPLEXITY"
	ErrCodePasswordConfirmationMismatch ErrorCode = "PASSWORD_CONFIRMATION_MISMATCH"
	ErrCodeSamePassword                 ErrorCode = "SAME_PASSWORD"
	ErrCodeCurrentPasswordIncorrect     ErrorCode = "CURRENT_PASSWORD_INCORRECT"
)

// Detail keys
const (
	DetailViolations  = "violations"
	DetailLockedUntil = "locked_until"
	DetailField       = "field"
	DetailRetryAfter  = "retry_after"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with code and formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns ErrCodeInternal if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error.
// Returns nil if the error is not a structured Error.
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// Violations returns the policy violations attached to a PASSWORD_COMPLEXITY error.
func Violations(err error) []string {
	details := GetDetails(err)
	if details == nil {
		return nil
	}
	v, _ := details[DetailViolations].([]string)
	return v
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	// 400 Bad Request
	case ErrCodeInvalidInput, ErrCodePasswordComplexity,
		ErrCodePasswordConfirmationMismatch, ErrCodeSamePassword,
		ErrCodeCurrentPasswordIncorrect:
		return http.StatusBadRequest

	// 401 Unauthorized
	case ErrCodeInvalidCredentials, ErrCodeTokenExpired, ErrCodeTokenInvalid,
		ErrCodeTokenMalformed, ErrCodeTokenTypeMismatch, ErrCodeTokenMissingSubject:
		return http.StatusUnauthorized

	// 403 Forbidden
	case ErrCodeUserDisabled:
		return http.StatusForbidden

	// 404 Not Found
	case ErrCodeUserNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case ErrCodeUserAlreadyExists:
		return http.StatusConflict

	// 423 Locked
	case ErrCodeUserLocked:
		return http.StatusLocked

	// 429 Too Many Requests
	case ErrCodeTooManyAttempts:
		return http.StatusTooManyRequests

	// 500 Internal Server Error (default)
	case ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail(DetailField, field)
}

// InvalidCredentials is returned for both unknown accounts and wrong passwords.
func InvalidCredentials() *Error {
	return New(ErrCodeInvalidCredentials, "invalid email or password")
}

// PasswordComplexity carries every violated rule of a rejected password.
func PasswordComplexity(violations []string) *Error {
	return New(ErrCodePasswordComplexity, "password does not meet requirements").
		WithDetail(DetailViolations, violations)
}

// TokenInvalid wraps any refresh failure into a single opaque code.
func TokenInvalid(err error) *Error {
	if err == nil {
		return New(ErrCodeTokenInvalid, "invalid token")
	}
	return Wrap(err, ErrCodeTokenInvalid, "invalid token")
}

// TooManyAttempts is returned when logins for an email arrive faster than
// the rate limit allows.
func TooManyAttempts(retryAfter time.Duration) *Error {
	return New(ErrCodeTooManyAttempts, "too many login attempts, try again later").
		WithDetail(DetailRetryAfter, retryAfter)
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}
