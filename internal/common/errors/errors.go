// Package errors provides standardized error handling for the client core.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Identity-provider errors.
const (
	ErrCodeEmailInUse          ErrorCode = "EMAIL_IN_USE"
	ErrCodeWeakPassword        ErrorCode = "WEAK_PASSWORD"
	ErrCodeUnknownAccount      ErrorCode = "UNKNOWN_ACCOUNT"
	ErrCodeWrongPassword       ErrorCode = "WRONG_PASSWORD"
	ErrCodeIdentityUnreachable ErrorCode = "IDENTITY_UNREACHABLE"
	ErrCodeTokenInvalid        ErrorCode = "TOKEN_INVALID"
)

// Backend errors.
const (
	ErrCodeRoleUndetermined ErrorCode = "ROLE_UNDETERMINED"
	ErrCodeUserSyncFailed   ErrorCode = "USER_SYNC_FAILED"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeServerError      ErrorCode = "SERVER_ERROR"
	ErrCodeAuthRejected     ErrorCode = "AUTH_REJECTED"
	ErrCodeNetworkError     ErrorCode = "NETWORK_ERROR"
	ErrCodeBadResponse      ErrorCode = "BAD_RESPONSE"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewEmailInUseError creates a non-retryable duplicate-account error.
func NewEmailInUseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailInUse,
		Message:   "An account with this email already exists",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWeakPasswordError creates a non-retryable weak-credential error.
func NewWeakPasswordError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeakPassword,
		Message:   "Password does not meet the minimum requirements",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownAccountError creates a non-retryable unknown-account error.
func NewUnknownAccountError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownAccount,
		Message:   "No account exists for this email",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWrongPasswordError creates a non-retryable wrong-credential error.
func NewWrongPasswordError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWrongPassword,
		Message:   "Incorrect email or password",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIdentityUnreachableError creates a retryable identity-provider
// transport error.
func NewIdentityUnreachableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdentityUnreachable,
		Message:   "Could not reach the sign-in service",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenInvalidError creates a non-retryable credential error for expired
// or revoked tokens.
func NewTokenInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenInvalid,
		Message:   "Session credential is no longer valid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoleUndeterminedError marks a failed backend role lookup. The session
// rests at unresolved until a manual refresh; there is no automatic retry.
func NewRoleUndeterminedError(identityID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRoleUndetermined,
		Message:   "Could not determine the account role",
		Details:   fmt.Sprintf("identityId: %s, error: %s", identityID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserSyncFailedError marks a failed post-signup backend write. The
// identity account already exists at this point, so the error is logged and
// surfaced but the signup itself is not rolled back.
func NewUserSyncFailedError(identityID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserSyncFailed,
		Message:   "Account created but profile sync failed",
		Details:   fmt.Sprintf("identityId: %s, error: %s", identityID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResourceNotFoundError creates a non-retryable not-found error.
func NewResourceNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("Resource not found: %s", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewServerError creates a retryable backend 5xx error.
func NewServerError(operation string, status int, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeServerError,
		Message:   fmt.Sprintf("Backend error during %s", operation),
		Details:   fmt.Sprintf("status: %d, body: %s", status, details),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthRejectedError creates a non-retryable backend auth error.
func NewAuthRejectedError(operation, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthRejected,
		Message:   fmt.Sprintf("Backend rejected credentials during %s", operation),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNetworkError creates a retryable transport error.
func NewNetworkError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetworkError,
		Message:   fmt.Sprintf("Network failure during %s", operation),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBadResponseError creates a non-retryable deserialization error.
func NewBadResponseError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBadResponse,
		Message:   fmt.Sprintf("Malformed response during %s", operation),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable caller-input error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// CodeOf extracts the ErrorCode from err, or "" if err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCode reports whether err is a StandardError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsDegradable reports whether a notification-fetch error should degrade to
// an empty snapshot instead of propagating. Not-found and server errors are
// best-effort territory; everything else is logged and retried on the next
// tick.
func IsDegradable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeResourceNotFound, ErrCodeServerError:
		return true
	}
	return false
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// UserMessage returns the stable, user-facing message for err. Raw provider
// error codes are never shown; unknown errors collapse to a generic message.
func UserMessage(err error) string {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Message
	}
	return "Something went wrong. Please try again."
}
