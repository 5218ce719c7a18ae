package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., duplicate email).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"

	// ErrCodeInvalidCredentials indicates a failed email/password check.
	// The same code is returned for unknown email and wrong password so the
	// response never discloses which one failed.
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
	// ErrCodeTokenExpired indicates a signed token past its expiration.
	ErrCodeTokenExpired ErrorCode = "token_expired"
	// ErrCodeTokenInvalid indicates a token with a bad signature or structure,
	// or one verified against the wrong secret.
	ErrCodeTokenInvalid ErrorCode = "token_invalid"
	// ErrCodeShieldMismatch indicates a one-time shield that is absent or does
	// not match the stored value; callers treat it as "token not recognized".
	ErrCodeShieldMismatch ErrorCode = "shield_mismatch"
	// ErrCodeTooManyRequests indicates a request rejected while a live shield
	// is outstanding for the address.
	ErrCodeTooManyRequests ErrorCode = "too_many_requests"
	// ErrCodeSessionRegenerate indicates the old session identity could not be
	// invalidated during rotation.
	ErrCodeSessionRegenerate ErrorCode = "session_regenerate"
	// ErrCodeSessionPersist indicates the rotated session could not be saved.
	ErrCodeSessionPersist ErrorCode = "session_persist"
	// ErrCodeUpstreamTimeout indicates an external call exceeded the request
	// deadline. Retryable by the caller, never retried at this layer.
	ErrCodeUpstreamTimeout ErrorCode = "upstream_timeout"
	// ErrCodeMailDelivery indicates the outbound mail transport failed.
	ErrCodeMailDelivery ErrorCode = "mail_delivery"
	// ErrCodeProviderToken indicates the SSO provider rejected a token.
	ErrCodeProviderToken ErrorCode = "provider_token"
	// ErrCodeConfiguration indicates missing or invalid configuration, such as
	// an unset signing secret.
	ErrCodeConfiguration ErrorCode = "configuration"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates an AppError with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// InvalidCredentials creates the uniform credential-failure error.
func InvalidCredentials() *AppError {
	return New(ErrCodeInvalidCredentials, "invalid email or password")
}

// TokenExpired creates a new TokenExpired error.
func TokenExpired(message string) *AppError {
	return New(ErrCodeTokenExpired, message)
}

// TokenInvalid creates a new TokenInvalid error.
func TokenInvalid(message string) *AppError {
	return New(ErrCodeTokenInvalid, message)
}

// ShieldMismatch creates the uniform shield-failure error. The message never
// reveals whether the email exists or which check failed.
func ShieldMismatch() *AppError {
	return New(ErrCodeShieldMismatch, "token not recognized")
}

// TooManyRequests creates a new TooManyRequests error.
func TooManyRequests(message string) *AppError {
	return New(ErrCodeTooManyRequests, message)
}

// Configuration creates a new Configuration error.
func Configuration(message string) *AppError {
	return New(ErrCodeConfiguration, message)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// IsInvalidCredentials checks if an error is an InvalidCredentials error.
func IsInvalidCredentials(err error) bool {
	return isCode(err, ErrCodeInvalidCredentials)
}

// IsTokenExpired checks if an error is a TokenExpired error.
func IsTokenExpired(err error) bool {
	return isCode(err, ErrCodeTokenExpired)
}

// IsTokenInvalid checks if an error is a TokenInvalid error.
func IsTokenInvalid(err error) bool {
	return isCode(err, ErrCodeTokenInvalid)
}

// IsShieldMismatch checks if an error is a ShieldMismatch error.
func IsShieldMismatch(err error) bool {
	return isCode(err, ErrCodeShieldMismatch)
}

// IsTooManyRequests checks if an error is a TooManyRequests error.
func IsTooManyRequests(err error) bool {
	return isCode(err, ErrCodeTooManyRequests)
}

// IsSessionRegenerate checks if an error is a SessionRegenerate error.
func IsSessionRegenerate(err error) bool {
	return isCode(err, ErrCodeSessionRegenerate)
}

// IsSessionPersist checks if an error is a SessionPersist error.
func IsSessionPersist(err error) bool {
	return isCode(err, ErrCodeSessionPersist)
}

// IsUpstreamTimeout checks if an error is an UpstreamTimeout error.
func IsUpstreamTimeout(err error) bool {
	return isCode(err, ErrCodeUpstreamTimeout)
}

// IsMailDelivery checks if an error is a MailDelivery error.
func IsMailDelivery(err error) bool {
	return isCode(err, ErrCodeMailDelivery)
}

// IsProviderToken checks if an error is a ProviderToken error.
func IsProviderToken(err error) bool {
	return isCode(err, ErrCodeProviderToken)
}

// IsConfiguration checks if an error is a Configuration error.
func IsConfiguration(err error) bool {
	return isCode(err, ErrCodeConfiguration)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
