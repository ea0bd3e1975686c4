package apperrors

import "fmt"

// AppError represents a custom application error
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeTokenRevoked       = "TOKEN_REVOKED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeRefreshFailed      = "REFRESH_FAILED"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeRequestFailed      = "REQUEST_FAILED"
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
)

// NewAppError creates a new application error
func NewAppError(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Core error taxonomy. These are sentinels: wrap them with %w and test with
// errors.Is so call sites never string-match.
var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	// Always fatal to the current session, never retried.
	ErrInvalidToken = NewAppError(ErrCodeInvalidToken, "Invalid token", 401)

	// ErrExpired means the token is well-formed but past its expiry.
	// The client reacts with a refresh attempt, not an immediate failure.
	ErrExpired = NewAppError(ErrCodeTokenExpired, "Token expired", 401)

	// ErrRateLimited means too many recent failed login attempts.
	// Surfaced to the caller verbatim, no retry.
	ErrRateLimited = NewAppError(ErrCodeRateLimited, "Too many login attempts", 429)

	// ErrRefreshFailed means the refresh exchange failed or returned an
	// invalid token. The session is terminated, not merely stale.
	ErrRefreshFailed = NewAppError(ErrCodeRefreshFailed, "Session refresh failed", 401)

	// ErrUnauthenticated means no token is present, or a retry after
	// refresh was still rejected. Terminal; the caller must log in again.
	ErrUnauthenticated = NewAppError(ErrCodeUnauthenticated, "Not authenticated", 401)

	// ErrRequestFailed is a transport-level failure. Eligible for bounded
	// backoff retry by the caller, never by the interceptor itself.
	ErrRequestFailed = NewAppError(ErrCodeRequestFailed, "Request failed", 502)

	ErrInvalidCredentials = NewAppError(ErrCodeInvalidCredentials, "Invalid email or password", 401)
	ErrTokenRevoked       = NewAppError(ErrCodeTokenRevoked, "Token revoked", 401)
	ErrMissingFields      = NewAppError(ErrCodeMissingFields, "Required fields are missing", 400)
	ErrInvalidEmail       = NewAppError(ErrCodeInvalidEmail, "Email format is invalid", 400)
	ErrWeakPassword       = NewAppError(ErrCodeWeakPassword, "Password is too weak", 400)
)
