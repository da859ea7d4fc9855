package errors

import (
	"fmt"
)

// ErrorCode classifies conversation API failures for clients.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInvalidChannel indicates an unknown conversation channel.
	ErrCodeInvalidChannel ErrorCode = "INVALID_CHANNEL"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeNoActiveSession indicates a handoff was requested without a session.
	ErrCodeNoActiveSession ErrorCode = "NO_ACTIVE_SESSION"
	// ErrCodeServiceUnavailable indicates the service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeInternal indicates an unexpected server failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// APIError is a structured error for the conversation API.
type APIError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// New creates an APIError with the given code and message.
func New(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// Wrap creates an APIError carrying an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *APIError {
	return &APIError{Code: code, Message: message, Cause: cause}
}
