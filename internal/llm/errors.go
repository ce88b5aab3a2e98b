package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a structured error response from the completions API.
// Callers should prefer the predicate functions (IsAuthFailure, IsRateLimited)
// to inspect errors rather than asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	errType    string
	message    string
}

func (e *APIError) Error() string {
	if e.errType != "" {
		return fmt.Sprintf("%s: HTTP %d: [%s] %s", e.operation, e.statusCode, e.errType, e.message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, errType, message string) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		errType:    errType,
		message:    message,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Type returns the API error type string, if the server provided one.
func (e *APIError) Type() string { return e.errType }

// Message returns the human-readable error message.
func (e *APIError) Message() string { return e.message }

// IsAuthFailure reports whether err is an API error with HTTP 401 status.
func IsAuthFailure(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsRateLimited reports whether err is an API error with HTTP 429 status
// (rate limit or quota exhaustion).
func IsRateLimited(err error) bool { return HasStatusCode(err, http.StatusTooManyRequests) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}
