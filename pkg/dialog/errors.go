package dialog

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoBaseURL is returned when the API base URL is missing.
	ErrNoBaseURL = errors.New("dialog: base URL required")

	// ErrNoModel is returned when the model name is missing.
	ErrNoModel = errors.New("dialog: model required")

	// ErrNoChoices is returned when the API responds without any
	// completion choices.
	ErrNoChoices = errors.New("dialog: no choices returned")
)

// APIError represents an error response from the chat API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the error code (if provided).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dialog: API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dialog: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}
