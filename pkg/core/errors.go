package core

import (
	"fmt"
)

// Error represents a relay error that can be rendered to a client.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`

	// Status overrides the HTTP status derived from Type when non-zero.
	Status int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrConfiguration  ErrorType = "configuration_error"
	ErrProvider       ErrorType = "provider_error"
	ErrExtraction     ErrorType = "extraction_error"
	ErrAPI            ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewConfigurationError reports missing server-side configuration such as an
// absent provider API key.
func NewConfigurationError(message string) *Error {
	return &Error{
		Type:    ErrConfiguration,
		Message: message,
	}
}

// NewProviderError wraps a failed outbound call. Details carries whatever the
// provider returned, if anything.
func NewProviderError(provider string, underlying error, details any) *Error {
	if details == nil && underlying != nil {
		details = underlying.Error()
	}
	msg := provider + " request failed"
	if underlying != nil {
		msg = fmt.Sprintf("%s: %v", provider, underlying)
	}
	return &Error{
		Type:    ErrProvider,
		Message: msg,
		Details: details,
		cause:   underlying,
	}
}

// NewAPIError creates a generic internal error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// WithStatus returns a copy of e with an explicit HTTP status.
func (e *Error) WithStatus(status int) *Error {
	out := *e
	out.Status = status
	return &out
}
