package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownSource indicates that a crawl named a source that does not exist.
	ErrUnknownSource = errors.New("unknown source")

	// ErrNotConfigured indicates that a source lacks the credential it needs.
	// Adapters degrade to an empty result when they see it.
	ErrNotConfigured = errors.New("source not configured")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedRecord indicates that a single record of a source response
	// could not be parsed. The rest of the page is still usable.
	ErrMalformedRecord = errors.New("malformed record")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// UnknownSourceError names the source that could not be resolved.
type UnknownSourceError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source: %s", e.Name)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *UnknownSourceError) Unwrap() error {
	return ErrUnknownSource
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewUnknownSourceError creates a new UnknownSourceError.
func NewUnknownSourceError(name string) *UnknownSourceError {
	return &UnknownSourceError{Name: name}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// IsClientError reports whether err should be reported to the caller as a
// client error rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnknownSource)
}
