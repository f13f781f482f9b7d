package errors

import (
	"fmt"
)

// SihError is the structured error type for sihmcp.
// It provides rich context for error handling, logging, and user presentation.
type SihError struct {
	// Code is the unique error code (e.g., "ERR_201_CHUNK_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SihError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SihError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SihError.
func (e *SihError) Is(target error) bool {
	if t, ok := target.(*SihError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SihError) WithDetail(key, value string) *SihError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SihError) WithSuggestion(suggestion string) *SihError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SihError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SihError {
	return &SihError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SihError from an existing error.
// The error's message becomes the SihError message.
func Wrap(code string, err error) *SihError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SihError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// TimeoutError creates a search deadline error.
// Timeout errors are retryable.
func TimeoutError(message string, cause error) *SihError {
	return New(ErrCodeSearchTimeout, message, cause)
}

// UnavailableError creates an error for an unreachable dependency
// (embedder, reranker, or index back-end).
func UnavailableError(message string, cause error) *SihError {
	return New(ErrCodeDependencyUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SihError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SihError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SihError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SihError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SihError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SihError.
// Returns empty string if not a SihError.
func GetCode(err error) string {
	if se, ok := err.(*SihError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SihError.
// Returns empty string if not a SihError.
func GetCategory(err error) Category {
	if se, ok := err.(*SihError); ok {
		return se.Category
	}
	return ""
}
