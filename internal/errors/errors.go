package errors

import (
	"fmt"
)

// CrawlError is the structured error type for fieldcrawl.
// It provides rich context for error handling, logging, and user presentation.
type CrawlError struct {
	// Code is the unique error code (e.g., "ERR_502_FIELD_ADD_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CrawlError.
func (e *CrawlError) Is(target error) bool {
	if t, ok := target.(*CrawlError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CrawlError) WithDetail(key, value string) *CrawlError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *CrawlError) WithSuggestion(suggestion string) *CrawlError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CrawlError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *CrawlError {
	return &CrawlError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a CrawlError from an existing error.
// The error's message becomes the CrawlError message.
func Wrap(code string, err error) *CrawlError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CrawlError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *CrawlError {
	return New(ErrCodeFileNotFound, message, cause)
}

// IndexError creates an index storage error.
func IndexError(message string, cause error) *CrawlError {
	return New(ErrCodeIndexWrite, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *CrawlError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CrawlError {
	return New(ErrCodeInternal, message, cause)
}

// Cancelled creates the error returned when a build stops because its
// context was cancelled. The context error stays reachable via errors.Is.
func Cancelled(itemID string, cause error) *CrawlError {
	return New(ErrCodeBuildCancelled, fmt.Sprintf("build cancelled for item %s", itemID), cause).
		WithDetail("item_id", itemID)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CrawlError); ok {
		return ce.Severity == SeverityFatal
	}
	if _, ok := err.(*AggregateFieldError); ok {
		return true
	}
	return false
}

// GetCode extracts the error code from a CrawlError, FieldAddError or
// AggregateFieldError. Returns empty string for any other error.
func GetCode(err error) string {
	switch e := err.(type) {
	case *CrawlError:
		return e.Code
	case *FieldAddError:
		return ErrCodeFieldAdd
	case *AggregateFieldError:
		return ErrCodeFieldAggregate
	}
	return ""
}

// GetCategory extracts the category from a CrawlError.
// Returns empty string if not a CrawlError.
func GetCategory(err error) Category {
	if ce, ok := err.(*CrawlError); ok {
		return ce.Category
	}
	return ""
}
