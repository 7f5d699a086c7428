package errors

import (
	"fmt"
)

// EngineError is the structured error type of the engine. It provides
// context for error handling, logging, and user presentation.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Stream, etc.).
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
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with EngineError.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *EngineError) WithSuggestion(suggestion string) *EngineError {
	e.Suggestion = suggestion
	return e
}

// New creates a new EngineError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an EngineError from an existing error.
// The error's message becomes the EngineError message.
func Wrap(code string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *EngineError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *EngineError {
	return New(ErrCodeFileNotFound, message, cause)
}

// StreamError creates a malformed-stream error. Stream errors are
// fatal: everything past the defect is untrustworthy.
func StreamError(message string, cause error) *EngineError {
	return New(ErrCodeStreamMalformed, message, cause)
}

// DataError creates a data-quality error. Data errors degrade the
// affected record and never abort a pass.
func DataError(message string, cause error) *EngineError {
	return New(ErrCodeOrphanRecord, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *EngineError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ee, ok := err.(*EngineError); ok {
		return ee.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an EngineError.
// Returns empty string if not an EngineError.
func GetCode(err error) string {
	if ee, ok := err.(*EngineError); ok {
		return ee.Code
	}
	return ""
}

// GetCategory extracts the category from an EngineError.
// Returns empty string if not an EngineError.
func GetCategory(err error) Category {
	if ee, ok := err.(*EngineError); ok {
		return ee.Category
	}
	return ""
}
