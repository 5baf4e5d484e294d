// Package errors provides unified error handling for asrkit.
// It implements structured error types with machine-readable codes and the
// retryable/validation classification that drives engine fallback.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried (against the same
	// engine later or a different engine now).
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Registry errors ---

// UnknownEngine creates an error for a name that is not registered.
func UnknownEngine(name string, available []string) *AppError {
	return &AppError{
		Code:      ErrCodeEngineNotFound,
		Message:   fmt.Sprintf("engine %q not found (available: %s)", name, strings.Join(available, ", ")),
		Retryable: false,
		Details:   map[string]any{"engine": name, "available": available},
	}
}

// DuplicateEngine creates an error for a name that is already registered.
func DuplicateEngine(name string) *AppError {
	return &AppError{
		Code:      ErrCodeEngineExists,
		Message:   fmt.Sprintf("engine %q is already registered", name),
		Retryable: false,
		Details:   map[string]any{"engine": name},
	}
}

// --- Request errors ---

// UnsupportedInput creates an error for a capability mismatch between a
// request and the engine it was dispatched to.
func UnsupportedInput(engine, reason string) *AppError {
	return &AppError{
		Code:      ErrCodeUnsupportedInput,
		Message:   fmt.Sprintf("engine %q cannot handle this input: %s", engine, reason),
		Retryable: false,
		Details:   map[string]any{"engine": engine},
	}
}

// InvalidInput creates an error for a structurally invalid request.
func InvalidInput(reason string) *AppError {
	return &AppError{
		Code:      ErrCodeInvalidInput,
		Message:   fmt.Sprintf("invalid request: %s", reason),
		Retryable: false,
	}
}

// Validation creates an error for validation failures.
func Validation(message string) *AppError {
	return &AppError{
		Code:      ErrCodeInvalidInput,
		Message:   message,
		Retryable: false,
	}
}

// MissingField creates an error for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code:      ErrCodeMissingField,
		Message:   fmt.Sprintf("missing required field: %s", field),
		Retryable: false,
		Details:   map[string]any{"field": field},
	}
}

// --- Recognition errors ---

// RecognitionFailed creates an error for a definitive backend failure.
func RecognitionFailed(engine, providerMessage string) *AppError {
	return &AppError{
		Code:      ErrCodeRecognitionFailed,
		Message:   fmt.Sprintf("engine %q failed: %s", engine, providerMessage),
		Retryable: false,
		Details:   map[string]any{"engine": engine, "provider_message": providerMessage},
	}
}

// RecognitionTimeout creates an error for an exhausted wait budget.
func RecognitionTimeout(engine string, elapsed time.Duration) *AppError {
	return &AppError{
		Code:      ErrCodeRecognitionTimeout,
		Message:   fmt.Sprintf("engine %q did not finish within budget (%s elapsed)", engine, elapsed),
		Retryable: true,
		Details:   map[string]any{"engine": engine, "elapsed": elapsed.String()},
	}
}

// SessionClosed creates an error for a streaming session that ended before a
// final result was delivered.
func SessionClosed(engine, reason string) *AppError {
	return &AppError{
		Code:      ErrCodeSessionClosed,
		Message:   fmt.Sprintf("engine %q session closed: %s", engine, reason),
		Retryable: true,
		Details:   map[string]any{"engine": engine},
	}
}

// --- Connection errors ---

// ConnectionFailed creates an error for a failed connection to a backend.
func ConnectionFailed(service string) *AppError {
	return &AppError{
		Code:      ErrCodeConnectionFailed,
		Message:   fmt.Sprintf("unable to connect to %s", service),
		Retryable: true,
		Details:   map[string]any{"service": service},
	}
}

// ServiceUnavailable creates an error for a temporarily unavailable backend.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code:      ErrCodeServiceUnavailable,
		Message:   fmt.Sprintf("%s is temporarily unavailable", service),
		Retryable: true,
		Details:   map[string]any{"service": service},
	}
}

// RateLimited creates an error for too many requests.
func RateLimited(service string) *AppError {
	return &AppError{
		Code:      ErrCodeRateLimited,
		Message:   fmt.Sprintf("%s rate limit exceeded", service),
		Retryable: true,
		Details:   map[string]any{"service": service},
	}
}

// Internal creates an error for an unexpected internal failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:      ErrCodeInternal,
		Message:   "an unexpected error occurred",
		Retryable: false,
		Cause:     cause,
	}
}

// --- Classification helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsRetryable reports whether an attempt against another engine could
// reasonably succeed. Unknown (non-AppError) errors are treated as
// retryable so a flaky backend does not poison the whole fallback chain.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return err != nil
}

// IsValidation reports whether the error is a request-shape defect that must
// propagate immediately without trying further engines.
func IsValidation(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return IsValidationCode(appErr.Code)
	}
	return false
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
