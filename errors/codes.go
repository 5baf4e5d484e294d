package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registry errors
const (
	// ErrCodeEngineNotFound indicates the requested engine is not registered.
	ErrCodeEngineNotFound ErrorCode = "ENGINE_NOT_FOUND"
	// ErrCodeEngineExists indicates an engine name is already registered.
	ErrCodeEngineExists ErrorCode = "ENGINE_EXISTS"
)

// Request/validation errors
const (
	// ErrCodeUnsupportedInput indicates the engine cannot accept the request's input shape.
	ErrCodeUnsupportedInput ErrorCode = "UNSUPPORTED_INPUT"
	// ErrCodeInvalidInput indicates the request is structurally invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Recognition errors
const (
	// ErrCodeRecognitionFailed indicates the backend reported a definitive failure.
	ErrCodeRecognitionFailed ErrorCode = "RECOGNITION_FAILED"
	// ErrCodeRecognitionTimeout indicates the wait budget was exhausted.
	ErrCodeRecognitionTimeout ErrorCode = "RECOGNITION_TIMEOUT"
	// ErrCodeSessionClosed indicates a streaming session ended before completion.
	ErrCodeSessionClosed ErrorCode = "SESSION_CLOSED"
	// ErrCodeAllEnginesFailed indicates every engine in the fallback list failed.
	ErrCodeAllEnginesFailed ErrorCode = "ALL_ENGINES_FAILED"
)

// Connection/availability errors (retryable)
const (
	// ErrCodeConnectionFailed indicates a failed connection to a backend.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeServiceUnavailable indicates the backend is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeRateLimited indicates the client is rate limited by the backend.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// retryableCodes marks error kinds that may succeed against another engine
// (or the same engine later): transient network, timeout, rate limit.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed:   true,
	ErrCodeServiceUnavailable: true,
	ErrCodeRateLimited:        true,
	ErrCodeRecognitionTimeout: true,
	ErrCodeSessionClosed:      true,
}

// validationCodes marks error kinds that are structural defects of the
// request itself. These never improve by trying another engine.
var validationCodes = map[ErrorCode]bool{
	ErrCodeUnsupportedInput: true,
	ErrCodeInvalidInput:     true,
	ErrCodeMissingField:     true,
	ErrCodeInvalidFormat:    true,
	ErrCodeEngineNotFound:   true,
	ErrCodeEngineExists:     true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// IsValidationCode returns true if the error code indicates a request-shape
// defect that must propagate immediately and never be retried.
func IsValidationCode(code ErrorCode) bool {
	return validationCodes[code]
}
