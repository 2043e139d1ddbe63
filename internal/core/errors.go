package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatTimeout    ErrorCategory = "timeout"    // Generator call timed out
	ErrCatNetwork    ErrorCategory = "network"    // Connection failure
	ErrCatMalformed  ErrorCategory = "malformed"  // Unparseable generator output
	ErrCatEmpty      ErrorCategory = "empty"      // Empty generator response
	ErrCatValidation ErrorCategory = "validation" // Parsed but failed the contract
	ErrCatConfig     ErrorCategory = "config"     // Bad or missing configuration
	ErrCatState      ErrorCategory = "state"      // Corrupt or missing persisted state
	ErrCatInput      ErrorCategory = "input"      // Unreadable dataset input
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError is a structured error carrying a retry classification.
// Retryable errors are transient (network, timeout, malformed output);
// everything else is fatal and propagates without retry.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on category and code so sentinel comparisons work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// ErrTimeout creates a transient timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrConnection creates a transient connection error.
func ErrConnection(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "CONNECTION_FAILED",
		Message:   message,
		Retryable: true,
	}
}

// ErrEmptyResponse creates a transient empty-response error.
func ErrEmptyResponse(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatEmpty,
		Code:      "EMPTY_RESPONSE",
		Message:   message,
		Retryable: true,
	}
}

// ErrMalformed creates a transient malformed-output error. Malformed text is
// retryable because a fresh generation usually parses.
func ErrMalformed(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatMalformed,
		Code:      "MALFORMED_OUTPUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrValidationFailed creates an error for values that parse but fail the
// caller-supplied contract. Not retryable by the backoff controller; the
// reformat loop owns this case.
func ErrValidationFailed(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      "VALIDATION_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrConfig creates a fatal configuration error.
func ErrConfig(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatConfig,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrState creates a fatal state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrInput creates a fatal input error.
func ErrInput(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatInput,
		Code:      "UNREADABLE_INPUT",
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable reports whether an error is transient.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category, defaulting to internal.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// Predefined error codes.
const (
	CodeStageNotFound    = "STAGE_NOT_FOUND"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	CodeStateCorrupted   = "STATE_CORRUPTED"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeMissingEndpoint  = "MISSING_ENDPOINT"
)
