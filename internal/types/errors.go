package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for swarm engine errors.
type ErrorCode string

// Worker executor error codes
const (
	EXECUTOR_FAILED  ErrorCode = "EXECUTOR_FAILED"
	EXECUTOR_TIMEOUT ErrorCode = "EXECUTOR_TIMEOUT"
)

// Structured output error codes
const (
	VALIDATION_FAILED ErrorCode = "VALIDATION_FAILED"
)

// BestOf judge error codes
const (
	JUDGE_FAILED              ErrorCode = "JUDGE_FAILED"
	JUDGE_WINNER_OUT_OF_RANGE ErrorCode = "JUDGE_WINNER_OUT_OF_RANGE"
)

// Verification error codes
const (
	VERIFIER_UNAVAILABLE ErrorCode = "VERIFIER_UNAVAILABLE"
)

// Pipeline and configuration error codes
const (
	PIPELINE_TERMINAL ErrorCode = "PIPELINE_TERMINAL"
	CONFIG_INVALID    ErrorCode = "CONFIG_INVALID"
)

// SwarmError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for retry predicates.
type SwarmError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *SwarmError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *SwarmError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a SwarmError with the same Code.
func (e *SwarmError) Is(target error) bool {
	var swarmErr *SwarmError
	if errors.As(target, &swarmErr) {
		return e.Code == swarmErr.Code
	}
	return false
}

// NewError creates a new non-retryable SwarmError with the given code and message.
func NewError(code ErrorCode, message string) *SwarmError {
	return &SwarmError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable SwarmError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., executor timeouts).
func NewRetryableError(code ErrorCode, message string) *SwarmError {
	return &SwarmError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable SwarmError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *SwarmError {
	return &SwarmError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}
