package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for threatviz errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Identifier error codes
const (
	INVALID_FORMAT ErrorCode = "INVALID_FORMAT"
)

// Retrieval index error codes
const (
	NO_DOCUMENTS          ErrorCode = "NO_DOCUMENTS"
	INGEST_FAILED         ErrorCode = "INGEST_FAILED"
	INVALID_CHUNK_OPTIONS ErrorCode = "INVALID_CHUNK_OPTIONS"
	EMBEDDING_FAILED      ErrorCode = "EMBEDDING_FAILED"
	INDEX_CORRUPT         ErrorCode = "INDEX_CORRUPT"
	INDEX_NOT_FOUND       ErrorCode = "INDEX_NOT_FOUND"
	INDEX_WRITE_FAILED    ErrorCode = "INDEX_WRITE_FAILED"
)

// Registry error codes
const (
	FETCH_FAILED ErrorCode = "FETCH_FAILED"
)

// Language-model gateway error codes
const (
	PROVIDER_UNAVAILABLE ErrorCode = "PROVIDER_UNAVAILABLE"
	UPSTREAM_ERROR       ErrorCode = "UPSTREAM_ERROR"
	UNSUPPORTED_PROVIDER ErrorCode = "UNSUPPORTED_PROVIDER"
)

// Report error codes
const (
	MALFORMED_REPORT ErrorCode = "MALFORMED_REPORT"
)

// Error represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// NewError creates a new non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable Error with the given code and message.
// Nothing in threatviz retries automatically; the flag is a hint for callers.
func NewRetryableError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable Error that wraps an existing error.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether the first *Error in err's chain is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
