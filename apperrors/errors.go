// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package apperrors

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown                  Code = "UNKNOWN"
	CodeSessionNotAcceptingVotes Code = "SESSION_NOT_ACCEPTING_VOTES"
	CodeVoterIneligible          Code = "VOTER_INELIGIBLE"
	CodeMalformedBallot          Code = "MALFORMED_BALLOT"
	CodeDuplicateVote            Code = "DUPLICATE_VOTE"
	CodeSessionNotFound          Code = "SESSION_NOT_FOUND"
	CodeResultNotYetComputed     Code = "RESULT_NOT_YET_COMPUTED"
	CodeInvalidTransition        Code = "INVALID_TRANSITION"
	CodeMisconfiguredSession     Code = "MISCONFIGURED_SESSION"
	CodeInvalidArgument          Code = "INVALID_ARGUMENT"
	CodeUnauthorized             Code = "UNAUTHORIZED"
	CodeStorageUnavailable       Code = "STORAGE_UNAVAILABLE"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrSessionNotAcceptingVotes = New(CodeSessionNotAcceptingVotes, "session is not accepting votes")
	ErrVoterIneligible          = New(CodeVoterIneligible, "voter is not eligible for this session")
	ErrMalformedBallot          = New(CodeMalformedBallot, "ballot does not match session format")
	ErrDuplicateVote            = New(CodeDuplicateVote, "voter has already voted in this session")
	ErrSessionNotFound          = New(CodeSessionNotFound, "session not found")
	ErrResultNotYetComputed     = New(CodeResultNotYetComputed, "result has not been computed")
	ErrInvalidTransition        = New(CodeInvalidTransition, "invalid session transition")
	ErrMisconfiguredSession     = New(CodeMisconfiguredSession, "session is misconfigured")
	ErrInvalidArgument          = New(CodeInvalidArgument, "invalid argument")
	ErrUnauthorized             = New(CodeUnauthorized, "unauthorized")
	ErrStorageUnavailable       = New(CodeStorageUnavailable, "storage unavailable")
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message, safe to return to callers
	Metadata map[string]string // Additional context (field names, ids)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Storage wraps a persistence failure. Errors that already carry a code are
// returned unchanged so business-rule errors raised inside a transaction keep
// their kind.
func Storage(message string, cause error) error {
	if cause == nil {
		return nil
	}
	var appErr *Error
	if errors.As(cause, &appErr) {
		return cause
	}
	return Wrap(CodeStorageUnavailable, message, cause)
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// Retryable reports whether a caller should retry an operation that failed
// with this code.
func (c Code) Retryable() bool {
	return c == CodeStorageUnavailable
}

// HTTPStatus maps a code to the response status used by the API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeVoterIneligible:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeMalformedBallot, CodeMisconfiguredSession, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeSessionNotAcceptingVotes, CodeDuplicateVote, CodeInvalidTransition, CodeResultNotYetComputed:
		return http.StatusConflict
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
