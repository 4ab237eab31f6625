// Package errors provides structured error types for pylock.
//
// This package defines error codes and types that enable:
//   - Consistent error handling between the CLI and the library packages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid package name: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
//
// Sentinel errors of individual packages (for example
// [github.com/matzehuels/pylock/pkg/resolvelib.ErrResolutionImpossible])
// stay checkable with the standard library's errors.Is once wrapped.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Resolution errors
	ErrCodeUnresolvable        Code = "UNRESOLVABLE"
	ErrCodeDependencyDiscovery Code = "DEPENDENCY_DISCOVERY"
	ErrCodeInvalidVersion      Code = "INVALID_VERSION"

	// Project and cache files
	ErrCodeCacheCorrupt Code = "CACHE_CORRUPT"
	ErrCodePipfile      Code = "PIPFILE"
	ErrCodeLockfile     Code = "LOCKFILE"

	// Collaborators
	ErrCodeNetwork  Code = "NETWORK"
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeBuild    Code = "BUILD"
	ErrCodeVCS      Code = "VCS"

	// Generic
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInternal     Code = "INTERNAL"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code     // Machine-readable error code
	Message string   // Human-readable message
	Details []string // Extra lines for the user, e.g. conflicting requirements
	Cause   error    // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails returns e with lines appended to its details.
func (e *Error) WithDetails(lines ...string) *Error {
	e.Details = append(e.Details, lines...)
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix, followed
// by the cause and one indented line per detail.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil && len(e.Details) == 0 {
		b.WriteString(": " + e.Cause.Error())
	}
	for _, d := range e.Details {
		b.WriteString("\n  " + d)
	}
	return b.String()
}
