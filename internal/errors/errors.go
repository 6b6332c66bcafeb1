package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig     = "CONFIG"
	ErrSlurm      = "SLURM"
	ErrTimeout    = "TIMEOUT"
	ErrValidation = "VALIDATION"
	ErrNotFound   = "NOT_FOUND"
	ErrIO         = "IO"
	ErrSSH        = "SSH"
	ErrExec       = "EXEC"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSlurm code.
// Context deadline errors are promoted to ErrTimeout so callers can tell
// a slow command from a failing one.
func Wrap(err error, message string) *Error {
	code := ErrSlurm
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrTimeout
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Validation creates an ErrValidation error for input rejected at a call boundary.
func Validation(format string, args ...interface{}) *Error {
	return &Error{
		Code:    ErrValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Short returns the message and cause on one line, for status bars.
func (e *Error) Short() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + firstLine(e.Cause.Error())
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// IsTimeout reports whether err is a timeout, either coded or a bare
// context deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return IsCode(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Summary renders any error as a single line suitable for a status bar.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Short()
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "✗"))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
