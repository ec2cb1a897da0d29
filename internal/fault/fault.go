// Package fault defines the error kinds raised by the event-detection engine.
//
// Every error is raised synchronously where it is detected and is never
// retried by the engine itself. Callers branch on the kind with Is.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors.
type Code string

const (
	// InvalidRange indicates a cyclic window with min >= max, or a size
	// outside its allowed bounds.
	InvalidRange Code = "INVALID_RANGE"

	// InterpolationFailure indicates the interpolator could not produce an
	// epoch from the current buffer (degenerate points, goal not bracketed).
	InterpolationFailure Code = "INTERPOLATION_FAILURE"

	// MissingCollaborator indicates a required external reference
	// (interpolator, goal provider, value provider) is unset.
	MissingCollaborator Code = "MISSING_COLLABORATOR"

	// IndexOutOfRange indicates an index past the end of a result list.
	IndexOutOfRange Code = "INDEX_OUT_OF_RANGE"
)

// Error is an engine error carrying a Code.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed, e.g. "stopcond.StopEpoch".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a formatted message.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around an underlying cause.
func Wrap(code Code, op string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether any error in err's chain is an *Error with the given code.
func Is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
