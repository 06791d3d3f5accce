// Package vmerrors defines the error families the core raises, each wrapped
// with github.com/pkg/errors so that every failure carries a stack trace
// back to its origin site.
package vmerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// FormatError signals a class file that fails a structural check: wrong
// magic, unsupported version, unknown constant-pool tag, truncated
// attribute, non-zero interface count, non-ASCII Utf8, unknown stack-map
// frame type.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string { return "format error: " + e.Message }

// NewFormatError builds a FormatError with a stack trace attached.
func NewFormatError(format string, args ...interface{}) error {
	return errors.WithStack(&FormatError{Message: fmt.Sprintf(format, args...)})
}

// VerificationError signals a violated verifier rule. Message names the
// rule and the offending bci.
type VerificationError struct {
	Message string
}

func (e *VerificationError) Error() string { return "verification error: " + e.Message }

func NewVerificationError(format string, args ...interface{}) error {
	return errors.WithStack(&VerificationError{Message: fmt.Sprintf(format, args...)})
}

// LinkageError signals the class manager detecting a conflicting
// (name, loader) registration.
type LinkageError struct {
	Message string
}

func (e *LinkageError) Error() string { return "linkage error: " + e.Message }

func NewLinkageError(format string, args ...interface{}) error {
	return errors.WithStack(&LinkageError{Message: fmt.Sprintf(format, args...)})
}

// ClassNotFoundError signals a loader that could not locate bytes for a
// requested class name. Supplements the five spec families with the
// loader-level failure mode the class manager's get_class must surface
// separately from LinkageError.
type ClassNotFoundError struct {
	ClassName string
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("class not found: %s", e.ClassName)
}

func NewClassNotFoundError(className string) error {
	return errors.WithStack(&ClassNotFoundError{ClassName: className})
}

// RuntimeError signals the interpreter hitting an unrecoverable condition:
// null receiver for field access, uninitialized reference dereference, and
// similar host-specific faults.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return "runtime error: " + e.Message }

func NewRuntimeError(format string, args ...interface{}) error {
	return errors.WithStack(&RuntimeError{Message: fmt.Sprintf(format, args...)})
}
