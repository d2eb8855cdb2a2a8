// Package errors provides structured error types for graphtriple.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP API and the import pipeline
//   - Machine-readable error codes for programmatic handling
//   - Line-level diagnostics that retain the offending triple text
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - *_NOT_FOUND: Referenced element, property or file does not exist
//   - grammar codes (MALFORMED_TRIPLE, UNTERMINATED_LITERAL, MISSING_PREDICATE_IRI)
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMalformedTriple, "expected '<' at column %d", col)
//	if errors.IsGrammar(err) {
//	    // Reject the line
//	}
//
//	// Attach the line that failed
//	err = &errors.LineError{Num: 12, Line: text, Err: err}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidFormat     Code = "INVALID_FORMAT"
	ErrCodeInvalidPath       Code = "INVALID_PATH"
	ErrCodeInvalidElementID  Code = "INVALID_ELEMENT_ID"
	ErrCodeInvalidIRI        Code = "INVALID_IRI"
	ErrCodeInvalidVisibility Code = "INVALID_VISIBILITY"
	ErrCodeInvalidConfig     Code = "INVALID_CONFIG"

	// Grammar errors
	ErrCodeMalformedTriple     Code = "MALFORMED_TRIPLE"
	ErrCodeUnterminatedLiteral Code = "UNTERMINATED_LITERAL"
	ErrCodeMissingPredicateIRI Code = "MISSING_PREDICATE_IRI"

	// Type coercion errors
	ErrCodeInvalidLiteral         Code = "INVALID_LITERAL"
	ErrCodeUnsupportedLiteralType Code = "UNSUPPORTED_LITERAL_TYPE"

	// Dispatch errors
	ErrCodeAmbiguousShape Code = "AMBIGUOUS_SHAPE"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeElementNotFound  Code = "ELEMENT_NOT_FOUND"
	ErrCodePropertyNotFound Code = "PROPERTY_NOT_FOUND"
	ErrCodeFileNotFound     Code = "FILE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Authorization errors
	ErrCodeForbidden Code = "FORBIDDEN"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
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
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsGrammar reports whether err is a triple grammar error.
func IsGrammar(err error) bool {
	switch GetCode(err) {
	case ErrCodeMalformedTriple, ErrCodeUnterminatedLiteral, ErrCodeMissingPredicateIRI:
		return true
	}
	return false
}

// LineError attaches the source position and raw text of a triple line to
// an error. Num is 1-based; zero means the line was not read from a stream.
type LineError struct {
	Num  int
	Line string
	Err  error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	if e.Num > 0 {
		return fmt.Sprintf("line %d: %v: %q", e.Num, e.Err, e.Line)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Line)
}

// Unwrap returns the underlying error.
func (e *LineError) Unwrap() error {
	return e.Err
}

// AtLine wraps err in a LineError unless it already carries one. A LineError
// without a line number picks up num.
func AtLine(err error, num int, line string) error {
	if err == nil {
		return nil
	}
	var le *LineError
	if errors.As(err, &le) {
		if le.Num == 0 {
			le.Num = num
		}
		return err
	}
	return &LineError{Num: num, Line: line, Err: err}
}
