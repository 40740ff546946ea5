package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"

	// ErrCodeFormat flags corrupt persisted encodings (paths, numbers).
	ErrCodeFormat ErrorCode = "FORMAT"
	// ErrCodeModelViolation flags a business rule refused by the task model.
	ErrCodeModelViolation ErrorCode = "MODEL_VIOLATION"
	// ErrCodeStore flags a persistence defect.
	ErrCodeStore ErrorCode = "STORE"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ModelViolation reports a refused tree or contribution operation.
func ModelViolation(format string, args ...interface{}) *Error {
	return NewError(ErrCodeModelViolation, fmt.Sprintf(format, args...))
}

// FormatError reports a malformed path or sibling code.
func FormatError(format string, args ...interface{}) *Error {
	return NewError(ErrCodeFormat, fmt.Sprintf(format, args...))
}

// Common domain errors.
var (
	ErrTaskNotFound         = NewError(ErrCodeNotFound, "task not found")
	ErrContributionNotFound = NewError(ErrCodeNotFound, "contribution not found")
	ErrDurationNotFound     = NewError(ErrCodeNotFound, "duration not found")
	ErrUnauthorized         = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload       = NewError(ErrCodeInvalid, "invalid payload")
	ErrConflict             = NewError(ErrCodeConflict, "task was modified concurrently")

	// ErrEmptyResult is returned when an aggregate query yields no row at all.
	ErrEmptyResult = NewError(ErrCodeStore, "aggregate query returned no row")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
