// Package errors provides structured error handling for brokercore.
//
// It defines a standard AppError type carrying a stable Code, a
// human-readable Message, and an optional wrapped error. Every package
// in this module reports failures through AppError so callers can branch
// on Code via errors.Is/errors.As instead of string-matching messages.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, comparable error classification.
type Code string

const (
	CodeArgumentInvalid     Code = "ARGUMENT_INVALID"
	CodeConfigInvalid       Code = "CONFIG_INVALID"
	CodeDisposed            Code = "DISPOSED"
	CodeTransient           Code = "TRANSIENT"
	CodePermanent           Code = "PERMANENT"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeCircuitOpen         Code = "CIRCUIT_OPEN"
	CodeBulkheadRejected    Code = "BULKHEAD_REJECTED"
	CodeCancelled           Code = "CANCELLED"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"

	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
	CodeForbidden       Code = "FORBIDDEN"
)

// AppError is the module's single error type.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, &AppError{Code: X}) match on Code alone.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds an AppError with the given code, message and wrapped cause.
func New(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrap annotates err with a message, defaulting to CodeInternal unless err
// already carries an AppError code, in which case that code is preserved.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message, Err: err}
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

func NotFound(message string, err error) *AppError {
	return New(CodeNotFound, message, err)
}

func Conflict(message string, err error) *AppError {
	return New(CodeConflict, message, err)
}

func InvalidArgument(message string, err error) *AppError {
	return New(CodeInvalidArgument, message, err)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, err)
}

func Forbidden(message string, err error) *AppError {
	return New(CodeForbidden, message, err)
}

// ArgumentInvalid reports a caller-supplied argument that violates a
// component's input contract (e.g. empty message ID, negative capacity).
func ArgumentInvalid(message string, err error) *AppError {
	return New(CodeArgumentInvalid, message, err)
}

// ConfigInvalid reports a configuration value that failed validation at
// load time.
func ConfigInvalid(message string, err error) *AppError {
	return New(CodeConfigInvalid, message, err)
}

// Disposed reports a call against a component after Dispose/Close.
func Disposed(message string) *AppError {
	return New(CodeDisposed, message, nil)
}

// Transient marks a failure the caller may retry (network blip, timeout).
func Transient(message string, err error) *AppError {
	return New(CodeTransient, message, err)
}

// Permanent marks a failure retrying will not fix (bad credentials, schema
// mismatch).
func Permanent(message string, err error) *AppError {
	return New(CodePermanent, message, err)
}

// RateLimited reports a rejection by a rate limiter.
func RateLimited(message string, err error) *AppError {
	return New(CodeRateLimited, message, err)
}

// CircuitOpenErr reports a rejection by an open circuit breaker.
func CircuitOpenErr(message string, err error) *AppError {
	return New(CodeCircuitOpen, message, err)
}

// BulkheadRejectedErr reports a rejection by a full bulkhead.
func BulkheadRejectedErr(message string, err error) *AppError {
	return New(CodeBulkheadRejected, message, err)
}

// CancelledErr reports a context cancellation or deadline.
func CancelledErr(message string, err error) *AppError {
	return New(CodeCancelled, message, err)
}

// ConcurrencyConflictErr reports a lost optimistic-concurrency race.
func ConcurrencyConflictErr(message string, err error) *AppError {
	return New(CodeConcurrencyConflict, message, err)
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var ae *AppError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code == code
}

// As is a thin re-export of the standard library's errors.As for callers
// that already import this package and want one error import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
