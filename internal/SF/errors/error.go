package errors

import (
	"errors"
	"fmt"
)

// Error is a structured error carrying an error code, a human-readable
// message, and an optional wrapped underlying error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped underlying error (may be nil)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap returns the wrapped error for use with errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches target.  Two *Error values match when
// their Codes are equal, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new *Error with the given code and message.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Errorf creates a new *Error with the given code and a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new *Error with the given code that wraps err.
func Wrap(code ErrorCode, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrorCodeOf returns the ErrorCode of err.
// Returns SVDB_OK for nil, the code from any *Error in the chain, or SVDB_ERROR
// for any other non-nil error.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return SVDB_OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return SVDB_ERROR
}

// IsErrorCode reports whether err carries the given error code.
func IsErrorCode(err error, code ErrorCode) bool {
	return ErrorCodeOf(err) == code
}

// Sentinel kinds. Match with errors.Is; the concrete errors returned by the
// VM carry the same code with a descriptive message.
var (
	ErrDuplicateName    = NewError(SVDB_CONSTRAINT_UNIQUE, "duplicate function name")
	ErrUnknownFunction  = NewError(SVDB_NOTFOUND_FUNCTION, "unknown function")
	ErrUnknownColumn    = NewError(SVDB_NOTFOUND_COLUMN, "unknown column")
	ErrUnknownVariable  = NewError(SVDB_NOTFOUND_VARIABLE, "unknown variable")
	ErrArityMismatch    = NewError(SVDB_MISMATCH_ARITY, "arity mismatch")
	ErrTypeMismatch     = NewError(SVDB_MISMATCH_TYPE, "type mismatch")
	ErrRegistryFrozen   = NewError(SVDB_MISUSE_FROZEN, "function registry is frozen")
	ErrReductionLimit   = NewError(SVDB_TOOBIG_REDUCTION, "reduction limit exceeded")
	ErrInvalidPlan      = NewError(SVDB_SCHEMA_PLAN, "invalid plan")
	ErrInvalidLambda    = NewError(SVDB_SCHEMA_LAMBDA, "invalid lambda")
	ErrInvalidSignature = NewError(SVDB_SCHEMA_SIGNATURE, "invalid function signature")
)
