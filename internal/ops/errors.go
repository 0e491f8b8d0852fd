package ops

import (
	"errors"
	"fmt"
)

// Error kinds, mapped to HTTP status codes at the API layer.
const (
	KindValidation = "validation" // malformed input, no store access attempted
	KindConflict   = "conflict"   // action illegal given current entity state
	KindInternal   = "internal"   // primary store write failed
)

// Error is a classified action failure with a machine-readable code.
type Error struct {
	Kind    string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf builds a validation error.
func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a state-conflict error wrapping the predicate's reason.
func Conflictf(code string, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Internalf builds an internal error wrapping the store failure.
func Internalf(code string, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the error's kind, or KindInternal for unclassified errors.
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the error's machine-readable code, or "internal_error".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}
