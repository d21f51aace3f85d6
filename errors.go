package bthost

import (
	"fmt"
)

// ErrorCode classifies a failed operation by condition, not by origin.
// Every public operation reports exactly one of these through its
// callback; none of them is ever raised as a panic.
type ErrorCode int

const (
	CodeFailed ErrorCode = iota
	CodeInvalidArguments
	CodeNotFound
	CodeInProgress
	CodeCanceled
	CodeBadState
	CodeNotSupported
)

func (c ErrorCode) String() string {
	switch c {
	case CodeFailed:
		return "FAILED"
	case CodeInvalidArguments:
		return "INVALID_ARGUMENTS"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeInProgress:
		return "IN_PROGRESS"
	case CodeCanceled:
		return "CANCELED"
	case CodeBadState:
		return "BAD_STATE"
	case CodeNotSupported:
		return "NOT_SUPPORTED"
	default:
		return fmt.Sprintf("ERROR(%d)", int(c))
	}
}

// Error carries an ErrorCode and a human-readable description.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a coded error.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func NewErrorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err. Errors produced outside this
// module map to CodeFailed.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeFailed
	}
	type causer interface {
		Cause() error
	}
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	return CodeFailed
}
