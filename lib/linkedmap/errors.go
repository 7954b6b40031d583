package linkedmap

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation succeeded.
	RetCInternalError                       // 1: The storage engine failed.
	RetCUnsupportedOperation                // 2: Operation is not supported by the engine.
	RetCNoSuchElement                       // 3: Iterator or sequence has no further element.
	RetCSequenceExhausted                   // 4: Sequence numbers would overflow.
	RetCClosed                              // 5: Map, iterator or batch is already closed.
	RetCInvalidArgument                     // 6: Invalid option or argument.
	RetCAlreadyOpen                         // 7: Storage location is held by another map.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCNoSuchElement:
		return "NoSuchElement"
	case RetCSequenceExhausted:
		return "SequenceExhausted"
	case RetCClosed:
		return "Closed"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCAlreadyOpen:
		return "AlreadyOpen"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code and a message. Two errors match under errors.Is
// when their codes are equal, so callers test against the sentinels below.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("LinkedMapError (code %s): %s: %v", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("LinkedMapError (code %s): %s", e.Code, e.Msg)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Unwrap returns the engine error, if any.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError attaches an engine error to a code.
func WrapError(code RetCode, cause error, msg string) *Error {
	return &Error{Code: code, Msg: msg, cause: cause}
}

// Unsupported builds the error returned by engines for operations they do not implement.
func Unsupported(engine Implementation, op string) error {
	return NewError(RetCUnsupportedOperation, fmt.Sprintf("%s: %s is not supported", engine, op))
}

var (
	ErrUnsupportedOperation = NewError(RetCUnsupportedOperation, "unsupported operation")
	ErrNoSuchElement        = NewError(RetCNoSuchElement, "no such element")
	ErrSequenceExhausted    = NewError(RetCSequenceExhausted, "sequence exhausted")
	ErrClosed               = NewError(RetCClosed, "closed")
	ErrInvalidArgument      = NewError(RetCInvalidArgument, "invalid argument")
	ErrAlreadyOpen          = NewError(RetCAlreadyOpen, "location already open")
	ErrInternal             = NewError(RetCInternalError, "internal error")
)
