package bus

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

// Error codes. Configuration codes abort a batch; segment codes are counted
// and skipped.
const (
	CodeInvalidSplitCount   Code = "INVALID_SPLIT_COUNT"
	CodeInvalidWidth        Code = "INVALID_WIDTH"
	CodeInvalidSeparation   Code = "INVALID_SEPARATION"
	CodeDegenerateSegment   Code = "DEGENERATE_SEGMENT"
	CodeNoMatchingSegments  Code = "NO_MATCHING_SEGMENTS"
	CodeTransactionRejected Code = "TRANSACTION_REJECTED"
	CodeAborted             Code = "ABORTED"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidSplitCount   = &Error{Code: CodeInvalidSplitCount, Message: "invalid split count"}
	ErrInvalidWidth        = &Error{Code: CodeInvalidWidth, Message: "invalid split width"}
	ErrInvalidSeparation   = &Error{Code: CodeInvalidSeparation, Message: "invalid separation"}
	ErrDegenerateSegment   = &Error{Code: CodeDegenerateSegment, Message: "zero-length segment"}
	ErrNoMatchingSegments  = &Error{Code: CodeNoMatchingSegments, Message: "no matching segments"}
	ErrTransactionRejected = &Error{Code: CodeTransactionRejected, Message: "transaction rejected"}
	ErrAborted             = &Error{Code: CodeAborted, Message: "batch aborted"}
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Handle  Handle // segment the error refers to, if any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Handle != "" {
		msg = fmt.Sprintf("segment %s: %s", e.Handle, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConfigError reports whether err is one of the batch-fatal configuration
// errors.
func IsConfigError(err error) bool {
	switch GetCode(err) {
	case CodeInvalidSplitCount, CodeInvalidWidth, CodeInvalidSeparation:
		return true
	}
	return false
}
