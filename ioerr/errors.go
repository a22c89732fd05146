// Package ioerr defines the structured error kinds shared by the provider,
// pool, and runtime packages.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ioerr

import (
	"errors"
	"fmt"
)

// Code identifies one of the error kinds from the provider contract.
type Code int

const (
	CodeSuccess Code = iota
	CodeNotInitialized
	CodeAlreadyInitialized
	CodeInvalidParameter
	CodeInvalidSocket
	CodeInvalidBuffer
	CodePlatformNotSupported
	CodeOperationFailed
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "Success"
	case CodeNotInitialized:
		return "NotInitialized"
	case CodeAlreadyInitialized:
		return "AlreadyInitialized"
	case CodeInvalidParameter:
		return "InvalidParameter"
	case CodeInvalidSocket:
		return "InvalidSocket"
	case CodeInvalidBuffer:
		return "InvalidBuffer"
	case CodePlatformNotSupported:
		return "PlatformNotSupported"
	case CodeOperationFailed:
		return "OperationFailed"
	default:
		return "Unknown"
	}
}

// Error is the structured error type returned across the core boundary.
// It carries an error Code, a human message, an optional OS-level errno,
// and optional wrapped cause for errors.Is/errors.As support.
type Error struct {
	Code   Code
	Op     string
	Msg    string
	OSErr  int
	Inner  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		if e.OSErr != 0 {
			return fmt.Sprintf("ioprovider: %s: %s (code=%s os_error=%d)", e.Op, e.Msg, e.Code, e.OSErr)
		}
		return fmt.Sprintf("ioprovider: %s: %s (code=%s)", e.Op, e.Msg, e.Code)
	}
	return fmt.Sprintf("ioprovider: %s (code=%s)", e.Msg, e.Code)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Inner }

// Is reports whether target carries the same Code.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New constructs an *Error for op with the given code and message.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap constructs an *Error for op that wraps an existing error under code.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// WithOSError attaches an OS-level error code and returns e for chaining.
func (e *Error) WithOSError(errno int) *Error {
	e.OSErr = errno
	return e
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, or
// CodeOperationFailed otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeOperationFailed
}
