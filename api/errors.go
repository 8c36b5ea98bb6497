// Package api
// Author: momentics <momentics@gmail.com>
//
// Portable error taxonomy shared by every backend strategy and entity.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure independently of the platform that produced it.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeAddressInUse
	ErrCodeAddressFamilyUnsupported
	ErrCodeConnectionRefused
	ErrCodeInvalidHandle
	ErrCodeResourceExhausted
	ErrCodeIO
	ErrCodePlatformUnsupported
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeAddressInUse:
		return "address in use"
	case ErrCodeAddressFamilyUnsupported:
		return "address family unsupported"
	case ErrCodeConnectionRefused:
		return "connection refused"
	case ErrCodeInvalidHandle:
		return "invalid handle"
	case ErrCodeResourceExhausted:
		return "resource exhausted"
	case ErrCodeIO:
		return "i/o error"
	case ErrCodePlatformUnsupported:
		return "platform unsupported"
	default:
		return fmt.Sprintf("error code %d", int(c))
	}
}

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrInvalidArgument          = &Error{Code: ErrCodeInvalidArgument}
	ErrAddressInUse             = &Error{Code: ErrCodeAddressInUse}
	ErrAddressFamilyUnsupported = &Error{Code: ErrCodeAddressFamilyUnsupported}
	ErrConnectionRefused        = &Error{Code: ErrCodeConnectionRefused}
	ErrInvalidHandle            = &Error{Code: ErrCodeInvalidHandle}
	ErrResourceExhausted        = &Error{Code: ErrCodeResourceExhausted}
	ErrIO                       = &Error{Code: ErrCodeIO}
	ErrPlatformUnsupported      = &Error{Code: ErrCodePlatformUnsupported}
)

// Error is the only error type returned across the transport boundary.
type Error struct {
	Code ErrorCode
	// Op names the failed operation ("bind", "accept", "recvfrom", ...).
	Op string
	// Native is the platform diagnostic (errno, WSA error); 0 when none.
	Native int
	// Err is the underlying native error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (native %d: %v)", msg, e.Native, e.Err)
	}
	return msg
}

// Unwrap exposes the native error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code. A target that
// also names an Op must match it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Op == "" || t.Op == e.Op)
}

// NewError creates a structured error without a native cause.
func NewError(op string, code ErrorCode) *Error {
	return &Error{Code: code, Op: op}
}

// WrapNative creates a structured error carrying the platform diagnostic.
func WrapNative(op string, code ErrorCode, native int, err error) *Error {
	return &Error{Code: code, Op: op, Native: native, Err: err}
}

// CodeOf extracts the taxonomy code of err. Nil maps to ErrCodeOK and
// foreign errors to ErrCodeIO.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeIO
}
