package inotify

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Code is a machine-readable error kind.
//
// Check a returned error with errors.Is against the sentinels, or use
// CodeOf for a switch:
//
//	wd, err := s.Register(path, mask)
//	switch inotify.CodeOf(err) {
//	case inotify.CodeAlreadyExists:
//	    // someone in this session already watches path
//	case inotify.CodeNotFound:
//	    // path went away
//	}
type Code string

// Error codes.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeInvalidDescriptor Code = "INVALID_DESCRIPTOR"
	CodeSessionClosed     Code = "SESSION_CLOSED"
	CodeUnsupported       Code = "UNSUPPORTED"
	CodeUnknown           Code = "UNKNOWN"
)

var codeMessages = map[Code]string{
	CodeNotFound:          "not found",
	CodePermissionDenied:  "permission denied",
	CodeResourceExhausted: "resource exhausted",
	CodeAlreadyExists:     "already watched",
	CodeInvalidDescriptor: "invalid watch descriptor",
	CodeSessionClosed:     "session closed",
	CodeUnsupported:       "unsupported",
	CodeUnknown:           "unknown error",
}

// Operations named in errors.
const (
	opOpen     = "open"
	opRegister = "register"
	opCancel   = "cancel"
	opClose    = "close"
	opRead     = "read"
)

// noWD marks an Error that does not concern a watch descriptor.
const noWD int32 = -1

// Error is returned by every fallible operation of a Session.
type Error struct {
	Code Code
	// Op is the operation that failed: open, register, cancel, close or read.
	Op string
	// Path is the registered path, if any.
	Path string
	// WD is the watch descriptor concerned, or -1.
	WD int32
	// Errno is the system error reported by the kernel, or 0 when the
	// failure was detected before making a call.
	Errno   syscall.Errno
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("inotify")
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.WD >= 0 {
		fmt.Fprintf(&b, " wd=%d", e.WD)
	}
	b.WriteString(": ")
	msg := e.Message
	if msg == "" {
		msg = codeMessages[e.Code]
	}
	b.WriteString(msg)
	switch {
	case e.Errno != 0:
		b.WriteString(": " + e.Errno.Error())
	case e.cause != nil:
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the system error, so errors.Is(err, unix.ENOENT) works.
func (e *Error) Unwrap() error {
	if e.Errno != 0 {
		return e.Errno
	}
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors for use with errors.Is.
var (
	ErrNotFound          = &Error{Code: CodeNotFound, WD: noWD}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, WD: noWD}
	ErrResourceExhausted = &Error{Code: CodeResourceExhausted, WD: noWD}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, WD: noWD}
	ErrInvalidDescriptor = &Error{Code: CodeInvalidDescriptor, WD: noWD}
	ErrSessionClosed     = &Error{Code: CodeSessionClosed, WD: noWD}
	ErrUnsupported       = &Error{Code: CodeUnsupported, WD: noWD}
	ErrUnknown           = &Error{Code: CodeUnknown, WD: noWD}
)

// CodeOf returns the Code carried by err. It returns "" for a nil error and
// CodeUnknown for errors that did not come from this package.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func newError(code Code, op string) *Error {
	return &Error{Code: code, Op: op, WD: noWD}
}

// fromSyscall maps an error returned by a system call, or by *os.File,
// into the taxonomy. Errors carrying no errno become CodeUnknown with the
// original error as cause.
func fromSyscall(op string, err error) *Error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		e := newError(CodeUnknown, op)
		e.cause = err
		return e
	}
	e := newError(codeForErrno(op, errno), op)
	e.Errno = errno
	return e
}

func (e *Error) withPath(path string) *Error {
	e.Path = path
	return e
}

func (e *Error) withWD(wd int32) *Error {
	e.WD = wd
	return e
}
