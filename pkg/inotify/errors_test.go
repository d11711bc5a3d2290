package inotify

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesCode(t *testing.T) {
	err := newError(CodeNotFound, opRegister).withPath("/no/such/path")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrPermissionDenied))

	wrapped := fmt.Errorf("watching library: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestError_UnwrapErrno(t *testing.T) {
	err := fromSyscall(opRegister, syscall.ENOENT)
	assert.True(t, errors.Is(err, syscall.ENOENT))
	assert.Equal(t, syscall.ENOENT, err.Errno)
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "path and errno",
			err:  &Error{Code: CodeNotFound, Op: opRegister, Path: "/x", WD: noWD, Errno: syscall.ENOENT},
			want: "inotify register /x: not found: " + syscall.ENOENT.Error(),
		},
		{
			name: "descriptor",
			err:  newError(CodeInvalidDescriptor, opCancel).withWD(9999),
			want: "inotify cancel wd=9999: invalid watch descriptor",
		},
		{
			name: "custom message",
			err:  &Error{Code: CodeUnsupported, Op: opRegister, WD: noWD, Message: "no MASK_CREATE"},
			want: "inotify register: no MASK_CREATE",
		},
		{
			name: "sentinel",
			err:  ErrSessionClosed,
			want: "inotify: session closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestFromSyscall_NonErrno(t *testing.T) {
	cause := errors.New("boom")
	err := fromSyscall(opClose, cause)

	assert.Equal(t, CodeUnknown, err.Code)
	assert.Zero(t, err.Errno)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeSessionClosed, CodeOf(ErrSessionClosed))
}
