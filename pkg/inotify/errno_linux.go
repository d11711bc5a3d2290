//go:build linux

package inotify

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// codeForErrno maps errno values documented for inotify_init1(2),
// inotify_add_watch(2), inotify_rm_watch(2) and read(2). EINVAL means
// different things depending on the call.
func codeForErrno(op string, errno syscall.Errno) Code {
	switch errno {
	case unix.ENOENT, unix.ENOTDIR, unix.ELOOP, unix.ENAMETOOLONG:
		return CodeNotFound
	case unix.EACCES, unix.EPERM:
		return CodePermissionDenied
	case unix.EMFILE, unix.ENFILE, unix.ENOSPC, unix.ENOMEM:
		return CodeResourceExhausted
	case unix.EEXIST:
		return CodeAlreadyExists
	case unix.EBADF:
		return CodeSessionClosed
	case unix.ENOSYS:
		return CodeUnsupported
	case unix.EINVAL:
		switch op {
		case opOpen:
			return CodeUnsupported
		case opCancel:
			return CodeInvalidDescriptor
		}
	}
	return CodeUnknown
}
