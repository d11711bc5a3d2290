//go:build !linux

package inotify

import "syscall"

func codeForErrno(_ string, errno syscall.Errno) Code {
	if errno == syscall.ENOSYS {
		return CodeUnsupported
	}
	return CodeUnknown
}
