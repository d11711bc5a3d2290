//go:build !linux

package inotify

import "syscall"

// inotify only exists on Linux. Open fails with CodeUnsupported elsewhere.

func initChannel(SessionFlags) (int, error) { return -1, syscall.ENOSYS }

func addWatch(int, string, uint32) (int32, error) { return -1, syscall.ENOSYS }

func rmWatch(int, int32) error { return syscall.ENOSYS }

func detectCapabilities() Capabilities { return Capabilities{} }

func newWaker() (int, error) { return -1, syscall.ENOSYS }

func wakeup(int) {}

func closeFd(int) error { return syscall.ENOSYS }
