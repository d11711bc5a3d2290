//go:build linux

package inotify

import (
	"golang.org/x/sys/unix"
)

func (f SessionFlags) raw() int {
	var flags int
	if f.NonBlock {
		flags |= unix.IN_NONBLOCK
	}
	if f.CloseOnExec {
		flags |= unix.IN_CLOEXEC
	}
	return flags
}

func initChannel(flags SessionFlags) (int, error) {
	return unix.InotifyInit1(flags.raw())
}

func addWatch(fd int, path string, mask uint32) (int32, error) {
	wd, err := unix.InotifyAddWatch(fd, path, mask)
	if err != nil {
		return -1, err
	}
	//nolint:gosec // G115: watch descriptors are small non-negative ints
	return int32(wd), nil
}

func rmWatch(fd int, wd int32) error {
	//nolint:gosec // G115: wd was returned by inotify_add_watch and is non-negative
	_, err := unix.InotifyRmWatch(fd, uint32(wd))
	return err
}

func detectCapabilities() Capabilities {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Capabilities{}
	}
	return capabilitiesFor(unix.ByteSliceToString(uts.Release[:]))
}

// newWaker returns an eventfd that stays readable once signalled.
func newWaker() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

func wakeup(fd int) {
	_, _ = unix.Write(fd, []byte{1, 0, 0, 0, 0, 0, 0, 0})
}

func closeFd(fd int) error {
	return unix.Close(fd)
}
