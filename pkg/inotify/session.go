// Package inotify manages Linux inotify sessions and their watch descriptors.
//
// A Session owns one inotify file descriptor. Paths are registered with a
// Mask (event categories plus behavior flags) and yield a Descriptor that
// stays valid until it is cancelled or the session is closed:
//
//	s, err := inotify.Open(inotify.SessionFlags{NonBlock: true, CloseOnExec: true})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	wd, err := s.Register("/etc", inotify.Compose(inotify.OpCreate|inotify.OpDelete, 0))
//	if err != nil {
//	    return err
//	}
//	...
//	err = s.Cancel(wd)
//
// Every failure is an *Error whose Code tells the caller what happened.
// Nothing is retried and no behavior is silently downgraded.
package inotify

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
)

// Session is one inotify notification channel. All methods are safe for
// concurrent use.
type Session struct {
	id       uuid.UUID
	flags    SessionFlags
	caps     Capabilities
	logger   *slog.Logger
	observer Observer
	table    *table

	mu     sync.Mutex
	closed bool
	// fd is never reassigned. (*os.File).Fd would switch a non-blocking
	// descriptor back to blocking mode, so it is kept apart from file.
	fd int
	// file owns fd on a non-blocking session and reads through the
	// runtime poller.
	file *os.File

	// A blocking session reads with poll(2) on fd and wake. Close signals
	// wake, then takes readMu to wait for the reader to leave the syscall
	// before releasing both descriptors.
	wake    int
	closing atomic.Bool
	readMu  sync.RWMutex
}

// Open creates a new inotify channel with the given flags.
func Open(flags SessionFlags, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.setDefaults()

	fd, err := initChannel(flags)
	if err != nil {
		e := fromSyscall(opOpen, err)
		o.observer.OperationFailed(opOpen, e.Code)
		return nil, e
	}

	wake := -1
	if !flags.NonBlock {
		if wake, err = newWaker(); err != nil {
			_ = closeFd(fd)
			e := fromSyscall(opOpen, err)
			o.observer.OperationFailed(opOpen, e.Code)
			return nil, e
		}
	}

	caps := detectCapabilities()
	if o.capabilities != nil {
		caps = *o.capabilities
	}

	id := uuid.New()
	s := &Session{
		id:       id,
		flags:    flags,
		caps:     caps,
		logger:   o.logger.With("session", id.String()),
		observer: o.observer,
		table:    newTable(id),
		fd:       fd,
		wake:     wake,
	}
	if flags.NonBlock {
		//nolint:gosec // G115: fd is a non-negative descriptor from inotify_init1
		s.file = os.NewFile(uintptr(fd), "inotify")
	}

	s.logger.Debug("opened session",
		"fd", fd,
		"nonblock", flags.NonBlock,
		"cloexec", flags.CloseOnExec,
		"kernel", caps.Kernel,
		"mask_create", caps.MaskCreate,
	)
	s.observer.SessionOpened(id)

	return s, nil
}

// Register adds a watch for path, or updates the watch that already exists
// for the same filesystem object in this session.
//
// When the object is already watched the same Descriptor is returned: with
// MaskAdd the categories are merged into the watch, without it they replace
// the watch's categories. With MaskCreate the call fails with
// CodeAlreadyExists instead and the existing watch is left untouched.
func (s *Session) Register(path string, mask Mask) (Descriptor, error) {
	info, _, err := s.Add(path, mask)
	return info.Descriptor, err
}

// Add is Register returning the resulting watch and whether it already
// existed. Both are taken together with the registration, so concurrent
// callers registering the same object see exactly one existed == false.
func (s *Session) Add(path string, mask Mask) (WatchInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return WatchInfo{}, false, s.fail(newError(CodeSessionClosed, opRegister).withPath(path))
	}

	if err := mask.Validate(); err != nil {
		e := newError(CodeUnknown, opRegister).withPath(path)
		e.Errno = syscall.EINVAL
		e.Message = err.Error()
		return WatchInfo{}, false, s.fail(e)
	}

	if mask.Behavior.Has(MaskCreate) && !s.caps.MaskCreate {
		e := newError(CodeUnsupported, opRegister).withPath(path)
		e.Message = "kernel " + s.caps.Kernel + " does not support MASK_CREATE"
		return WatchInfo{}, false, s.fail(e)
	}

	wd, err := addWatch(s.fd, path, mask.Raw())
	if err != nil {
		return WatchInfo{}, false, s.fail(fromSyscall(opRegister, err).withPath(path))
	}

	info, prior, existed := s.table.record(wd, path, mask)
	d := info.Descriptor

	if existed {
		s.logger.Debug("updated watch", "path", path, "wd", wd, "mask", mask.String(), "prior", prior.String())
	} else {
		s.logger.Debug("added watch", "path", path, "wd", wd, "mask", mask.String())
	}
	s.observer.WatchRegistered(d, mask, existed)

	return info, existed, nil
}

// Cancel removes the watch named by d. Events the kernel queued before the
// call may still be read afterwards.
func (s *Session) Cancel(d Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.fail(newError(CodeSessionClosed, opCancel).withWD(d.wd))
	}

	if !s.table.contains(d) {
		return s.fail(newError(CodeInvalidDescriptor, opCancel).withWD(d.wd))
	}

	if err := rmWatch(s.fd, d.wd); err != nil {
		e := fromSyscall(opCancel, err).withWD(d.wd)
		if e.Code == CodeInvalidDescriptor {
			// The kernel dropped the watch on its own, e.g. after a
			// one-shot event or when the watched object was deleted.
			if s.table.forget(d.wd) {
				s.logger.Debug("dropped stale watch", "wd", d.wd)
				s.observer.WatchExpired(d)
			}
		}
		return s.fail(e)
	}

	s.table.forget(d.wd)
	s.logger.Debug("removed watch", "wd", d.wd)
	s.observer.WatchCancelled(d)

	return nil
}

// Close releases the notify channel. Every outstanding Descriptor becomes
// invalid and a pending Read returns CodeSessionClosed. Calling Close again
// is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.closing.Store(true)

	var err error
	if s.file != nil {
		err = s.file.Close()
		s.file = nil
	} else {
		wakeup(s.wake)
		s.readMu.Lock()
		err = closeFd(s.fd)
		_ = closeFd(s.wake)
		s.readMu.Unlock()
	}
	released := s.table.reset()

	s.logger.Debug("closed session", "released_watches", released)
	s.observer.SessionClosed(s.id, released)

	if err != nil {
		return s.fail(fromSyscall(opClose, err))
	}
	return nil
}

// ID returns the session's unique ID.
func (s *Session) ID() uuid.UUID { return s.id }

// Flags returns the flags the session was opened with.
func (s *Session) Flags() SessionFlags { return s.flags }

// Capabilities returns the kernel features detected at open.
func (s *Session) Capabilities() Capabilities { return s.caps }

// Fd returns the notify channel's file descriptor, or -1 once closed. The
// descriptor stays owned by the session and must not be closed by the
// caller.
func (s *Session) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1
	}
	return s.fd
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Watches returns a snapshot of the live watches ordered by descriptor.
func (s *Session) Watches() []WatchInfo {
	return s.table.snapshot()
}

// Lookup returns the live watch with kernel descriptor wd, as found on a
// delivered event.
func (s *Session) Lookup(wd int32) (WatchInfo, bool) {
	return s.table.lookup(wd)
}

// stream returns the poller-backed channel of a non-blocking session, or
// nil once closed.
func (s *Session) stream() *os.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// release forgets a watch the kernel reported as removed.
func (s *Session) release(wd int32) {
	d := s.table.descriptor(wd)
	if s.table.forget(wd) {
		s.logger.Debug("kernel removed watch", "wd", wd)
		s.observer.WatchExpired(d)
	}
}

func (s *Session) fail(e *Error) *Error {
	s.observer.OperationFailed(e.Op, e.Code)
	return e
}
