//go:build linux

package inotify

import (
	"context"
	"errors"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// readBufferSize holds at least one event with the longest possible name.
const readBufferSize = 64 * (unix.SizeofInotifyEvent + unix.NAME_MAX + 1)

// Reader decodes the event stream of one session. A Reader is not safe for
// concurrent use; run one per session.
type Reader struct {
	session *Session
	resolve bool
	buf     []byte
	// pending holds decoded events not yet returned.
	pending []Event
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithResolve fills Event.Path from the paths registered for each watch.
// Renames of watched paths are not tracked, so the result can be stale.
func WithResolve() ReaderOption {
	return func(r *Reader) { r.resolve = true }
}

// NewReader returns a reader for the events of s.
func NewReader(s *Session, opts ...ReaderOption) (*Reader, error) {
	if s.Closed() {
		return nil, newError(CodeSessionClosed, opRead)
	}
	r := &Reader{
		session: s,
		buf:     make([]byte, readBufferSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Read returns the next event. On a non-blocking session it waits in the
// Go runtime poller and returns ctx.Err() once ctx is done. On a blocking
// session the wait occupies a thread and ctx is only checked between
// reads; Close still interrupts it.
//
// Read returns an error with CodeSessionClosed once the session is closed,
// including when Close interrupts a pending read.
func (r *Reader) Read(ctx context.Context) (Event, error) {
	for len(r.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		if err := r.fill(ctx); err != nil {
			return Event{}, err
		}
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}

func (r *Reader) fill(ctx context.Context) error {
	var (
		n   int
		err error
	)
	if r.session.flags.NonBlock {
		n, err = r.readStream(ctx)
	} else {
		n, err = r.session.readBlocking(r.buf)
	}

	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// A deadline left over from an earlier, already cancelled read.
		if f := r.session.stream(); f != nil {
			_ = f.SetReadDeadline(time.Time{})
		}
		return nil
	case errors.Is(err, os.ErrClosed):
		return newError(CodeSessionClosed, opRead)
	case err != nil:
		return r.session.fail(fromSyscall(opRead, err))
	}

	events, err := parseEvents(r.buf[:n])
	if err != nil {
		e := newError(CodeUnknown, opRead)
		e.cause = err
		return r.session.fail(e)
	}

	for i := range events {
		r.prepare(&events[i])
	}
	r.pending = append(r.pending, events...)
	return nil
}

func (r *Reader) readStream(ctx context.Context) (int, error) {
	f := r.session.stream()
	if f == nil {
		return 0, os.ErrClosed
	}

	stop := context.AfterFunc(ctx, func() {
		_ = f.SetReadDeadline(time.Now())
	})
	defer func() {
		if stop() {
			return
		}
		// The deadline fired; clear it for the next call.
		_ = f.SetReadDeadline(time.Time{})
	}()

	return f.Read(r.buf)
}

// readBlocking waits on a blocking session. It polls the channel together
// with the wake descriptor signalled by Close, and holds readMu so Close
// cannot release either descriptor while the syscall is in flight.
func (s *Session) readBlocking(buf []byte) (int, error) {
	s.readMu.RLock()
	defer s.readMu.RUnlock()

	for {
		if s.closing.Load() {
			return 0, os.ErrClosed
		}

		fds := []unix.PollFd{
			//nolint:gosec // G115: descriptors from inotify_init1 and eventfd fit in int32
			{Fd: int32(s.fd), Events: unix.POLLIN},
			//nolint:gosec // G115: see above
			{Fd: int32(s.wake), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, err
		}
		if fds[1].Revents != 0 {
			return 0, os.ErrClosed
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return 0, unix.EBADF
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(s.fd, buf)
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			continue
		}
		return n, err
	}
}

// prepare attaches session state to a decoded event and reconciles the
// descriptor table with watches the kernel removed.
func (r *Reader) prepare(ev *Event) {
	if info, ok := r.session.Lookup(ev.WD); ok {
		ev.Descriptor = info.Descriptor
		if r.resolve {
			ev.Path = resolvePath(info, ev.Name)
		}
	} else if r.resolve {
		ev.Path = ev.Name
	}
	if ev.Info.Has(Ignored) {
		r.session.release(ev.WD)
	}
	r.session.observer.EventDelivered(*ev)
}

// parseEvents decodes a buffer filled by read(2). The kernel only returns
// whole records, so a trailing fragment is reported as an error.
func parseEvents(buf []byte) ([]Event, error) {
	var events []Event
	offset := 0
	for offset < len(buf) {
		if len(buf)-offset < unix.SizeofInotifyEvent {
			return events, errShortRead
		}
		//nolint:gosec // G103: the record layout is fixed by the kernel ABI
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		start := offset + unix.SizeofInotifyEvent
		end := start + int(raw.Len)
		if end > len(buf) {
			return events, errShortRead
		}

		name := ""
		if raw.Len > 0 {
			name = string(buf[start : start+clen(buf[start:end])])
		}
		events = append(events, newEvent(raw.Wd, raw.Mask, raw.Cookie, name))
		offset = end
	}
	return events, nil
}

var errShortRead = errors.New("short read of inotify event record")

// clen returns the length of a NUL padded name.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}
