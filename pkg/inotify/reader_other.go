//go:build !linux

package inotify

import "context"

// Reader decodes the event stream of one session. It is only functional
// on Linux.
type Reader struct{}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithResolve fills Event.Path from the paths registered for each watch.
func WithResolve() ReaderOption { return func(*Reader) {} }

// NewReader fails with CodeUnsupported outside Linux.
func NewReader(*Session, ...ReaderOption) (*Reader, error) {
	return nil, newError(CodeUnsupported, opRead)
}

// Read fails with CodeUnsupported outside Linux.
func (*Reader) Read(context.Context) (Event, error) {
	return Event{}, newError(CodeUnsupported, opRead)
}
