// Package watcher runs the read loop of an inotify session and delivers
// filtered events on a channel.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// Watcher owns an inotify session and forwards its events.
type Watcher struct {
	session *inotify.Session
	reader  *inotify.Reader
	logger  *slog.Logger
	opts    Options

	events chan inotify.Event
	errors chan error

	done     chan struct{}
	stopOnce sync.Once
	started  sync.Once
}

// New creates a watcher for session. The watcher takes ownership of the
// session and closes it on Stop.
func New(session *inotify.Session, logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	var readerOpts []inotify.ReaderOption
	if opts.Resolve {
		readerOpts = append(readerOpts, inotify.WithResolve())
	}
	reader, err := inotify.NewReader(session, readerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	return &Watcher{
		session: session,
		reader:  reader,
		logger:  logger,
		opts:    opts,
		events:  make(chan inotify.Event, opts.Buffer),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch registers path with mask on the watcher's session.
func (w *Watcher) Watch(path string, mask inotify.Mask) (inotify.Descriptor, error) {
	return w.session.Register(path, mask)
}

// Unwatch cancels a watch returned by Watch.
func (w *Watcher) Unwatch(d inotify.Descriptor) error {
	return w.session.Cancel(d)
}

// Session returns the underlying session.
func (w *Watcher) Session() *inotify.Session {
	return w.session
}

// Start reads events until ctx is cancelled, Stop is called, or reading
// fails. It blocks until then and may only be called once.
//
// On a blocking session cancelling ctx does not interrupt a parked read;
// the read loop exits with the next event or when Stop closes the session.
func (w *Watcher) Start(ctx context.Context) error {
	err := errors.New("watcher already started")
	w.started.Do(func() {
		err = nil
		loopDone := make(chan struct{})
		go func() {
			defer close(loopDone)
			w.readEvents(ctx)
		}()

		select {
		case <-ctx.Done():
		case <-w.done:
		case <-loopDone:
		}
	})
	return err
}

func (w *Watcher) readEvents(ctx context.Context) {
	defer close(w.events)

	for {
		ev, err := w.reader.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, inotify.ErrSessionClosed) {
				return
			}
			w.logger.Error("failed to read inotify events", "error", err)
			w.emitError(err)
			return
		}

		if ev.Info.Has(inotify.QOverflow) {
			w.logger.Warn("inotify queue overflowed, events were lost")
		}
		if w.opts.shouldIgnore(ev) {
			continue
		}

		select {
		case w.events <- ev:
		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("dropping watcher error, channel full", "error", err)
	}
}

// Stop closes the session, which ends the read loop. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.session.Close()
	})
	return err
}

// Events returns the channel of forwarded events. It is closed when the
// read loop ends.
func (w *Watcher) Events() <-chan inotify.Event {
	return w.events
}

// Errors returns the channel of read errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}
