package inotify

import (
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// SessionFlags are the inotify_init1(2) flags a session is created with.
type SessionFlags struct {
	// NonBlock makes reads of the event stream return instead of blocking
	// the thread. Reader relies on it to honor context cancellation.
	NonBlock bool
	// CloseOnExec closes the notify channel in child processes after exec.
	CloseOnExec bool
}

// Capabilities describes optional kernel features. It is detected once when
// the session is opened.
type Capabilities struct {
	// Kernel is the running kernel release, e.g. "6.8.0-45-generic".
	Kernel string
	// MaskCreate is true when the kernel understands IN_MASK_CREATE.
	MaskCreate bool
}

// Observer is told about session activity. Implementations must be safe
// for concurrent use and must not call back into the session.
type Observer interface {
	SessionOpened(id uuid.UUID)
	SessionClosed(id uuid.UUID, released int)
	WatchRegistered(d Descriptor, m Mask, existed bool)
	WatchCancelled(d Descriptor)
	// WatchExpired reports a watch the kernel removed on its own, found
	// either through an IN_IGNORED event or a failed Cancel.
	WatchExpired(d Descriptor)
	OperationFailed(op string, code Code)
	EventDelivered(ev Event)
}

type nopObserver struct{}

func (nopObserver) SessionOpened(uuid.UUID)                {}
func (nopObserver) SessionClosed(uuid.UUID, int)           {}
func (nopObserver) WatchRegistered(Descriptor, Mask, bool) {}
func (nopObserver) WatchCancelled(Descriptor)              {}
func (nopObserver) WatchExpired(Descriptor)                {}
func (nopObserver) OperationFailed(string, Code)           {}
func (nopObserver) EventDelivered(Event)                   {}

// MultiObserver returns an Observer that reports to each of observers in
// order.
func MultiObserver(observers ...Observer) Observer {
	return multiObserver(slices.Clone(observers))
}

type multiObserver []Observer

func (m multiObserver) SessionOpened(id uuid.UUID) {
	for _, o := range m {
		o.SessionOpened(id)
	}
}

func (m multiObserver) SessionClosed(id uuid.UUID, released int) {
	for _, o := range m {
		o.SessionClosed(id, released)
	}
}

func (m multiObserver) WatchRegistered(d Descriptor, mask Mask, existed bool) {
	for _, o := range m {
		o.WatchRegistered(d, mask, existed)
	}
}

func (m multiObserver) WatchCancelled(d Descriptor) {
	for _, o := range m {
		o.WatchCancelled(d)
	}
}

func (m multiObserver) WatchExpired(d Descriptor) {
	for _, o := range m {
		o.WatchExpired(d)
	}
}

func (m multiObserver) OperationFailed(op string, code Code) {
	for _, o := range m {
		o.OperationFailed(op, code)
	}
}

func (m multiObserver) EventDelivered(ev Event) {
	for _, o := range m {
		o.EventDelivered(ev)
	}
}

// Option configures the ambient parts of a session: logging, observation
// and capability detection. They never change registration semantics.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	observer     Observer
	capabilities *Capabilities
}

// WithLogger sets the logger. Session activity is logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver sets an observer, typically a metrics collector.
func WithObserver(observer Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithCapabilities replaces the detected capabilities.
func WithCapabilities(c Capabilities) Option {
	return func(o *options) { o.capabilities = &c }
}

// setDefaults applies default values to unset options.
func (o *options) setDefaults() {
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
}
