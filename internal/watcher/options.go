package watcher

import (
	"path/filepath"
	"strings"

	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// DefaultBuffer is the events channel capacity used when none is set.
const DefaultBuffer = 100

// Options configures which events the watcher forwards.
type Options struct {
	// IgnorePatterns are filepath.Match globs tested against the event's
	// entry name.
	IgnorePatterns []string
	// IgnoreHidden drops events for entries whose name starts with a dot.
	IgnoreHidden bool
	// Resolve fills Event.Path.
	Resolve bool
	// Buffer is the capacity of the events channel.
	Buffer int
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
}

// shouldIgnore reports whether ev is filtered out. Events about the watched
// object itself and queue overflows are always forwarded.
func (o *Options) shouldIgnore(ev inotify.Event) bool {
	if ev.Name == "" || ev.Info.Has(inotify.QOverflow) {
		return false
	}

	base := filepath.Base(ev.Name)
	if o.IgnoreHidden && strings.HasPrefix(base, ".") {
		return true
	}

	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}
