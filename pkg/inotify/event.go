package inotify

import (
	"fmt"
	"path/filepath"
)

// Event is one notification read from a session's event stream.
type Event struct {
	// WD is the kernel watch descriptor the event was queued for. It is -1
	// for queue overflow events.
	WD int32
	// Descriptor is the session's descriptor for WD, or the zero value if
	// the session no longer tracks the watch.
	Descriptor Descriptor
	// Mask is the raw mask as delivered.
	Mask uint32
	// Op holds the event categories of Mask.
	Op Op
	// Info holds the informational bits of Mask.
	Info Info
	// Cookie links the MovedFrom and MovedTo halves of a rename.
	Cookie uint32
	// Name is the name of the affected entry relative to the watched
	// directory; empty when the event concerns the watched object itself.
	Name string
	// Path is set when the reader resolves events; see WithResolve.
	Path string
}

func newEvent(wd int32, mask, cookie uint32, name string) Event {
	op, info := Decompose(mask)
	return Event{
		WD:     wd,
		Mask:   mask,
		Op:     op,
		Info:   info,
		Cookie: cookie,
		Name:   name,
	}
}

// Has reports whether the event carries any of the categories in op.
func (e Event) Has(op Op) bool { return e.Op.Has(op) }

// IsDir reports whether the subject of the event is a directory.
func (e Event) IsDir() bool { return e.Info.Has(IsDir) }

func (e Event) String() string {
	kind := "file"
	if e.IsDir() {
		kind = "dir"
	}
	flags := e.Op.String()
	if other := e.Info &^ IsDir; other != 0 {
		flags += "|" + other.String()
	}
	subject := e.Path
	if subject == "" {
		subject = e.Name
	}
	return fmt.Sprintf("Event(wd=%d %s %s %q)", e.WD, flags, kind, subject)
}

// resolvePath joins the first path registered for the event's watch with
// the event name. This races with renames of the watched path and only
// reflects what was registered, not where the object lives now.
func resolvePath(info WatchInfo, name string) string {
	if len(info.Paths) == 0 {
		return name
	}
	if name == "" {
		return info.Paths[0]
	}
	return filepath.Join(info.Paths[0], name)
}
