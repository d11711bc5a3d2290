package inotify

import (
	"fmt"
	"regexp"
	"strings"
)

// Op is a set of event categories. The values match the kernel's IN_* event
// bits, so an Op can be requested on registration and compared against the
// categories delivered on an event.
type Op uint32

// Event categories.
const (
	// OpAccess indicates a file was accessed.
	OpAccess Op = 0x00000001
	// OpModify indicates a file was modified.
	OpModify Op = 0x00000002
	// OpAttrib indicates a watch target's metadata changed.
	OpAttrib Op = 0x00000004
	// OpCloseWrite indicates a file opened for writing was closed.
	OpCloseWrite Op = 0x00000008
	// OpCloseNoWrite indicates a file or directory not opened for writing was closed.
	OpCloseNoWrite Op = 0x00000010
	// OpOpen indicates a file or directory was opened.
	OpOpen Op = 0x00000020
	// OpMovedFrom is generated for the directory containing the old name on rename.
	OpMovedFrom Op = 0x00000040
	// OpMovedTo is generated for the directory containing the new name on rename.
	OpMovedTo Op = 0x00000080
	// OpCreate indicates a file or directory was created in a watched directory.
	OpCreate Op = 0x00000100
	// OpDelete indicates a file or directory was deleted from a watched directory.
	OpDelete Op = 0x00000200
	// OpDeleteSelf indicates the watched file or directory was itself deleted.
	OpDeleteSelf Op = 0x00000400
	// OpMoveSelf indicates the watched file or directory was itself moved.
	OpMoveSelf Op = 0x00000800

	// OpClose is OpCloseWrite | OpCloseNoWrite.
	OpClose = OpCloseWrite | OpCloseNoWrite
	// OpMove is OpMovedFrom | OpMovedTo.
	OpMove = OpMovedFrom | OpMovedTo
	// OpAll is every event category.
	OpAll Op = 0x00000fff
)

// Behavior is a set of registration flags. They change how a registration
// is applied and are never reported back on events.
type Behavior uint32

// Registration behaviors.
const (
	// OnlyDir watches the path only if it is a directory.
	OnlyDir Behavior = 0x01000000
	// DontFollow does not dereference the path if it is a symbolic link.
	DontFollow Behavior = 0x02000000
	// ExclUnlink stops events for children after they have been unlinked.
	ExclUnlink Behavior = 0x04000000
	// MaskCreate only registers the path if it is not already watched
	// (Linux 4.19 and later).
	MaskCreate Behavior = 0x10000000
	// MaskAdd merges the categories into an existing watch instead of
	// replacing them.
	MaskAdd Behavior = 0x20000000
	// OneShot removes the watch after its first event.
	OneShot Behavior = 0x80000000

	allBehavior = OnlyDir | DontFollow | ExclUnlink | MaskCreate | MaskAdd | OneShot

	// Behaviors the kernel keeps on the watch itself. The rest only apply
	// to the registration call.
	persistentBehavior = ExclUnlink | OneShot
)

// Info is the set of informational bits the kernel sets on delivered
// events. They are never legal on registration.
type Info uint32

// Informational bits.
const (
	// Unmount indicates the filesystem containing the watched object was unmounted.
	Unmount Info = 0x00002000
	// QOverflow indicates the event queue overflowed.
	QOverflow Info = 0x00004000
	// Ignored indicates the watch was removed, explicitly or by the kernel.
	Ignored Info = 0x00008000
	// IsDir indicates the subject of the event is a directory.
	IsDir Info = 0x40000000

	allInfo = Unmount | QOverflow | Ignored | IsDir
)

// Mask is what gets submitted on registration: the categories of interest
// plus the behavior flags for this call. MaskAdd and MaskCreate are
// independent bits and every combination of the two is kept as given.
type Mask struct {
	Events   Op
	Behavior Behavior
}

// Compose builds a Mask from event categories and behavior flags.
func Compose(events Op, behavior Behavior) Mask {
	return Mask{Events: events, Behavior: behavior}
}

// Raw returns the wire-level value passed to inotify_add_watch(2).
func (m Mask) Raw() uint32 {
	return uint32(m.Events) | uint32(m.Behavior)
}

// Validate reports whether the mask can be submitted for registration.
func (m Mask) Validate() error {
	if m.Events == 0 {
		return fmt.Errorf("mask %s requests no event categories", m)
	}
	if extra := m.Events &^ OpAll; extra != 0 {
		return fmt.Errorf("mask carries unknown event bits %#x", uint32(extra))
	}
	if info := Info(m.Behavior) & allInfo; info != 0 {
		return fmt.Errorf("mask carries informational bits %s", info)
	}
	if extra := m.Behavior &^ allBehavior; extra != 0 {
		return fmt.Errorf("mask carries unknown behavior bits %#x", uint32(extra))
	}
	return nil
}

// String returns the flag names of the mask joined with "|".
func (m Mask) String() string {
	if m.Behavior == 0 {
		return m.Events.String()
	}
	return m.Events.String() + "|" + m.Behavior.String()
}

// Decompose splits a mask delivered on an event into its event categories
// and informational bits. Bits belonging to neither are dropped.
func Decompose(raw uint32) (Op, Info) {
	return Op(raw) & OpAll, Info(raw) & allInfo
}

// Has reports whether any of the categories in other are set.
func (o Op) Has(other Op) bool { return o&other != 0 }

// Has reports whether any of the bits in other are set.
func (b Behavior) Has(other Behavior) bool { return b&other != 0 }

// Has reports whether any of the bits in other are set.
func (i Info) Has(other Info) bool { return i&other != 0 }

func (o Op) String() string       { return flagString(uint32(o), KindEvent) }
func (b Behavior) String() string { return flagString(uint32(b), KindBehavior) }
func (i Info) String() string     { return flagString(uint32(i), KindInfo) }

// MarshalText renders the set by name.
func (o Op) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// MarshalText renders the set by name.
func (b Behavior) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// MarshalText renders the set by name.
func (i Info) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// FlagKind tells which part of the mask a named flag belongs to.
type FlagKind int

// Flag kinds.
const (
	KindEvent FlagKind = iota
	KindBehavior
	KindInfo
)

func (k FlagKind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindBehavior:
		return "behavior"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Flag describes one named inotify flag.
type Flag struct {
	Name  string
	Value uint32
	Kind  FlagKind
	Help  string
	// Shown is false for flags that are not worth listing in a usage
	// message, either because they are delivered only or because a
	// front end sets them itself.
	Shown bool
}

// Unions are listed for parsing and help output; String only uses single bits.
var flags = []Flag{
	{"ACCESS", uint32(OpAccess), KindEvent, "File was accessed", true},
	{"ATTRIB", uint32(OpAttrib), KindEvent, "Metadata changed, eg. permissions", true},
	{"CLOSE_WRITE", uint32(OpCloseWrite), KindEvent, "File for writing was closed", true},
	{"CLOSE_NOWRITE", uint32(OpCloseNoWrite), KindEvent, "File or dir not opened for writing was closed", true},
	{"CREATE", uint32(OpCreate), KindEvent, "File/dir was created", true},
	{"DELETE", uint32(OpDelete), KindEvent, "File or dir was deleted", true},
	{"DELETE_SELF", uint32(OpDeleteSelf), KindEvent, "Watched file/dir was itself deleted", true},
	{"MODIFY", uint32(OpModify), KindEvent, "File was modified", true},
	{"MOVE_SELF", uint32(OpMoveSelf), KindEvent, "Watched file/dir was itself moved", true},
	{"MOVED_FROM", uint32(OpMovedFrom), KindEvent, "Generated for dir containing old filename when a file is renamed", true},
	{"MOVED_TO", uint32(OpMovedTo), KindEvent, "Generated for dir containing new filename when a file is renamed", true},
	{"OPEN", uint32(OpOpen), KindEvent, "File or dir was opened", true},
	{"MOVE", uint32(OpMove), KindEvent, "MOVED_FROM | MOVED_TO", true},
	{"CLOSE", uint32(OpClose), KindEvent, "CLOSE_WRITE | CLOSE_NOWRITE", true},
	{"ALL_EVENTS", uint32(OpAll), KindEvent, "Every event category", false},

	{"DONT_FOLLOW", uint32(DontFollow), KindBehavior, "Don't dereference pathname if it is a symbolic link", true},
	{"EXCL_UNLINK", uint32(ExclUnlink), KindBehavior, "Don't generate events after files have been unlinked", true},
	{"MASK_ADD", uint32(MaskAdd), KindBehavior, "Add flags to an existing watch", false},
	{"ONESHOT", uint32(OneShot), KindBehavior, "Only generate one event for this watch", true},
	{"ONLYDIR", uint32(OnlyDir), KindBehavior, "Watch pathname only if it is a dir", true},
	{"MASK_CREATE", uint32(MaskCreate), KindBehavior, "Only watch path if it isn't already being watched", true},

	{"IGNORED", uint32(Ignored), KindInfo, "Watch was removed", false},
	{"ISDIR", uint32(IsDir), KindInfo, "This event is a dir", false},
	{"Q_OVERFLOW", uint32(QOverflow), KindInfo, "Event queue overflowed", false},
	{"UNMOUNT", uint32(Unmount), KindInfo, "Filesystem containing watched object was unmounted", false},
}

// Flags returns the table of named flags in display order.
func Flags() []Flag {
	out := make([]Flag, len(flags))
	copy(out, flags)
	return out
}

// flagString names the single-bit flags of one kind set in v.
func flagString(v uint32, kind FlagKind) string {
	if v == 0 {
		return "0"
	}
	var names []string
	rest := v
	for _, f := range flags {
		if f.Kind != kind || f.Value&(f.Value-1) != 0 {
			continue
		}
		if v&f.Value != 0 {
			names = append(names, f.Name)
			rest &^= f.Value
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", rest))
	}
	return strings.Join(names, "|")
}

var maskSplitter = regexp.MustCompile(`[,\.|:\-\s]+`)

// ParseMask parses a list of flag names such as "create,delete|moved_to".
// Names are case-insensitive and may be separated by any of , . | : - or
// whitespace. Informational names are rejected since they cannot be
// requested.
func ParseMask(s string) (Mask, error) {
	var m Mask
	for _, tok := range maskSplitter.Split(strings.TrimSpace(s), -1) {
		if tok == "" {
			continue
		}
		f, ok := lookupFlag(tok)
		if !ok {
			return Mask{}, fmt.Errorf("unknown inotify flag %q", tok)
		}
		switch f.Kind {
		case KindEvent:
			m.Events |= Op(f.Value)
		case KindBehavior:
			m.Behavior |= Behavior(f.Value)
		default:
			return Mask{}, fmt.Errorf("flag %q is only reported on events", tok)
		}
	}
	if m.Events == 0 {
		return Mask{}, fmt.Errorf("mask %q names no event categories", s)
	}
	return m, nil
}

func lookupFlag(name string) (Flag, bool) {
	name = strings.ToUpper(name)
	for _, f := range flags {
		if f.Name == name {
			return f, true
		}
	}
	return Flag{}, false
}
