package inotify

import (
	"encoding/json"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Descriptor identifies one live watch within the Session that returned it.
// It is a value token: two descriptors are equal only if they come from the
// same session and name the same kernel watch. The kernel may hand out the
// same number again after a watch is cancelled, so descriptors must not be
// kept around after Cancel or Close.
type Descriptor struct {
	session uuid.UUID
	wd      int32
}

// WD returns the kernel's watch descriptor, for matching delivered events.
func (d Descriptor) WD() int32 { return d.wd }

// Session returns the ID of the session that owns the descriptor.
func (d Descriptor) Session() uuid.UUID { return d.session }

// IsZero reports whether d was never returned by a registration.
func (d Descriptor) IsZero() bool { return d.session == uuid.Nil }

func (d Descriptor) String() string {
	if d.IsZero() {
		return "wd=none"
	}
	return "wd=" + strconv.Itoa(int(d.wd))
}

// MarshalJSON encodes the descriptor as its watch number.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.wd)
}

// WatchInfo is a snapshot of one live watch as this session recorded it.
type WatchInfo struct {
	Descriptor Descriptor `json:"wd"`
	// Events is the category set the watch currently delivers.
	Events Op `json:"events"`
	// Behavior holds the flags the kernel keeps on the watch (OneShot,
	// ExclUnlink).
	Behavior Behavior `json:"behavior,omitempty"`
	// Paths lists every path registered against the watched object, in
	// registration order. Hard links and symlinks can make several paths
	// resolve to one watch.
	Paths []string `json:"paths"`
}

type entry struct {
	events   Op
	behavior Behavior
	paths    []string
}

// table tracks the watches a session believes are live, so cancellation
// can be validated locally before calling into the kernel.
type table struct {
	mu      sync.RWMutex
	session uuid.UUID
	entries map[int32]*entry
}

func newTable(session uuid.UUID) *table {
	return &table{
		session: session,
		entries: make(map[int32]*entry),
	}
}

// record applies a successful registration. The kernel returns the same wd
// when the path resolves to an already watched object: MaskAdd unions the
// categories into it, otherwise they are replaced. info is the entry as
// recorded.
func (t *table) record(wd int32, path string, m Mask) (info WatchInfo, prior Op, existed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, existed := t.entries[wd]
	if !existed {
		e = &entry{
			events:   m.Events,
			behavior: m.Behavior & persistentBehavior,
			paths:    []string{path},
		}
		t.entries[wd] = e
		return t.info(wd, e), 0, false
	}

	prior = e.events
	if m.Behavior.Has(MaskAdd) {
		e.events |= m.Events
		e.behavior |= m.Behavior & persistentBehavior
	} else {
		e.events = m.Events
		e.behavior = m.Behavior & persistentBehavior
	}
	if !slices.Contains(e.paths, path) {
		e.paths = append(e.paths, path)
	}
	return t.info(wd, e), prior, true
}

func (t *table) descriptor(wd int32) Descriptor {
	return Descriptor{session: t.session, wd: wd}
}

func (t *table) contains(d Descriptor) bool {
	if d.session != t.session {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[d.wd]
	return ok
}

func (t *table) lookup(wd int32) (WatchInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[wd]
	if !ok {
		return WatchInfo{}, false
	}
	return t.info(wd, e), true
}

// forget drops wd and reports whether it was live.
func (t *table) forget(wd int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[wd]; !ok {
		return false
	}
	delete(t.entries, wd)
	return true
}

func (t *table) snapshot() []WatchInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]WatchInfo, 0, len(t.entries))
	for wd, e := range t.entries {
		out = append(out, t.info(wd, e))
	}
	slices.SortFunc(out, func(a, b WatchInfo) int {
		return int(a.Descriptor.wd) - int(b.Descriptor.wd)
	})
	return out
}

func (t *table) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// reset drops every entry and returns how many there were.
func (t *table) reset() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	clear(t.entries)
	return n
}

func (t *table) info(wd int32, e *entry) WatchInfo {
	return WatchInfo{
		Descriptor: t.descriptor(wd),
		Events:     e.events,
		Behavior:   e.behavior,
		Paths:      slices.Clone(e.paths),
	}
}
