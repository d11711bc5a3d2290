// Package sse streams inotify events and watch changes to HTTP clients as
// Server-Sent Events.
package sse

import (
	"time"

	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventInotify carries one event read from the session.
	EventInotify EventType = "inotify.event"
	// EventOverflow reports that the kernel queue overflowed and events
	// were lost.
	EventOverflow EventType = "inotify.overflow"

	// EventWatchAdded represents a new watch.
	EventWatchAdded EventType = "watch.added"
	// EventWatchUpdated represents a registration that changed an
	// existing watch's mask.
	EventWatchUpdated EventType = "watch.updated"
	// EventWatchRemoved represents a cancelled watch.
	EventWatchRemoved EventType = "watch.removed"
	// EventWatchExpired represents a watch the kernel removed on its own.
	EventWatchExpired EventType = "watch.expired"

	// EventSessionClosed is sent once when the session closes.
	EventSessionClosed EventType = "session.closed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// WD is the watch the event belongs to, or 0 for events about the
	// session as a whole. Clients filter on it.
	WD int32 `json:"-"`
	// Op is the category set of an inotify event. Clients filter on it.
	Op inotify.Op `json:"-"`
}

// InotifyEventData is the data payload for inotify events.
type InotifyEventData struct {
	WD     int32        `json:"wd"`
	Events inotify.Op   `json:"events"`
	Info   inotify.Info `json:"info,omitempty"`
	Cookie uint32       `json:"cookie,omitempty"`
	Name   string       `json:"name,omitempty"`
	Path   string       `json:"path,omitempty"`
}

// WatchEventData is the data payload for watch events.
type WatchEventData struct {
	WD   int32  `json:"wd"`
	Mask string `json:"mask,omitempty"`
}

// SessionClosedEventData is the data payload for session.closed events.
type SessionClosedEventData struct {
	Session  string `json:"session"`
	Released int    `json:"released"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewInotifyEvent wraps an event read from the session. Queue overflows
// become EventOverflow and reach every client.
func NewInotifyEvent(ev inotify.Event) Event {
	if ev.Info.Has(inotify.QOverflow) {
		return Event{
			Type:      EventOverflow,
			Data:      InotifyEventData{WD: ev.WD, Info: ev.Info},
			Timestamp: time.Now(),
		}
	}
	return Event{
		Type: EventInotify,
		Data: InotifyEventData{
			WD:     ev.WD,
			Events: ev.Op,
			Info:   ev.Info,
			Cookie: ev.Cookie,
			Name:   ev.Name,
			Path:   ev.Path,
		},
		WD:        ev.WD,
		Op:        ev.Op,
		Timestamp: time.Now(),
	}
}

// NewWatchEvent creates a watch.* event. mask is empty for removals.
func NewWatchEvent(t EventType, wd int32, mask string) Event {
	return Event{
		Type:      t,
		Data:      WatchEventData{WD: wd, Mask: mask},
		WD:        wd,
		Timestamp: time.Now(),
	}
}

// NewSessionClosedEvent creates a session.closed event.
func NewSessionClosedEvent(session string, released int) Event {
	return Event{
		Type:      EventSessionClosed,
		Data:      SessionClosedEventData{Session: session, Released: released},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
