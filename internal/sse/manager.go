package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giannitedesco/minotaur/internal/id"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

const (
	eventBuffer        = 1000
	clientBuffer       = 100
	defaultHeartbeat   = 30 * time.Second
	writeDeadlineSlack = 30 * time.Second
)

// Filter selects the events a client receives. The zero Filter passes
// everything.
type Filter struct {
	// WDs limits watch-specific events to these descriptors.
	WDs map[int32]bool
	// Ops limits inotify events to those carrying any of these categories.
	Ops inotify.Op
}

func (f Filter) matches(e Event) bool {
	if e.WD > 0 && len(f.WDs) > 0 && !f.WDs[e.WD] {
		return false
	}
	if e.Type == EventInotify && f.Ops != 0 && !e.Op.Has(f.Ops) {
		return false
	}
	return true
}

// Client represents a connected SSE client.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	Filter      Filter
}

// Manager manages SSE connections and broadcasts events. It implements
// inotify.Observer so a session can feed it directly.
type Manager struct {
	clients           map[string]*Client
	events            chan Event
	logger            *slog.Logger
	wg                sync.WaitGroup
	heartbeatInterval time.Duration
	mu                sync.RWMutex

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

var _ inotify.Observer = (*Manager)(nil)

// NewManager creates a new SSE Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		clients:           make(map[string]*Client),
		events:            make(chan Event, eventBuffer),
		logger:            logger,
		heartbeatInterval: defaultHeartbeat,
	}
}

// SetHeartbeatInterval changes how often handlers send keepalives.
func (m *Manager) SetHeartbeatInterval(d time.Duration) {
	m.heartbeatInterval = d
}

// Start launches the broadcast loop and returns. The loop runs until ctx is
// done or Shutdown drains the queue. Call it once.
func (m *Manager) Start(ctx context.Context) {
	// Counted before the goroutine exists so a Shutdown right after Start
	// still waits for the drain.
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	m.logger.Debug("SSE manager starting")
	defer m.closeAllClients()

	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(event)

		case <-ctx.Done():
			m.logger.Debug("SSE manager stopping")
			return
		}
	}
}

// Shutdown stops accepting events and waits for the queued ones to be
// broadcast, then disconnects every client.
func (m *Manager) Shutdown(ctx context.Context) error {
	// Closing under the write lock keeps Emit from sending on a closed
	// channel.
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("SSE event drain timeout, some events may be lost")
	}

	m.closeAllClients()
	return nil
}

// broadcast sends an event to every client whose filter accepts it.
func (m *Manager) broadcast(event Event) {
	var delivered, dropped, filtered int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		if !client.Filter.matches(event) {
			filtered++
			continue
		}

		// Slow clients lose events rather than stall the others.
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", client.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("filtered", filtered),
				slog.Int("dropped", dropped)))
	}
}

// Connect registers a new SSE client.
func (m *Manager) Connect(filter Filter) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		Filter:      filter,
		EventChan:   make(chan Event, clientBuffer),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	totalClients := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.Int("total_clients", totalClients))
	return client, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	totalClients := len(m.clients)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", totalClients))
}

// Emit queues an event for broadcasting. It never blocks; events are
// dropped when the queue is full or the manager is shut down.
func (m *Manager) Emit(evt Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}

	select {
	case m.events <- evt:
	default:
		m.logger.Error("SSE event channel full, dropping event",
			slog.String("event_type", string(evt.Type)))
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// closeAllClients closes all client connections.
func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.clients) == 0 {
		return
	}
	for _, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
	}
	m.clients = make(map[string]*Client)

	m.logger.Info("all SSE clients disconnected")
}

// SessionOpened implements inotify.Observer.
func (m *Manager) SessionOpened(uuid.UUID) {}

// SessionClosed implements inotify.Observer.
func (m *Manager) SessionClosed(id uuid.UUID, released int) {
	m.Emit(NewSessionClosedEvent(id.String(), released))
}

// WatchRegistered implements inotify.Observer.
func (m *Manager) WatchRegistered(d inotify.Descriptor, mask inotify.Mask, existed bool) {
	t := EventWatchAdded
	if existed {
		t = EventWatchUpdated
	}
	m.Emit(NewWatchEvent(t, d.WD(), mask.String()))
}

// WatchCancelled implements inotify.Observer.
func (m *Manager) WatchCancelled(d inotify.Descriptor) {
	m.Emit(NewWatchEvent(EventWatchRemoved, d.WD(), ""))
}

// WatchExpired implements inotify.Observer.
func (m *Manager) WatchExpired(d inotify.Descriptor) {
	m.Emit(NewWatchEvent(EventWatchExpired, d.WD(), ""))
}

// OperationFailed implements inotify.Observer.
func (m *Manager) OperationFailed(string, inotify.Code) {}

// EventDelivered implements inotify.Observer.
func (m *Manager) EventDelivered(ev inotify.Event) {
	m.Emit(NewInotifyEvent(ev))
}
