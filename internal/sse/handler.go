package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	domainerrors "github.com/giannitedesco/minotaur/internal/errors"
	"github.com/giannitedesco/minotaur/internal/http/response"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// Handler handles SSE connections at GET /api/v1/events.
//
// Query parameters narrow the stream: wd (repeatable) keeps only events
// for those watches, events takes a mask such as "create,delete" and keeps
// only inotify events carrying one of its categories.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP handles the SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.Error(w, http.StatusMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		response.HandleError(w, err, h.logger)
		return
	}

	// Early client disconnect.
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)

	client, err := h.manager.Connect(filter)
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		response.InternalError(w, "failed to establish connection", h.logger)
		return
	}
	defer h.manager.Disconnect(client.ID)

	clientLogger := h.logger.With(slog.String("client_id", client.ID))

	if err := h.sendEvent(w, rc, "connected", map[string]string{
		"client_id": client.ID,
	}); err != nil {
		clientLogger.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()

	heartbeatTicker := time.NewTicker(h.manager.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				clientLogger.Debug("client closed by manager")
				return
			}
			if err := h.sendEvent(w, rc, string(event.Type), event); err != nil {
				clientLogger.Debug("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			heartbeat := NewHeartbeatEvent()
			if err := h.sendEvent(w, rc, string(heartbeat.Type), heartbeat); err != nil {
				clientLogger.Debug("client disconnected during heartbeat")
				return
			}

		case <-client.Done:
			clientLogger.Debug("client closed by manager")
			return

		case <-ctx.Done():
			clientLogger.Debug("client context canceled")
			return
		}
	}
}

// sendEvent writes one SSE frame and flushes it.
func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	// The server's write timeout would cut the stream, so every write
	// pushes the deadline past the next heartbeat.
	if err := rc.SetWriteDeadline(time.Now().Add(h.manager.heartbeatInterval + writeDeadlineSlack)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}

	return rc.Flush()
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()

	for _, raw := range q["wd"] {
		wd, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || wd <= 0 {
			return Filter{}, domainerrors.ValidationWithDetails("invalid filter",
				map[string]string{"wd": fmt.Sprintf("%q is not a watch descriptor", raw)})
		}
		if f.WDs == nil {
			f.WDs = make(map[int32]bool)
		}
		f.WDs[int32(wd)] = true
	}

	if raw := q.Get("events"); raw != "" {
		mask, err := inotify.ParseMask(raw)
		if err != nil {
			return Filter{}, domainerrors.ValidationWithDetails("invalid filter",
				map[string]string{"events": err.Error()})
		}
		f.Ops = mask.Events
	}

	return f, nil
}
