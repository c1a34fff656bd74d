package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinicdesk/clinicdesk/internal/events"
	"github.com/clinicdesk/clinicdesk/internal/tenancy"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

const wsWriteTimeout = 5 * time.Second

// CalendarWSHandler streams booking change events to calendar views so they
// refresh after commits from any session.
type CalendarWSHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewCalendarWSHandler creates the handler.
func NewCalendarWSHandler(hub *events.Hub, logger *logging.Logger) *CalendarWSHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarWSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

type calendarEventMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Serve handles GET /ws/calendar.
func (h *CalendarWSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing org context", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("calendar ws upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, cancel := h.hub.Subscribe(orgID, 32)
	defer cancel()

	// Reader goroutine notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(calendarEventMessage{Type: entry.Type, Payload: entry.Payload}); err != nil {
				h.logger.Debug("calendar ws write failed", "org_id", orgID, "error", err)
				return
			}
		}
	}
}
