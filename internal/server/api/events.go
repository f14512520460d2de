package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/falldetect/internal/store"
)

// DefaultListLimit caps list endpoints when no ?limit= is given.
const DefaultListLimit = 100

// EventHandler handles HTTP requests for recorded fall events.
type EventHandler struct {
	store *store.Store
}

// NewEventHandler creates a new EventHandler with the given store.
func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

type listEventsResponse struct {
	Events []*store.FallEvent `json:"events"`
}

// ServeHTTP routes /api/events and /api/events/{id}.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := itemID(r.URL.Path, "/api/events")

	if id == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/events[?session=ID][&limit=N].
func (h *EventHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		events []*store.FallEvent
		err    error
	)
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		events, err = h.store.Events().ListBySession(sessionID)
	} else {
		limit, ok := limitParam(r, DefaultListLimit)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		events, err = h.store.Events().List(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	if events == nil {
		events = []*store.FallEvent{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: events})
}

func (h *EventHandler) get(w http.ResponseWriter, id string) {
	ev, err := h.store.Events().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EventHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Events().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
