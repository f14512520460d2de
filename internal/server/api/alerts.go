package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/falldetect/internal/plugin"
	"github.com/ayusman/falldetect/internal/store"
)

// AlertHandler handles HTTP requests for alert bindings.
type AlertHandler struct {
	store   *store.Store
	plugins *plugin.Manager
}

// NewAlertHandler creates a new AlertHandler. When plugins is non-nil,
// bindings must name a discovered plugin that declares the action.
func NewAlertHandler(s *store.Store, plugins *plugin.Manager) *AlertHandler {
	return &AlertHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/alerts and /api/alerts/{id}.
func (h *AlertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := itemID(r.URL.Path, "/api/alerts")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createAlertRequest struct {
	Trigger    store.Trigger   `json:"trigger"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
}

type updateAlertRequest struct {
	Trigger    store.Trigger   `json:"trigger"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type listAlertsResponse struct {
	Alerts []*store.Alert `json:"alerts"`
}

func (h *AlertHandler) list(w http.ResponseWriter) {
	alerts, err := h.store.Alerts().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*store.Alert{}
	}
	writeJSON(w, http.StatusOK, listAlertsResponse{Alerts: alerts})
}

func (h *AlertHandler) get(w http.ResponseWriter, id string) {
	alert, err := h.store.Alerts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// create handles POST /api/alerts. An empty action_name defaults to the
// trigger's plugin action.
func (h *AlertHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if !req.Trigger.Valid() {
		writeError(w, http.StatusBadRequest, "trigger must be suspected, confirmed or reset")
		return
	}
	if req.PluginName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.ActionName == "" {
		req.ActionName = req.Trigger.Action()
	}
	if msg := h.checkPlugin(req.PluginName, req.ActionName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	alert := &store.Alert{
		Trigger:    req.Trigger,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    true,
	}
	if alert.Config == nil {
		alert.Config = json.RawMessage("{}")
	}

	if err := h.store.Alerts().Create(alert); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

func (h *AlertHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	alert, err := h.store.Alerts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}

	var req updateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Trigger != "" {
		if !req.Trigger.Valid() {
			writeError(w, http.StatusBadRequest, "trigger must be suspected, confirmed or reset")
			return
		}
		alert.Trigger = req.Trigger
	}
	if req.PluginName != "" {
		alert.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		alert.ActionName = req.ActionName
	}
	if req.Config != nil {
		alert.Config = req.Config
	}
	if req.Enabled != nil {
		alert.Enabled = *req.Enabled
	}
	if msg := h.checkPlugin(alert.PluginName, alert.ActionName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Alerts().Update(alert); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Alerts().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkPlugin returns an error message when the binding cannot run.
func (h *AlertHandler) checkPlugin(name, action string) string {
	if h.plugins == nil {
		return ""
	}
	p, err := h.plugins.Get(name)
	if err != nil {
		return "Plugin not found"
	}
	if !p.Manifest.Supports(action) {
		return "Plugin does not support action " + action
	}
	return ""
}
