package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/falldetect/internal/fall"
)

// Indicators is the JSON form of a fall.Snapshot. Unknown values are null.
type Indicators struct {
	VerticalVelocity *float64 `json:"vertical_velocity"`
	TorsoAngle       *float64 `json:"torso_angle"`
	HipHeight        *float64 `json:"hip_height"`
	HighVelocity     bool     `json:"high_velocity"`
	Horizontal       bool     `json:"horizontal"`
	LowHeight        bool     `json:"low_height"`
}

// Status is the live detection status pushed to dashboards.
type Status struct {
	Label      string     `json:"label"`
	Phase      fall.Phase `json:"phase"`
	Present    bool       `json:"present"`
	Enabled    bool       `json:"enabled"`
	Elapsed    float64    `json:"elapsed_seconds"`
	SessionID  string     `json:"session_id,omitempty"`
	Indicators Indicators `json:"indicators"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewStatus builds a status from a tick result.
func NewStatus(res fall.Result, at time.Time) Status {
	s := res.Snapshot
	return Status{
		Label:   fall.Label(res),
		Phase:   res.State.Phase,
		Present: res.Present,
		Elapsed: res.Elapsed.Seconds(),
		Indicators: Indicators{
			VerticalVelocity: s.VerticalVelocity.Ptr(),
			TorsoAngle:       s.TorsoAngle.Ptr(),
			HipHeight:        s.HipHeight.Ptr(),
			HighVelocity:     s.HighVelocity,
			Horizontal:       s.Horizontal,
			LowHeight:        s.LowHeight,
		},
		Timestamp: at,
	}
}

// Controller is the running detection session driven by the API.
type Controller interface {
	Status() Status
	Reset()
	SetEnabled(enabled bool)
}

// StatusHandler serves the live status and the reset and toggle commands.
//
//	GET  /api/status
//	POST /api/reset
//	POST /api/detection {"enabled": bool}
type StatusHandler struct {
	ctrl Controller
}

// NewStatusHandler creates a StatusHandler for ctrl.
func NewStatusHandler(ctrl Controller) *StatusHandler {
	return &StatusHandler{ctrl: ctrl}
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/status":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Status())

	case "/api/reset":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ctrl.Reset()
		writeJSON(w, http.StatusOK, h.ctrl.Status())

	case "/api/detection":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		h.ctrl.SetEnabled(*req.Enabled)
		writeJSON(w, http.StatusOK, h.ctrl.Status())

	default:
		http.NotFound(w, r)
	}
}
