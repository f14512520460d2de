package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/falldetect/internal/app"
	"github.com/ayusman/falldetect/internal/capture"
	"github.com/ayusman/falldetect/internal/detector"
	"github.com/ayusman/falldetect/internal/fall"
	"github.com/ayusman/falldetect/internal/scenario"
	"github.com/ayusman/falldetect/internal/server"
	"github.com/ayusman/falldetect/internal/server/api"
	"github.com/ayusman/falldetect/internal/store"
)

type stack struct {
	store *store.Store
	app   *app.App
	hub   *server.Hub
	ts    *httptest.Server
}

// newStack wires a store, an App playing sc and the HTTP server together
// the same way cmd/falldetect does.
func newStack(t *testing.T, sc scenario.Scenario) *stack {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	frames := sc.Frames()
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})

	det := detector.NewMockDetector()
	det.SetSequence(sc.Poses...)

	hub := server.NewHub()
	buf := server.NewFrameBuffer()

	a, err := app.New(app.Config{
		Camera:     capture.NewMockCamera(frames, false),
		Detector:   det,
		Thresholds: fall.DefaultThresholds(),
		Source:     "e2e:" + sc.Name,
		Store:      s,
		Frames:     buf,
		Hub:        hub,
		Clock:      app.FrameClock(time.Now(), scenario.FPS),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	srv := server.New(server.Config{Store: s, Controller: a, Frames: buf, Hub: hub})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &stack{store: s, app: a, hub: hub, ts: ts}
}

func (st *stack) getJSON(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := st.ts.Client().Get(st.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("GET %s decode error = %v", path, err)
	}
}

func TestE2E_FallWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := newStack(t, scenario.Fall())
	client := st.ts.Client()

	t.Run("RunVideo", func(t *testing.T) {
		if err := st.app.Run(context.Background(), nil); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	})

	t.Run("StatusConfirmed", func(t *testing.T) {
		var status api.Status
		st.getJSON(t, "/api/status", &status)
		if status.Phase != fall.PhaseConfirmed {
			t.Errorf("phase = %v, want confirmed", status.Phase)
		}
		if status.Indicators.HipHeight == nil || *status.Indicators.HipHeight < 0.8 {
			t.Errorf("hip height = %v, want low in the frame", status.Indicators.HipHeight)
		}
		if status.SessionID != st.app.SessionID() {
			t.Errorf("session_id = %q, want %q", status.SessionID, st.app.SessionID())
		}
	})

	var eventID string
	t.Run("EventRecorded", func(t *testing.T) {
		var listed struct {
			Events []store.FallEvent `json:"events"`
		}
		st.getJSON(t, "/api/events", &listed)
		if len(listed.Events) != 1 {
			t.Fatalf("got %d events, want 1", len(listed.Events))
		}
		eventID = listed.Events[0].ID
		if listed.Events[0].ResetAt != nil {
			t.Error("event should be open before reset")
		}

		var sess struct {
			ID      string            `json:"id"`
			Source  string            `json:"source"`
			EndedAt *time.Time        `json:"ended_at"`
			Events  []store.FallEvent `json:"events"`
		}
		st.getJSON(t, "/api/sessions/"+st.app.SessionID(), &sess)
		if sess.Source != "e2e:fall" || sess.EndedAt == nil {
			t.Errorf("session = %+v, want ended e2e:fall", sess)
		}
		if len(sess.Events) != 1 || sess.Events[0].ID != eventID {
			t.Errorf("session events = %+v", sess.Events)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		resp, err := client.Post(st.ts.URL+"/api/reset", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /api/reset error = %v", err)
		}
		var status api.Status
		json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if status.Phase != fall.PhaseNormal {
			t.Errorf("phase after reset = %v, want normal", status.Phase)
		}

		var ev store.FallEvent
		st.getJSON(t, "/api/events/"+eventID, &ev)
		if ev.ResetAt == nil {
			t.Error("event should be resolved after reset")
		}
	})

	t.Run("PauseDetection", func(t *testing.T) {
		resp, err := client.Post(st.ts.URL+"/api/detection", "application/json", strings.NewReader(`{"enabled":false}`))
		if err != nil {
			t.Fatalf("POST /api/detection error = %v", err)
		}
		resp.Body.Close()
		if st.app.IsEnabled() {
			t.Error("detection should be paused")
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(st.ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("GET /api/health error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
		resp.Body.Close()
	})
}

func TestE2E_LiveStatusOverWebSocket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := newStack(t, scenario.Fall())

	url := "ws" + strings.TrimPrefix(st.ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for st.hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := st.app.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var phases []fall.Phase
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(phases) < scenario.Fall().Len() {
		var status api.Status
		if err := conn.ReadJSON(&status); err != nil {
			t.Fatalf("ReadJSON() after %d messages error = %v", len(phases), err)
		}
		phases = append(phases, status.Phase)
	}

	sc := scenario.Fall()
	if phases[sc.SuspectedAt-1] != fall.PhaseNormal || phases[sc.SuspectedAt] != fall.PhaseSuspected {
		t.Errorf("suspicion should start at message %d: %v", sc.SuspectedAt, phases)
	}
	if phases[sc.ConfirmedAt-1] != fall.PhaseSuspected || phases[sc.ConfirmedAt] != fall.PhaseConfirmed {
		t.Errorf("confirmation should arrive at message %d: %v", sc.ConfirmedAt, phases)
	}
}

func TestE2E_StumbleLeavesNoEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	st := newStack(t, scenario.Stumble())
	if err := st.app.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var listed struct {
		Events []store.FallEvent `json:"events"`
	}
	st.getJSON(t, "/api/events", &listed)
	if len(listed.Events) != 0 {
		t.Errorf("got %d events for a stumble, want 0", len(listed.Events))
	}

	var status api.Status
	st.getJSON(t, "/api/status", &status)
	if status.Phase != fall.PhaseNormal {
		t.Errorf("phase = %v, want normal", status.Phase)
	}
}
