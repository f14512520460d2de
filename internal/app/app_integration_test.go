package app

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ayusman/falldetect/internal/fall"
	"github.com/ayusman/falldetect/internal/plugin"
	"github.com/ayusman/falldetect/internal/scenario"
	"github.com/ayusman/falldetect/internal/store"
)

// recorderPlugin installs a plugin that appends every request it receives to
// requests.log in its own directory.
func recorderPlugin(t *testing.T, actions ...string) (*plugin.Manager, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	root := t.TempDir()
	dir := filepath.Join(root, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	manifest, err := json.Marshal(plugin.Manifest{
		Name:       "recorder",
		Version:    "1.0.0",
		Executable: "recorder.sh",
		Actions:    actions,
	})
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	script := "#!/bin/sh\ncat >> requests.log\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "recorder.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	mgr := plugin.NewManager(root)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return mgr, filepath.Join(dir, "requests.log")
}

func readRequests(t *testing.T, path string) []plugin.Request {
	t.Helper()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to open request log: %v", err)
	}
	defer f.Close()

	var reqs []plugin.Request
	dec := json.NewDecoder(f)
	for {
		var req plugin.Request
		if err := dec.Decode(&req); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func TestApp_Alerts_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	mgr, logPath := recorderPlugin(t, plugin.ActionFallConfirmed, plugin.ActionFallReset)
	h := newHarness(t, scenario.Fall(), func(c *Config) { c.Plugins = mgr })

	for _, trigger := range []store.Trigger{store.TriggerConfirmed, store.TriggerReset} {
		err := h.store.Alerts().Create(&store.Alert{
			Trigger:    trigger,
			PluginName: "recorder",
			Config:     json.RawMessage(`{"channel":"family"}`),
			Enabled:    true,
		})
		if err != nil {
			t.Fatalf("Alerts().Create() error = %v", err)
		}
	}

	h.run(t)
	h.app.WaitAlerts()

	reqs := readRequests(t, logPath)
	if len(reqs) != 1 {
		t.Fatalf("got %d plugin requests, want 1 per confirmation", len(reqs))
	}
	req := reqs[0]
	if req.Action != plugin.ActionFallConfirmed {
		t.Errorf("action = %q, want %q", req.Action, plugin.ActionFallConfirmed)
	}
	if req.SessionID != h.app.SessionID() {
		t.Errorf("session_id = %q, want %q", req.SessionID, h.app.SessionID())
	}
	if !strings.Contains(req.Status, "FALL DETECTED") {
		t.Errorf("status = %q", req.Status)
	}
	if string(req.Config) != `{"channel":"family"}` {
		t.Errorf("config = %s", req.Config)
	}

	var ev store.FallEvent
	if err := json.Unmarshal(req.Event, &ev); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	stored, err := h.store.Events().ListBySession(h.app.SessionID())
	if err != nil || len(stored) != 1 {
		t.Fatalf("ListBySession() = %v, %v", stored, err)
	}
	if ev.ID != stored[0].ID {
		t.Errorf("event id = %q, want %q", ev.ID, stored[0].ID)
	}

	h.app.Reset()
	h.app.WaitAlerts()

	reqs = readRequests(t, logPath)
	if len(reqs) != 2 || reqs[1].Action != plugin.ActionFallReset {
		t.Fatalf("expected a reset request after the confirmation, got %+v", reqs)
	}
}

func TestApp_Alerts_DisabledAlertDoesNotFire(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	mgr, logPath := recorderPlugin(t, plugin.ActionFallConfirmed)
	h := newHarness(t, scenario.Fall(), func(c *Config) { c.Plugins = mgr })

	err := h.store.Alerts().Create(&store.Alert{
		Trigger:    store.TriggerConfirmed,
		PluginName: "recorder",
		Enabled:    false,
	})
	if err != nil {
		t.Fatalf("Alerts().Create() error = %v", err)
	}

	h.run(t)
	h.app.WaitAlerts()

	if reqs := readRequests(t, logPath); len(reqs) != 0 {
		t.Errorf("disabled alert fired %d times", len(reqs))
	}
}

func TestApp_Alerts_WithoutStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	mgr, logPath := recorderPlugin(t, plugin.ActionFallSuspected)
	h := newHarness(t, scenario.Stumble(), func(c *Config) {
		c.Store = nil
		c.Plugins = mgr
	})

	h.run(t)
	h.app.WaitAlerts()

	reqs := readRequests(t, logPath)
	if len(reqs) != 1 {
		t.Fatalf("got %d plugin requests, want 1", len(reqs))
	}
	if reqs[0].Action != plugin.ActionFallSuspected {
		t.Errorf("action = %q, want %q", reqs[0].Action, plugin.ActionFallSuspected)
	}
	if len(reqs[0].Event) != 0 {
		t.Errorf("suspicion should carry no event, got %s", reqs[0].Event)
	}
}

func TestApp_Alerts_NoneAfterClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	mgr, logPath := recorderPlugin(t, plugin.ActionFallConfirmed, plugin.ActionFallReset)
	h := newHarness(t, scenario.Fall(), func(c *Config) { c.Plugins = mgr })
	for _, trigger := range []store.Trigger{store.TriggerConfirmed, store.TriggerReset} {
		if err := h.store.Alerts().Create(&store.Alert{Trigger: trigger, PluginName: "recorder", Enabled: true}); err != nil {
			t.Fatalf("Alerts().Create() error = %v", err)
		}
	}

	h.run(t)
	if err := h.app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A reset arriving from the API after shutdown still clears the state.
	h.app.Reset()
	h.app.WaitAlerts()

	if got := h.app.Phase(); got != fall.PhaseNormal {
		t.Errorf("phase after reset = %v, want normal", got)
	}
	reqs := readRequests(t, logPath)
	if len(reqs) != 1 || reqs[0].Action != plugin.ActionFallConfirmed {
		t.Errorf("requests after close = %+v, want only the confirmation", reqs)
	}
}
