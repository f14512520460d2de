package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPost(t *testing.T) {
	var got Payload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := Config{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer token"}}
	status, err := post(cfg, Payload{
		Action:    "fall-confirmed",
		Status:    "FALL DETECTED",
		Timestamp: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Event:     json.RawMessage(`{"id":"ev-1"}`),
	})
	if err != nil {
		t.Fatalf("post() error = %v", err)
	}
	if status != http.StatusAccepted {
		t.Errorf("status = %d, want %d", status, http.StatusAccepted)
	}
	if got.Action != "fall-confirmed" || got.Status != "FALL DETECTED" {
		t.Errorf("payload = %+v", got)
	}
	if string(got.Event) != `{"id":"ev-1"}` {
		t.Errorf("event = %s", got.Event)
	}
	if auth != "Bearer token" {
		t.Errorf("Authorization header = %q", auth)
	}
}

func TestPost_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	status, err := post(Config{URL: srv.URL}, Payload{Action: "fall-confirmed"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
}
