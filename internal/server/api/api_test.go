package api

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/falldetect/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

// seed creates a session with n confirmed events one minute apart.
func seed(t *testing.T, s *store.Store, n int) *store.Session {
	t.Helper()

	sess := &store.Session{Source: "camera:0", StartedAt: t0}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i+1) * time.Minute)
		ev := &store.FallEvent{SessionID: sess.ID, SuspectedAt: at, ConfirmedAt: at.Add(1200 * time.Millisecond)}
		if err := s.Events().Create(ev); err != nil {
			t.Fatalf("failed to create event: %v", err)
		}
	}
	return sess
}
