package store

import (
	"errors"
	"testing"
	"time"
)

func ptr(v float64) *float64 { return &v }

func createSession(t *testing.T, s *Store) *Session {
	t.Helper()
	sess := &Session{Source: "camera:0", StartedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess
}

func TestEventRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)
	repo := s.Events()

	suspected := sess.StartedAt.Add(10 * time.Minute)
	ev := &FallEvent{
		SessionID:        sess.ID,
		SuspectedAt:      suspected,
		ConfirmedAt:      suspected.Add(1200 * time.Millisecond),
		VerticalVelocity: ptr(0.02),
		TorsoAngle:       ptr(81.5),
		HipHeight:        ptr(0.91),
	}
	if err := repo.Create(ev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ev.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	got, err := repo.GetByID(ev.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d := diff(ev, got); d != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", d)
	}
	if !got.Open() {
		t.Error("new event should be open")
	}
}

func TestEventRepository_UnknownIndicators(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)

	ev := &FallEvent{SessionID: sess.ID, SuspectedAt: sess.StartedAt, ConfirmedAt: sess.StartedAt.Add(2 * time.Second)}
	if err := s.Events().Create(ev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.Events().GetByID(ev.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.VerticalVelocity != nil || got.TorsoAngle != nil || got.HipHeight != nil {
		t.Errorf("unknown indicators should stay nil, got %+v", got)
	}
}

func TestEventRepository_Resolve(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)
	repo := s.Events()

	ev := &FallEvent{SessionID: sess.ID, SuspectedAt: sess.StartedAt, ConfirmedAt: sess.StartedAt.Add(2 * time.Second)}
	if err := repo.Create(ev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first := ev.ConfirmedAt.Add(30 * time.Second)
	if err := repo.Resolve(ev.ID, first); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := repo.Resolve(ev.ID, first.Add(time.Minute)); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}

	got, err := repo.GetByID(ev.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Open() {
		t.Fatal("resolved event should not be open")
	}
	if d := diff(first, *got.ResetAt); d != "" {
		t.Errorf("ResetAt should keep the first reset (-want +got):\n%s", d)
	}

	if err := repo.Resolve("missing", first); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEventRepository_Lists(t *testing.T) {
	s := newTestStore(t)
	a := createSession(t, s)
	b := createSession(t, s)
	repo := s.Events()

	at := func(min int) time.Time { return a.StartedAt.Add(time.Duration(min) * time.Minute) }
	events := []*FallEvent{
		{ID: "a1", SessionID: a.ID, SuspectedAt: at(1), ConfirmedAt: at(1)},
		{ID: "b1", SessionID: b.ID, SuspectedAt: at(2), ConfirmedAt: at(2)},
		{ID: "a2", SessionID: a.ID, SuspectedAt: at(3), ConfirmedAt: at(3)},
	}
	for _, ev := range events {
		if err := repo.Create(ev); err != nil {
			t.Fatalf("Create(%s) error = %v", ev.ID, err)
		}
	}

	ids := func(evs []*FallEvent) []string {
		var out []string
		for _, ev := range evs {
			out = append(out, ev.ID)
		}
		return out
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if d := diff([]string{"a2", "b1", "a1"}, ids(all)); d != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", d)
	}

	latest, err := repo.List(1)
	if err != nil {
		t.Fatalf("List(1) error = %v", err)
	}
	if d := diff([]string{"a2"}, ids(latest)); d != "" {
		t.Errorf("List(1) mismatch (-want +got):\n%s", d)
	}

	bySession, err := repo.ListBySession(a.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if d := diff([]string{"a1", "a2"}, ids(bySession)); d != "" {
		t.Errorf("ListBySession() mismatch (-want +got):\n%s", d)
	}

	empty, err := repo.ListBySession("none")
	if err != nil {
		t.Fatalf("ListBySession(none) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListBySession(none) = %v, want empty", empty)
	}
}

func TestEventRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	sess := createSession(t, s)
	repo := s.Events()

	ev := &FallEvent{SessionID: sess.ID, SuspectedAt: sess.StartedAt, ConfirmedAt: sess.StartedAt}
	if err := repo.Create(ev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ev.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}
