package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// FallEvent is a confirmed fall. Indicator values are nil when they were
// unknown at confirmation time.
type FallEvent struct {
	ID               string     `json:"id"`
	SessionID        string     `json:"session_id"`
	SuspectedAt      time.Time  `json:"suspected_at"`
	ConfirmedAt      time.Time  `json:"confirmed_at"`
	ResetAt          *time.Time `json:"reset_at,omitempty"`
	VerticalVelocity *float64   `json:"vertical_velocity,omitempty"`
	TorsoAngle       *float64   `json:"torso_angle,omitempty"`
	HipHeight        *float64   `json:"hip_height,omitempty"`
}

// Open reports whether the event has not been reset yet.
func (e *FallEvent) Open() bool {
	return e.ResetAt == nil
}

// EventRepository provides CRUD operations for fall events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the fall event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

const eventColumns = `id, session_id, suspected_at, confirmed_at, reset_at,
	vertical_velocity, torso_angle, hip_height`

// Create inserts a new fall event. An empty ID is filled with a UUID.
func (r *EventRepository) Create(e *FallEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	_, err := r.db.Exec(
		`INSERT INTO fall_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.SuspectedAt, e.ConfirmedAt, nullTime(e.ResetAt),
		nullFloat(e.VerticalVelocity), nullFloat(e.TorsoAngle), nullFloat(e.HipHeight),
	)
	return err
}

// Resolve records when the fall was reset. An already resolved event keeps
// its first reset time.
func (r *EventRepository) Resolve(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE fall_events SET reset_at = COALESCE(reset_at, ?) WHERE id = ?`, at, id,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// GetByID retrieves a fall event by its ID.
func (r *EventRepository) GetByID(id string) (*FallEvent, error) {
	row := r.db.QueryRow(`SELECT `+eventColumns+` FROM fall_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// List returns the most recent events first. limit <= 0 returns all.
func (r *EventRepository) List(limit int) ([]*FallEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(`SELECT `+eventColumns+` FROM fall_events
		ORDER BY confirmed_at DESC LIMIT ?`, limit)
}

// ListBySession returns a session's events in the order they happened.
func (r *EventRepository) ListBySession(sessionID string) ([]*FallEvent, error) {
	return r.query(`SELECT `+eventColumns+` FROM fall_events
		WHERE session_id = ? ORDER BY confirmed_at ASC`, sessionID)
}

// Delete removes a fall event by its ID.
func (r *EventRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM fall_events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func (r *EventRepository) query(q string, args ...any) ([]*FallEvent, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*FallEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func scanEvent(s scanner) (*FallEvent, error) {
	e := &FallEvent{}
	var (
		reset           sql.NullTime
		vel, angle, hip sql.NullFloat64
	)
	err := s.Scan(&e.ID, &e.SessionID, &e.SuspectedAt, &e.ConfirmedAt, &reset, &vel, &angle, &hip)
	if err != nil {
		return nil, err
	}
	if reset.Valid {
		e.ResetAt = &reset.Time
	}
	e.VerticalVelocity = floatPtr(vel)
	e.TorsoAngle = floatPtr(angle)
	e.HipHeight = floatPtr(hip)
	return e, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
