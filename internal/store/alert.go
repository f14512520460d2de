package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trigger names the fall state change that fires an alert.
type Trigger string

const (
	// TriggerSuspected fires when a potential fall starts being timed.
	TriggerSuspected Trigger = "suspected"
	// TriggerConfirmed fires when a fall is confirmed.
	TriggerConfirmed Trigger = "confirmed"
	// TriggerReset fires when a confirmed fall is manually reset.
	TriggerReset Trigger = "reset"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerSuspected, TriggerConfirmed, TriggerReset:
		return true
	}
	return false
}

// Action returns the plugin action sent for t.
func (t Trigger) Action() string {
	return "fall-" + string(t)
}

// Alert binds a fall state change to a plugin action.
type Alert struct {
	ID         string          `json:"id"`
	Trigger    Trigger         `json:"trigger"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AlertRepository provides CRUD operations for alerts.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

const alertColumns = `id, on_phase, plugin_name, action_name, config, enabled, created_at`

// Create inserts a new alert. An empty ID is filled with a UUID.
func (r *AlertRepository) Create(a *Alert) error {
	if !a.Trigger.Valid() {
		return fmt.Errorf("invalid trigger %q", a.Trigger)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Trigger), a.PluginName, a.ActionName, configText(a.Config), a.Enabled, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an alert by its ID.
func (r *AlertRepository) GetByID(id string) (*Alert, error) {
	row := r.db.QueryRow(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// List retrieves all alerts, newest first.
func (r *AlertRepository) List() ([]*Alert, error) {
	return r.query(`SELECT ` + alertColumns + ` FROM alerts ORDER BY created_at DESC`)
}

// ListEnabled returns the enabled alerts for a trigger.
func (r *AlertRepository) ListEnabled(t Trigger) ([]*Alert, error) {
	return r.query(`SELECT `+alertColumns+` FROM alerts
		WHERE on_phase = ? AND enabled = 1 ORDER BY created_at ASC`, string(t))
}

// Update updates an existing alert.
func (r *AlertRepository) Update(a *Alert) error {
	if !a.Trigger.Valid() {
		return fmt.Errorf("invalid trigger %q", a.Trigger)
	}

	result, err := r.db.Exec(
		`UPDATE alerts SET on_phase = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		string(a.Trigger), a.PluginName, a.ActionName, configText(a.Config), a.Enabled, a.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// Delete removes an alert by its ID.
func (r *AlertRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func (r *AlertRepository) query(q string, args ...any) ([]*Alert, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}

func scanAlert(s scanner) (*Alert, error) {
	a := &Alert{}
	var (
		trigger, config string
		enabled         int
	)
	err := s.Scan(&a.ID, &trigger, &a.PluginName, &a.ActionName, &config, &enabled, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Trigger = Trigger(trigger)
	a.Config = json.RawMessage(config)
	a.Enabled = enabled != 0
	return a, nil
}

func configText(c json.RawMessage) string {
	if len(c) == 0 {
		return "{}"
	}
	return string(c)
}
