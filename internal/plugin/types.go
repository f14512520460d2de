// Package plugin discovers and runs external alert plugins. A plugin is an
// executable next to a plugin.json manifest; it receives one JSON Request
// on stdin and answers with one JSON Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
	"time"
)

// Actions sent to plugins on fall state changes.
const (
	ActionFallSuspected = "fall-suspected"
	ActionFallConfirmed = "fall-confirmed"
	ActionFallReset     = "fall-reset"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest declares action.
func (m Manifest) Supports(action string) bool {
	return slices.Contains(m.Actions, action)
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action    string          `json:"action"`
	Event     json.RawMessage `json:"event,omitempty"`
	Status    string          `json:"status"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Config    json.RawMessage `json:"config,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
