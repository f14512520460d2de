// Package main provides a webhook plugin.
// It posts the fall event as JSON to the URL named in the alert config.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Event     json.RawMessage `json:"event"`
	Status    string          `json:"status"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-alert plugin configuration.
type Config struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// Payload is the body posted to the webhook.
type Payload struct {
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Event     json.RawMessage `json:"event,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg Config
	if err := json.Unmarshal(req.Config, &cfg); err != nil || cfg.URL == "" {
		writeErrorResponse("config.url is required")
		return
	}

	status, err := post(cfg, Payload{
		Action:    req.Action,
		Status:    req.Status,
		SessionID: req.SessionID,
		Timestamp: req.Timestamp,
		Event:     req.Event,
	})
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	data, _ := json.Marshal(map[string]int{"status": status})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

// post sends p to cfg.URL and returns the HTTP status code.
func post(cfg Config, p Payload) (int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
