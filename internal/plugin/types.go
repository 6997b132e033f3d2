// Package plugin runs external executables in response to recognized signs.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the plugin declares the action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Sign is the recognition that triggered a plugin run.
type Sign struct {
	ConceptID string  `json:"concept_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Timestamp int64   `json:"timestamp"`
	Artifact  string  `json:"artifact,omitempty"`
	Library   string  `json:"library,omitempty"`
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Action string          `json:"action"`
	Sign   Sign            `json:"sign"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read from the plugin's stdout as JSON.
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
