// Package main provides a plugin that appends recognized signs to a JSON lines file.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Sign   Sign            `json:"sign"`
	Config json.RawMessage `json:"config"`
}

// Sign is the recognition that triggered the run.
type Sign struct {
	ConceptID string  `json:"concept_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Timestamp int64   `json:"timestamp"`
	Artifact  string  `json:"artifact,omitempty"`
	Library   string  `json:"library,omitempty"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Config selects the log file. Relative paths resolve against the plugin directory.
type Config struct {
	Path string `json:"path"`
}

type entry struct {
	Sign     string  `json:"sign"`
	Score    float64 `json:"score"`
	At       string  `json:"at"`
	Artifact string  `json:"artifact,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	switch req.Action {
	case "append":
		writeResponse(appendSign(req))
	default:
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
	}
}

func appendSign(req Request) error {
	cfg := Config{Path: "signs.jsonl"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.Path == "" {
		return fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(entry{
		Sign:     req.Sign.Name,
		Score:    req.Sign.Score,
		At:       time.UnixMilli(req.Sign.Timestamp).UTC().Format(time.RFC3339Nano),
		Artifact: req.Sign.Artifact,
	})
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
