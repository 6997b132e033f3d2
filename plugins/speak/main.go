// Package main provides a plugin that speaks the name of a recognized sign.
// It uses say on macOS and espeak elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Sign   Sign            `json:"sign"`
	Config json.RawMessage `json:"config"`
}

// Sign is the recognition that triggered the run.
type Sign struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Config optionally overrides the spoken text and the voice.
type Config struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	switch req.Action {
	case "say":
		writeResponse(say(req))
	default:
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
	}
}

func say(req Request) error {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	text := cfg.Text
	if text == "" {
		text = spoken(req.Sign.Name)
	}
	if text == "" {
		return fmt.Errorf("nothing to say")
	}

	name, args := "espeak", []string{}
	if runtime.GOOS == "darwin" {
		name = "say"
	}
	if cfg.Voice != "" {
		args = append(args, "-v", cfg.Voice)
	}
	args = append(args, text)

	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// spoken turns a gloss such as THANK_YOU into "thank you".
func spoken(gloss string) string {
	return strings.ToLower(strings.ReplaceAll(gloss, "_", " "))
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
