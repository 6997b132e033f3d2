package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScriptPlugin writes an executable shell script plugin into a temp directory.
func writeScriptPlugin(t *testing.T, name, script string, actions ...string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
			Actions:    actions,
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := writeScriptPlugin(t, "test-plugin",
		`echo '{"success":true,"data":{"message":"hello world"}}'`+"\n", "test-action")

	request := &Request{
		Action: "test-action",
		Sign:   Sign{ConceptID: "c1", Name: "HELLO", Score: 0.93},
		Config: json.RawMessage(`{"key":"value"}`),
	}

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if response.Error != "" {
		t.Errorf("expected empty error, got %q", response.Error)
	}

	var data map[string]any
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := writeScriptPlugin(t, "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`, "echo")

	request := &Request{
		Action: "echo",
		Sign:   Sign{ConceptID: "c1", Name: "THANK_YOU", Score: 0.88, Timestamp: 1700000000000},
		Config: json.RawMessage(`{"setting":"enabled"}`),
	}

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, request)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data struct {
		Received Request `json:"received"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data.Received.Action != "echo" {
		t.Errorf("expected action 'echo', got %q", data.Received.Action)
	}
	if data.Received.Sign.Name != "THANK_YOU" || data.Received.Sign.Timestamp != 1700000000000 {
		t.Errorf("unexpected sign: %+v", data.Received.Sign)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := writeScriptPlugin(t, "slow-plugin", `sleep 10
echo '{"success":true}'
`, "slow")

	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), plugin, &Request{Action: "slow"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExecutor_Failures(t *testing.T) {
	t.Run("non-zero exit includes stderr", func(t *testing.T) {
		plugin := writeScriptPlugin(t, "fail-plugin", `echo "boom" >&2
exit 1
`)
		_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{})
		if err == nil || !strings.Contains(err.Error(), "boom") {
			t.Errorf("expected error with stderr, got %v", err)
		}
	})

	t.Run("invalid response", func(t *testing.T) {
		plugin := writeScriptPlugin(t, "bad-plugin", `echo "not json"
`)
		_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{})
		if err == nil || !strings.Contains(err.Error(), "failed to parse plugin response") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("missing executable", func(t *testing.T) {
		plugin := &Plugin{Path: t.TempDir(), Executable: "/nonexistent/plugin"}
		if _, err := NewExecutor(time.Second).Execute(context.Background(), plugin, &Request{}); err == nil {
			t.Error("expected error for missing executable")
		}
	})
}
