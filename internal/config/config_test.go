package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mudra.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MUDRA_DATA_DIR", "/var/lib/mudra")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FPS != 30 || cfg.Library != "asl" {
		t.Errorf("unexpected defaults: fps=%d library=%s", cfg.FPS, cfg.Library)
	}
	if cfg.DBPath != "/var/lib/mudra/catalog.db" {
		t.Errorf("expected db path under data dir, got %s", cfg.DBPath)
	}
	if cfg.SnapshotPath != "/var/lib/mudra/libraries.db" || cfg.PluginDir != "/var/lib/mudra/plugins" {
		t.Errorf("unexpected derived paths: %s %s", cfg.SnapshotPath, cfg.PluginDir)
	}
	if cfg.Recognition.Cooldown != 2*time.Second || cfg.Recognition.WindowSize != 30 {
		t.Errorf("unexpected recognition defaults: %+v", cfg.Recognition)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `{
		"addr": ":9090",
		"library": "bsl",
		"db_path": "/tmp/catalog.db",
		"plugin_timeout": "1500ms",
		"recognition": {"match_threshold": 0.85, "cooldown": "3s"},
		"detector": {"visibility_threshold": 0.6},
		"emitter": {"queue_size": 16, "base_backoff": "50ms"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Library != "bsl" || cfg.DBPath != "/tmp/catalog.db" {
		t.Errorf("unexpected file values: %+v", cfg)
	}
	if cfg.PluginTimeout != 1500*time.Millisecond {
		t.Errorf("expected 1.5s plugin timeout, got %v", cfg.PluginTimeout)
	}
	if cfg.Recognition.MatchThreshold != 0.85 || cfg.Recognition.Cooldown != 3*time.Second {
		t.Errorf("unexpected recognition: %+v", cfg.Recognition)
	}
	if cfg.Recognition.MinGap != 0.15 || cfg.Recognition.ConfirmFrames != 5 {
		t.Errorf("expected absent fields to keep defaults, got %+v", cfg.Recognition)
	}
	if cfg.Detector.VisibilityThreshold != 0.6 || cfg.Detector.MinDetectionConf != 0.3 {
		t.Errorf("unexpected detector config: %+v", cfg.Detector)
	}
	if cfg.Emitter.QueueSize != 16 || cfg.Emitter.BaseBackoff != 50*time.Millisecond || cfg.Emitter.MaxRetries != 3 {
		t.Errorf("unexpected emitter config: %+v", cfg.Emitter)
	}
}

func TestLoad_Env(t *testing.T) {
	path := writeConfig(t, `{"addr": ":9090", "recognition": {"min_gap": 0.2}}`)
	t.Setenv("MUDRA_ADDR", ":7070")
	t.Setenv("MUDRA_MIN_GAP", "0.25")
	t.Setenv("MUDRA_COOLDOWN", "500ms")
	t.Setenv("MUDRA_CONFIRM_FRAMES", "3")
	t.Setenv("MUDRA_EVENT_URLS", "ws://a:1/events, ,ws://b:2/events")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("expected env to override file, got %s", cfg.Addr)
	}
	if cfg.Recognition.MinGap != 0.25 || cfg.Recognition.Cooldown != 500*time.Millisecond || cfg.Recognition.ConfirmFrames != 3 {
		t.Errorf("unexpected recognition: %+v", cfg.Recognition)
	}
	if len(cfg.EventURLs) != 2 || cfg.EventURLs[1] != "ws://b:2/events" {
		t.Errorf("unexpected event urls: %v", cfg.EventURLs)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"missing file", "", nil},
		{"invalid json", `{"addr":`, nil},
		{"bad duration", `{"recognition": {"cooldown": "soon"}}`, nil},
		{"bad env number", `{}`, map[string]string{"MUDRA_FPS": "fast"}},
		{"invalid recognition", `{"recognition": {"window_size": 0}}`, nil},
		{"zero fps", `{"fps": 0}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.json")
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.PluginTimeout = 750 * time.Millisecond
	cfg.Recognition.Cooldown = 1500 * time.Millisecond

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got Config
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.PluginTimeout != cfg.PluginTimeout || got.Recognition != cfg.Recognition || got.Emitter != cfg.Emitter {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}
