// Package config loads runtime settings from defaults, an optional JSON file, and
// MUDRA_* environment variables, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MUDRA_"

// Config holds every runtime setting.
type Config struct {
	// DataDir holds the catalog database, library snapshots and plugins by default.
	DataDir string `json:"data_dir"`

	// DBPath is the SQLite catalog file.
	DBPath string `json:"db_path"`

	// SnapshotPath is the bbolt file of compiled libraries.
	SnapshotPath string `json:"snapshot_path"`

	// PluginDir is scanned for action plugins.
	PluginDir string `json:"plugin_dir"`

	// StaticDir is served at / by the HTTP server when set.
	StaticDir string `json:"static_dir"`

	// Addr is the HTTP listen address.
	Addr string `json:"addr"`

	// Library is the name of the library the live session loads.
	Library string `json:"library"`

	// CameraID is the capture device index.
	CameraID int `json:"camera_id"`

	// FPS is the live pipeline frame rate.
	FPS int `json:"fps"`

	// EventURLs are remote websocket endpoints that receive every recognition.
	EventURLs []string `json:"event_urls"`

	// PluginTimeout bounds one plugin run.
	PluginTimeout time.Duration `json:"-"`

	Detector    detector.Config         `json:"detector"`
	Recognition gesture.Config          `json:"recognition"`
	Builder     gesture.BuilderConfig   `json:"builder"`
	Emitter     transport.EmitterConfig `json:"emitter"`
}

// Default returns the built-in configuration rooted at ~/.mudra.
func Default() Config {
	dataDir := ".mudra"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".mudra")
	}
	return Config{
		DataDir:       dataDir,
		Addr:          "127.0.0.1:8080",
		Library:       "asl",
		FPS:           30,
		PluginTimeout: 5 * time.Second,
		Detector:      detector.DefaultConfig(),
		Recognition:   gesture.DefaultConfig(),
		Builder:       gesture.DefaultBuilderConfig(),
		Emitter:       transport.DefaultEmitterConfig(),
	}
}

// Load builds a Config from defaults, the JSON file at path (skipped when path is
// empty), and the environment. Paths left empty are derived from DataDir.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.fillPaths()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	if c.FPS < 1 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.Library == "" {
		errs = append(errs, errors.New("library must be set"))
	}
	if err := c.Recognition.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recognition: %w", err))
	}
	return errors.Join(errs...)
}

// MarshalJSON adds PluginTimeout as a duration string.
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return json.Marshal(struct {
		plain
		PluginTimeout string `json:"plugin_timeout"`
	}{plain(c), c.PluginTimeout.String()})
}

// UnmarshalJSON reads PluginTimeout as a duration string.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		PluginTimeout string `json:"plugin_timeout"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.PluginTimeout != "" {
		d, err := time.ParseDuration(aux.PluginTimeout)
		if err != nil {
			return fmt.Errorf("plugin_timeout: %w", err)
		}
		c.PluginTimeout = d
	}
	return nil
}

func (c *Config) fillPaths() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "catalog.db")
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = filepath.Join(c.DataDir, "libraries.db")
	}
	if c.PluginDir == "" {
		c.PluginDir = filepath.Join(c.DataDir, "plugins")
	}
}

// applyEnv overrides fields from MUDRA_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	env := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	str := func(name string, dst *string) {
		if v, ok := env(name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := env(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := env(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := env(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("DATA_DIR", &c.DataDir)
	str("DB", &c.DBPath)
	str("SNAPSHOT", &c.SnapshotPath)
	str("PLUGIN_DIR", &c.PluginDir)
	str("STATIC_DIR", &c.StaticDir)
	str("ADDR", &c.Addr)
	str("LIBRARY", &c.Library)
	integer("CAMERA", &c.CameraID)
	integer("FPS", &c.FPS)
	duration("PLUGIN_TIMEOUT", &c.PluginTimeout)
	if v, ok := env("EVENT_URLS"); ok {
		c.EventURLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.EventURLs = append(c.EventURLs, u)
			}
		}
	}

	float("VISIBILITY_THRESHOLD", &c.Detector.VisibilityThreshold)
	integer("WINDOW_SIZE", &c.Recognition.WindowSize)
	float("MIN_WINDOW_QUALITY", &c.Recognition.MinWindowQuality)
	float("MATCH_THRESHOLD", &c.Recognition.MatchThreshold)
	float("MIN_GAP", &c.Recognition.MinGap)
	float("HIGH_CONFIDENCE", &c.Recognition.HighConfidence)
	integer("CONFIRM_FRAMES", &c.Recognition.ConfirmFrames)
	duration("COOLDOWN", &c.Recognition.Cooldown)
	float("OUTLIER_Z", &c.Builder.OutlierZ)
	float("MIN_INSTANCE_SIMILARITY", &c.Builder.MinInstanceSimilarity)
	integer("EVENT_QUEUE", &c.Emitter.QueueSize)

	return errors.Join(errs...)
}
