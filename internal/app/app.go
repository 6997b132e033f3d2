// Package app runs the live sign recognition pipeline: camera, landmark tracker,
// recognition session, and event delivery.
package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/transport"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate while nobody is in view.
	IdleFPS = 5
	// IdleTimeout is how long the tracker may see nobody before the pipeline idles.
	IdleTimeout = 3 * time.Second
)

// ErrRunning is returned when reconfiguring a pipeline that is running.
var ErrRunning = errors.New("pipeline is running")

// Config holds configuration options for the application.
type Config struct {
	// Store provides the plugin action bindings. Without it no plugin sink is attached.
	Store *store.Store

	// LibraryName is carried on every event.
	LibraryName string

	PluginDir     string
	PluginTimeout time.Duration
	CameraID      int
	FPS           int

	Detector    detector.Config
	Recognition gesture.Config
	Emitter     transport.EmitterConfig

	// Sinks receive every recognition next to the plugin sink.
	Sinks []transport.Sink
}

// Status is a snapshot of the live pipeline.
type Status struct {
	Enabled    bool                       `json:"enabled"`
	Running    bool                       `json:"running"`
	Idle       bool                       `json:"idle"`
	Library    string                     `json:"library"`
	Concepts   int                        `json:"concepts"`
	Frames     int64                      `json:"frames"`
	Dropped    int64                      `json:"dropped"`
	WindowFill int                        `json:"window_fill"`
	WindowSize int                        `json:"window_size"`
	Cooldown   string                     `json:"cooldown_remaining"`
	Last       *gesture.RecognitionResult `json:"last_result,omitempty"`
	LastSign   *SignStatus                `json:"last_sign,omitempty"`
	Events     transport.Stats            `json:"events"`
}

// SignStatus describes the last emitted sign.
type SignStatus struct {
	ConceptID string    `json:"concept_id"`
	Name      string    `json:"name"`
	Score     float64   `json:"score"`
	Time      time.Time `json:"time"`
}

// App is the main application that orchestrates tracking, recognition, and delivery.
type App struct {
	config    Config
	camera    capture.Camera
	motion    *capture.MotionDetector
	detector  detector.Detector
	pluginMgr *plugin.Manager
	emitter   *transport.Emitter

	// sessionMu serializes Process with resets and reloads so they land between frames.
	sessionMu sync.Mutex
	session   *gesture.Session

	mu        sync.RWMutex
	enabled   bool
	idle      bool
	stopCh    chan struct{}
	done      chan struct{}
	callbacks []func(gesture.Recognition)
	frames    int64
	dropped   int64
	last      *gesture.RecognitionResult
	lastSign  *SignStatus
}

// New creates an App over lib. It fails when lib has no concepts or the recognition
// tunables are invalid.
func New(config Config, lib *gesture.Library) (*App, error) {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.PluginTimeout <= 0 {
		config.PluginTimeout = 5 * time.Second
	}
	if config.LibraryName == "" {
		config.LibraryName = lib.Name()
	}

	session, err := gesture.NewSession(lib, config.Recognition)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:    config,
		camera:    capture.NewCamera(config.CameraID),
		motion:    capture.NewMotionDetector(capture.DefaultWakeThreshold),
		pluginMgr: plugin.NewManager(config.PluginDir),
		session:   session,
	}

	sinks := append([]transport.Sink{}, config.Sinks...)
	if config.Store != nil {
		sinks = append(sinks, plugin.NewSink(config.Store.Actions(), a.pluginMgr, plugin.NewExecutor(config.PluginTimeout)))
	}
	a.emitter = transport.NewEmitter(config.Emitter, sinks...)

	// Try MediaPipe first, fall back to the mock tracker
	if mp, err := detector.NewMediaPipeDetector(config.Detector); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe holistic tracking")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		a.detector = detector.NewMockDetector()
	}

	return a, nil
}

// SetEnabled enables or disables recognition. Disabling resets the session window.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed && !enabled {
		a.ResetSession(false)
	}
}

// IsEnabled returns whether recognition is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector replaces the landmark tracker. It fails while the pipeline runs.
func (a *App) SetDetector(d detector.Detector) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		return ErrRunning
	}
	a.detector = d
	return nil
}

// SetCamera replaces the frame source. It fails while the pipeline runs.
func (a *App) SetCamera(c capture.Camera) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != nil {
		return ErrRunning
	}
	a.camera = c
	return nil
}

// OnRecognition registers fn to be called with every emitted sign, on the pipeline goroutine.
func (a *App) OnRecognition(fn func(gesture.Recognition)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// ResetSession clears the recognition window and temporal state, and the cooldown
// clock when clearCooldown is set.
func (a *App) ResetSession(clearCooldown bool) {
	a.sessionMu.Lock()
	a.session.Reset(clearCooldown)
	a.sessionMu.Unlock()
	log.Printf("Session reset (clear cooldown: %v)", clearCooldown)
}

// ReloadLibrary swaps the session's library between two frames.
func (a *App) ReloadLibrary(lib *gesture.Library) error {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	if err := a.session.Reload(lib); err != nil {
		return err
	}
	a.mu.Lock()
	a.config.LibraryName = lib.Name()
	a.mu.Unlock()
	log.Printf("Loaded library %s with %d concepts", lib.Name(), lib.Len())
	return nil
}

// DiscoverPlugins scans the plugin directory.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start opens the camera and runs the pipeline until Stop or ctx is done.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.emitter.Start(ctx)
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(ctx, a.stopCh, a.done)

	log.Println("Recognition pipeline started")
	return nil
}

// Stop halts the pipeline, drains pending events, and releases the camera and tracker.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	a.emitter.Close()

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Close()
	if err := a.detector.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
	}

	log.Println("Recognition pipeline stopped")
}

// Status returns a snapshot of the pipeline. It satisfies the live API.
func (a *App) Status() any {
	return a.Snapshot()
}

// Snapshot returns the typed pipeline status.
func (a *App) Snapshot() Status {
	a.sessionMu.Lock()
	lib := a.session.Library()
	fill, size := a.session.WindowFill()
	cooldown := a.session.CooldownRemaining(time.Now())
	a.sessionMu.Unlock()

	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{
		Enabled:    a.enabled,
		Running:    a.stopCh != nil,
		Idle:       a.idle,
		Library:    lib.Name(),
		Concepts:   lib.Len(),
		Frames:     a.frames,
		Dropped:    a.dropped,
		WindowFill: fill,
		WindowSize: size,
		Cooldown:   cooldown.String(),
		Last:       a.last,
		LastSign:   a.lastSign,
		Events:     a.emitter.Stats(),
	}
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Detector returns the landmark tracker.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}
