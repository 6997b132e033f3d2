package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/transport"
	"github.com/ayusman/mudra/testdata"
)

var signs = []string{"HELLO", "THANK_YOU", "YES"}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	st, err := store.New(filepath.Join(tmpDir, "catalog.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	snap, err := library.OpenSnapshot(filepath.Join(tmpDir, "libraries.db"))
	if err != nil {
		t.Fatalf("OpenSnapshot() error = %v", err)
	}
	defer snap.Close()

	builder := library.NewBuilder(st, snap, gesture.DefaultBuilderConfig())
	var built *gesture.Library
	catalog := httptest.NewServer(server.New(server.Config{
		Store:    st,
		Snapshot: snap,
		Builder:  builder,
		OnBuild:  func(lib *gesture.Library) { built = lib },
	}))
	defer catalog.Close()
	client := catalog.Client()

	t.Run("UploadRecordings", func(t *testing.T) {
		for _, sign := range signs {
			for seed := 1; seed <= 3; seed++ {
				data, err := testdata.SignatureJSON(sign, "asl", seed, 20)
				if err != nil {
					t.Fatalf("SignatureJSON() error = %v", err)
				}
				url := fmt.Sprintf("%s/api/recordings?source=%s_%d.json", catalog.URL, strings.ToLower(sign), seed)
				resp, err := client.Post(url, "application/json", bytes.NewReader(data))
				if err != nil {
					t.Fatalf("upload error = %v", err)
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusCreated {
					t.Fatalf("upload %s/%d status = %d, want %d", sign, seed, resp.StatusCode, http.StatusCreated)
				}
			}
		}
	})

	t.Run("BuildLibrary", func(t *testing.T) {
		resp, err := client.Post(catalog.URL+"/api/libraries/asl/build", "application/json", nil)
		if err != nil {
			t.Fatalf("build error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("build status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		if built == nil || built.Len() != len(signs) {
			t.Fatalf("expected %d concepts built, got %v", len(signs), built)
		}

		stored, err := snap.Load("asl")
		if err != nil {
			t.Fatalf("snapshot Load() error = %v", err)
		}
		if stored.Len() != built.Len() {
			t.Errorf("snapshot has %d concepts, built %d", stored.Len(), built.Len())
		}
	})
	if built == nil {
		t.FailNow()
	}

	// Live recognition over the built library, observed through the API.
	hub := transport.NewHub()
	application, err := app.New(app.Config{
		Store:       st,
		PluginDir:   filepath.Join(tmpDir, "plugins"),
		Recognition: gesture.DefaultConfig(),
		Emitter:     transport.DefaultEmitterConfig(),
		Sinks:       []transport.Sink{hub},
	}, built)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	mock := detector.NewMockDetector()
	mock.SetFrames(detector.HelloFrame())
	if err := application.SetDetector(mock); err != nil {
		t.Fatalf("SetDetector() error = %v", err)
	}
	frames := testdata.LoadSequence(5)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()
	if err := application.SetCamera(capture.NewMockCamera(frames, true)); err != nil {
		t.Fatalf("SetCamera() error = %v", err)
	}

	live := httptest.NewServer(server.New(server.Config{
		Store:  st,
		Events: hub,
		Live:   application,
	}))
	defer live.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(live.URL, "http")+"/api/events", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	application.SetEnabled(true)
	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	t.Run("RecognitionEvent", func(t *testing.T) {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg struct {
			Event string          `json:"event"`
			Data  transport.Event `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}
		if msg.Event != transport.EventSignRecognized {
			t.Errorf("event = %q, want %q", msg.Event, transport.EventSignRecognized)
		}
		if msg.Data.ConceptName != "HELLO" || msg.Data.Library != "asl" {
			t.Errorf("unexpected event: %+v", msg.Data)
		}
		if msg.Data.Score < gesture.DefaultConfig().MatchThreshold {
			t.Errorf("score %.3f below the acceptance threshold", msg.Data.Score)
		}
	})

	t.Run("LiveStatus", func(t *testing.T) {
		resp, err := live.Client().Get(live.URL + "/api/live")
		if err != nil {
			t.Fatalf("GET /api/live error = %v", err)
		}
		defer resp.Body.Close()
		var status app.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if !status.Running || !status.Enabled {
			t.Errorf("expected running and enabled, got %+v", status)
		}
		if status.Library != "asl" || status.Concepts != len(signs) {
			t.Errorf("unexpected library in status: %s/%d", status.Library, status.Concepts)
		}
		if status.LastSign == nil || status.LastSign.Name != "HELLO" {
			t.Errorf("expected last sign HELLO, got %+v", status.LastSign)
		}
	})

	t.Run("ReplayRecording", func(t *testing.T) {
		frames, err := testdata.Frames("YES", 42, 45)
		if err != nil {
			t.Fatalf("Frames() error = %v", err)
		}
		res, err := app.Replay(&detector.Signature{Sign: "YES", Language: "asl", FPS: 30, Frames: frames}, built, gesture.DefaultConfig())
		if err != nil {
			t.Fatalf("Replay() error = %v", err)
		}
		if !res.Recognized || len(res.Emitted) != 1 {
			t.Errorf("expected YES recognized once, got %+v", res)
		}
	})
}
