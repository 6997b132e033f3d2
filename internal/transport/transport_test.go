package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/gesture"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []Event
	failures int
	calls    int
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("unavailable")
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func testEvent(name string) Event {
	return NewEvent(gesture.Recognition{
		ConceptID: "c-" + name,
		Name:      name,
		Score:     0.91,
		Time:      time.UnixMilli(1700000000000),
	}, "asl")
}

func fastConfig() EmitterConfig {
	return EmitterConfig{QueueSize: 8, MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestNewEvent(t *testing.T) {
	e := testEvent("HELLO")
	if e.ID == "" {
		t.Error("expected event id")
	}
	if e.ConceptName != "HELLO" || e.ConceptID != "c-HELLO" || e.Library != "asl" {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.Timestamp != 1700000000000 {
		t.Errorf("expected unix millis, got %d", e.Timestamp)
	}

	data, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var wire struct {
		Event string `json:"event"`
		Data  Event  `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if wire.Event != EventSignRecognized || wire.Data.ConceptName != "HELLO" || wire.Data.Score != 0.91 {
		t.Errorf("unexpected wire form: %s", data)
	}
}

func TestEmitter_Delivers(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	em := NewEmitter(fastConfig(), a, b)
	em.Start(context.Background())

	for _, name := range []string{"HELLO", "YES", "THANK_YOU"} {
		if !em.Emit(testEvent(name)) {
			t.Fatalf("Emit %s dropped", name)
		}
	}
	em.Close()

	for _, s := range []*recordingSink{a, b} {
		got := s.received()
		if len(got) != 3 {
			t.Fatalf("expected 3 events, got %d", len(got))
		}
		if got[0].ConceptName != "HELLO" || got[2].ConceptName != "THANK_YOU" {
			t.Errorf("expected events in order, got %+v", got)
		}
	}
	if st := em.Stats(); st.Delivered != 6 || st.Dropped != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestEmitter_Retries(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		s := &recordingSink{failures: 2}
		em := NewEmitter(fastConfig(), s)
		em.Start(context.Background())
		em.Emit(testEvent("HELLO"))
		em.Close()

		if len(s.received()) != 1 || s.calls != 3 {
			t.Errorf("expected delivery on the third attempt, got %d events in %d calls", len(s.received()), s.calls)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		s := &recordingSink{failures: 10}
		em := NewEmitter(fastConfig(), s)
		em.Start(context.Background())
		em.Emit(testEvent("HELLO"))
		em.Close()

		if s.calls != 3 {
			t.Errorf("expected 3 attempts, got %d", s.calls)
		}
		if st := em.Stats(); st.Failed != 1 || st.Delivered != 0 {
			t.Errorf("unexpected stats: %+v", st)
		}
	})
}

func TestEmitter_NeverBlocks(t *testing.T) {
	cfg := fastConfig()
	cfg.QueueSize = 2
	em := NewEmitter(cfg, &recordingSink{})

	// Not started, so nothing drains the queue.
	accepted := 0
	for i := 0; i < 5; i++ {
		if em.Emit(testEvent("HELLO")) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("expected 2 queued events, got %d", accepted)
	}
	if st := em.Stats(); st.Dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", st.Dropped)
	}

	em.Close()
	if em.Emit(testEvent("HELLO")) {
		t.Error("expected emit after close to be dropped")
	}
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	if err := hub.Send(context.Background(), testEvent("HELLO")); err != nil {
		t.Fatalf("Send without clients failed: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 1 })

	if err := hub.Send(context.Background(), testEvent("YES")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if !strings.Contains(string(data), `"event":"sign_recognized"`) || !strings.Contains(string(data), `"concept":"YES"`) {
		t.Errorf("unexpected message: %s", data)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestClient(t *testing.T) {
	received := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	defer srv.Close()

	c := NewClient(wsURL(srv), nil)
	defer c.Close()

	for _, name := range []string{"HELLO", "YES"} {
		if err := c.Send(context.Background(), testEvent(name)); err != nil {
			t.Fatalf("Send %s failed: %v", name, err)
		}
	}

	for _, want := range []string{"HELLO", "YES"} {
		select {
		case data := <-received:
			if !strings.Contains(string(data), `"concept":"`+want+`"`) {
				t.Errorf("expected %s, got %s", want, data)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestClient_DialFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/events", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Send(ctx, testEvent("HELLO")); err == nil {
		t.Error("expected dial error")
	}
}
