package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EmitterConfig holds the delivery tunables.
type EmitterConfig struct {
	// QueueSize bounds the number of undelivered events; extra events are dropped.
	QueueSize int `json:"queue_size"`

	// MaxRetries is the number of retries per sink after the first attempt.
	MaxRetries int `json:"max_retries"`

	// BaseBackoff is the delay before the first retry; it doubles on each retry.
	BaseBackoff time.Duration `json:"base_backoff"`

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration `json:"max_backoff"`
}

// DefaultEmitterConfig returns an EmitterConfig with sensible default values.
func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		QueueSize:   64,
		MaxRetries:  3,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	}
}

// MarshalJSON writes the backoff fields as duration strings.
func (c EmitterConfig) MarshalJSON() ([]byte, error) {
	type plain EmitterConfig
	return json.Marshal(struct {
		plain
		BaseBackoff string `json:"base_backoff"`
		MaxBackoff  string `json:"max_backoff"`
	}{plain(c), c.BaseBackoff.String(), c.MaxBackoff.String()})
}

// UnmarshalJSON reads the backoff fields as duration strings such as "250ms".
func (c *EmitterConfig) UnmarshalJSON(data []byte) error {
	type plain EmitterConfig
	aux := struct {
		*plain
		BaseBackoff string `json:"base_backoff"`
		MaxBackoff  string `json:"max_backoff"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"base_backoff", aux.BaseBackoff, &c.BaseBackoff},
		{"max_backoff", aux.MaxBackoff, &c.MaxBackoff},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// Stats counts emitter outcomes.
type Stats struct {
	Queued    uint64 `json:"queued"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// Emitter fans events out to sinks on a worker goroutine. Emit never blocks.
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
	queue  chan Event

	queued    atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewEmitter creates an emitter delivering to sinks. Call Start to begin delivery.
func NewEmitter(config EmitterConfig, sinks ...Sink) *Emitter {
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	return &Emitter{
		config: config,
		sinks:  sinks,
		queue:  make(chan Event, config.QueueSize),
	}
}

// Start launches the delivery worker. It stops when ctx is cancelled or Close is called.
func (e *Emitter) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.run(ctx)
}

// Emit queues an event for delivery. It reports false if the event was dropped
// because the queue is full or the emitter is closed.
func (e *Emitter) Emit(ev Event) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return false
	}

	select {
	case e.queue <- ev:
		e.queued.Add(1)
		return true
	default:
		e.dropped.Add(1)
		log.Printf("Event queue full, dropping %s (%s)", ev.ConceptName, ev.ID)
		return false
	}
}

// Close stops accepting events, delivers what is already queued, and waits for the worker.
func (e *Emitter) Close() {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.queue)
		e.mu.Unlock()
		e.wg.Wait()
		if e.cancel != nil {
			e.cancel()
		}
	})
}

// Stats returns the delivery counters.
func (e *Emitter) Stats() Stats {
	return Stats{
		Queued:    e.queued.Load(),
		Dropped:   e.dropped.Load(),
		Delivered: e.delivered.Load(),
		Failed:    e.failed.Load(),
	}
}

func (e *Emitter) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.queue:
			if !ok {
				return
			}
			for _, s := range e.sinks {
				e.deliver(ctx, s, ev)
			}
		}
	}
}

// deliver sends ev to one sink, retrying with exponential backoff.
func (e *Emitter) deliver(ctx context.Context, s Sink, ev Event) {
	backoff := e.config.BaseBackoff
	for attempt := 0; ; attempt++ {
		err := s.Send(ctx, ev)
		if err == nil {
			e.delivered.Add(1)
			return
		}
		if attempt >= e.config.MaxRetries {
			e.failed.Add(1)
			log.Printf("Giving up on %s after %d attempts for %s: %v", s.Name(), attempt+1, ev.ConceptName, err)
			return
		}

		select {
		case <-ctx.Done():
			e.failed.Add(1)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if e.config.MaxBackoff > 0 && backoff > e.config.MaxBackoff {
			backoff = e.config.MaxBackoff
		}
	}
}
