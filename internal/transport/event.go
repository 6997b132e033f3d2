// Package transport carries recognition events from the live session to downstream
// consumers without blocking frame processing.
package transport

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
)

// EventSignRecognized is the name of the event sent for every accepted recognition.
const EventSignRecognized = "sign_recognized"

// Event is one accepted recognition.
type Event struct {
	ID          string  `json:"id"`
	ConceptID   string  `json:"concept_id"`
	ConceptName string  `json:"concept"`
	Score       float64 `json:"score"`
	Timestamp   int64   `json:"timestamp"` // unix milliseconds
	Artifact    string  `json:"artifact,omitempty"`
	Library     string  `json:"library,omitempty"`
}

// NewEvent builds an event for a recognition from the named library.
func NewEvent(r gesture.Recognition, library string) Event {
	return Event{
		ID:          uuid.New().String(),
		ConceptID:   r.ConceptID,
		ConceptName: r.Name,
		Score:       r.Score,
		Timestamp:   r.Time.UnixMilli(),
		Artifact:    r.Artifact,
		Library:     library,
	}
}

// envelope is the wire form shared by every websocket sink.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode returns the wire form of e.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(envelope{Event: EventSignRecognized, Data: e})
}

// Sink delivers events to one downstream consumer.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Send delivers one event. Errors are retried by the Emitter.
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	Label string
	Fn    func(ctx context.Context, e Event) error
}

// Name implements Sink.
func (s SinkFunc) Name() string { return s.Label }

// Send implements Sink.
func (s SinkFunc) Send(ctx context.Context, e Event) error { return s.Fn(ctx, e) }
