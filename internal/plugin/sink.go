package plugin

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/transport"
)

// ActionLister returns the enabled actions bound to a concept.
type ActionLister interface {
	ListByConcept(conceptID string) ([]*store.Action, error)
}

// Sink runs the plugin actions bound to each recognized concept.
type Sink struct {
	actions  ActionLister
	manager  *Manager
	executor *Executor
}

// NewSink creates a Sink.
func NewSink(actions ActionLister, manager *Manager, executor *Executor) *Sink {
	return &Sink{actions: actions, manager: manager, executor: executor}
}

// Name implements transport.Sink.
func (s *Sink) Name() string { return "plugins" }

// Send implements transport.Sink. Missing plugins and unsupported actions are
// logged and skipped. A failed run returns an error so the emitter retries the event.
func (s *Sink) Send(ctx context.Context, e transport.Event) error {
	actions, err := s.actions.ListByConcept(e.ConceptID)
	if err != nil {
		return fmt.Errorf("list actions for %s: %w", e.ConceptID, err)
	}

	var errs []error
	for _, a := range actions {
		p, err := s.manager.Get(a.PluginName)
		if err != nil {
			log.Printf("Action %s: %s: %v", a.ID, a.PluginName, err)
			continue
		}
		if !p.Manifest.Supports(a.ActionName) {
			log.Printf("Action %s: plugin %s has no action %q", a.ID, a.PluginName, a.ActionName)
			continue
		}

		resp, err := s.executor.Execute(ctx, p, &Request{
			Action: a.ActionName,
			Sign: Sign{
				ConceptID: e.ConceptID,
				Name:      e.ConceptName,
				Score:     e.Score,
				Timestamp: e.Timestamp,
				Artifact:  e.Artifact,
				Library:   e.Library,
			},
			Config: a.Config,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", a.PluginName, a.ActionName, err))
			continue
		}
		if !resp.Success {
			log.Printf("Plugin %s/%s reported failure: %s", a.PluginName, a.ActionName, resp.Error)
		}
	}
	return errors.Join(errs...)
}
