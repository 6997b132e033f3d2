package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// ErrNoRecordings is returned when a library has no recordings in the catalog.
var ErrNoRecordings = errors.New("no recordings for library")

// Builder compiles catalog recordings into reference libraries.
type Builder struct {
	store    *store.Store
	snapshot *Snapshot
	trainer  *gesture.Trainer
}

// NewBuilder creates a builder that reads from st and writes to snap.
func NewBuilder(st *store.Store, snap *Snapshot, cfg gesture.BuilderConfig) *Builder {
	return &Builder{
		store:    st,
		snapshot: snap,
		trainer:  gesture.NewTrainer(cfg),
	}
}

// Result is the outcome of one build.
type Result struct {
	BuildID string
	Library *gesture.Library
	Report  gesture.BuildReport
}

// Sources loads every recording of a library from the catalog, grouped by concept in id order.
func (b *Builder) Sources(library string) ([]gesture.ConceptSource, error) {
	concepts, err := b.store.Concepts().List()
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	recordings, err := b.store.Recordings().ListByLibrary(library)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	if len(recordings) == 0 {
		return nil, fmt.Errorf("%s: %w", library, ErrNoRecordings)
	}

	byConcept := make(map[string][]gesture.Recording)
	for _, rec := range recordings {
		sig, err := detector.ParseSignature(rec.Data)
		if err != nil {
			log.Printf("Skipping recording %d (%s): %v", rec.ID, rec.Source, err)
			continue
		}
		byConcept[rec.ConceptID] = append(byConcept[rec.ConceptID], gesture.Recording{
			ID:     recordingLabel(rec),
			Frames: sig.Frames,
		})
	}

	var sources []gesture.ConceptSource
	for _, c := range concepts {
		recs, ok := byConcept[c.ID]
		if !ok {
			continue
		}
		sources = append(sources, gesture.ConceptSource{
			ConceptID:  c.ID,
			Name:       c.Name,
			Artifact:   c.Artifact,
			Recordings: recs,
		})
	}
	return sources, nil
}

func recordingLabel(rec store.Recording) string {
	if rec.Source != "" {
		return fmt.Sprintf("%d:%s", rec.ID, rec.Source)
	}
	return fmt.Sprintf("%d", rec.ID)
}

// Build compiles a library, saves it to the snapshot, and records the build in the catalog.
// Nothing is saved when no concept survives.
func (b *Builder) Build(library string) (*Result, error) {
	sources, err := b.Sources(library)
	if err != nil {
		return nil, err
	}

	lib, report := b.trainer.BuildLibrary(library, sources)
	buildID := uuid.New().String()

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	record := &store.Build{
		ID:      buildID,
		Library: library,
		Built:   report.Built,
		Skipped: report.Skipped,
		Report:  reportJSON,
	}
	if err := b.store.Builds().Create(record); err != nil {
		return nil, fmt.Errorf("record build: %w", err)
	}

	if lib.Len() == 0 {
		return &Result{BuildID: buildID, Library: lib, Report: report}, fmt.Errorf("%s: %w", library, gesture.ErrEmptyLibrary)
	}
	if err := b.snapshot.Save(lib, buildID); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	log.Printf("Built library %s: %d concepts, %d skipped (build %s)", library, report.Built, report.Skipped, buildID)
	return &Result{BuildID: buildID, Library: lib, Report: report}, nil
}
