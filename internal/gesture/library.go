package gesture

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyLibrary is returned when a library has no concepts to match against.
	ErrEmptyLibrary = errors.New("library has no concepts")
	// ErrDimensionMismatch is returned when a concept vector is not EmbeddingDim long.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrDuplicateConcept is returned when two entries share a concept id.
	ErrDuplicateConcept = errors.New("duplicate concept id")
)

// ConceptEmbedding is the canonical embedding of one concept.
type ConceptEmbedding struct {
	ConceptID string    `json:"concept_id"`
	Name      string    `json:"name"`
	Artifact  string    `json:"artifact,omitempty"` // output reference, e.g. an animation file
	Vector    Embedding `json:"vector"`
}

// Library is an immutable set of concept embeddings. Rebuilding produces a new Library.
type Library struct {
	name     string
	concepts []ConceptEmbedding
	index    map[string]int
}

// NewLibrary creates a library from concepts. Entries are copied and ordered by
// concept id so scoring order does not depend on the caller.
func NewLibrary(name string, concepts []ConceptEmbedding) (*Library, error) {
	lib := &Library{
		name:     name,
		concepts: make([]ConceptEmbedding, 0, len(concepts)),
		index:    make(map[string]int, len(concepts)),
	}

	for _, c := range concepts {
		if len(c.Vector) != EmbeddingDim {
			return nil, fmt.Errorf("concept %s: %w: got %d, want %d", c.ConceptID, ErrDimensionMismatch, len(c.Vector), EmbeddingDim)
		}
		if _, ok := lib.index[c.ConceptID]; ok {
			return nil, fmt.Errorf("concept %s: %w", c.ConceptID, ErrDuplicateConcept)
		}
		c.Vector = c.Vector.Clone()
		lib.index[c.ConceptID] = -1
		lib.concepts = append(lib.concepts, c)
	}

	sort.Slice(lib.concepts, func(i, j int) bool {
		return lib.concepts[i].ConceptID < lib.concepts[j].ConceptID
	})
	for i, c := range lib.concepts {
		lib.index[c.ConceptID] = i
	}

	return lib, nil
}

// Name returns the library name, e.g. "asl".
func (l *Library) Name() string {
	return l.name
}

// Len returns the number of concepts.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.concepts)
}

// Get returns a copy of the concept with the given id.
func (l *Library) Get(id string) (ConceptEmbedding, bool) {
	i, ok := l.index[id]
	if !ok {
		return ConceptEmbedding{}, false
	}
	c := l.concepts[i]
	c.Vector = c.Vector.Clone()
	return c, true
}

// Concepts returns copies of every concept ordered by id.
func (l *Library) Concepts() []ConceptEmbedding {
	out := make([]ConceptEmbedding, len(l.concepts))
	for i, c := range l.concepts {
		c.Vector = c.Vector.Clone()
		out[i] = c
	}
	return out
}

// IDs returns the concept ids in order.
func (l *Library) IDs() []string {
	out := make([]string, len(l.concepts))
	for i, c := range l.concepts {
		out[i] = c.ConceptID
	}
	return out
}
