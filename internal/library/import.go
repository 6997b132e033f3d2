package library

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/store"
)

// Import errors for signatures that cannot be filed under a concept and library.
var (
	ErrMissingSign     = errors.New("signature has no sign name")
	ErrMissingLanguage = errors.New("signature names no language")
)

// Import stores a recorded signature as a recording of the concept it names, creating
// the concept if needed. library overrides the signature's own language when set.
func Import(st *store.Store, data []byte, source, library string) (*store.Recording, error) {
	sig, err := detector.ParseSignature(data)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(sig.Sign)
	if name == "" {
		return nil, ErrMissingSign
	}
	if library == "" {
		library = strings.ToLower(strings.TrimSpace(sig.Language))
	}
	if library == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingLanguage)
	}

	concept, err := st.Concepts().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		concept = &store.Concept{ID: uuid.New().String(), Name: name}
		err = st.Concepts().Create(concept)
	}
	if err != nil {
		return nil, fmt.Errorf("concept %s: %w", name, err)
	}

	if source != "" {
		source = filepath.Base(source)
	}
	rec := &store.Recording{
		ConceptID: concept.ID,
		Library:   library,
		Source:    source,
		Frames:    len(sig.Frames),
		Data:      data,
	}
	if err := st.Recordings().Create(rec); err != nil {
		return nil, fmt.Errorf("store recording: %w", err)
	}
	return rec, nil
}
