// Package library persists compiled reference libraries and builds them from the catalog.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ayusman/mudra/internal/gesture"
)

// ErrLibraryNotFound is returned when the snapshot holds no library of the requested name.
var ErrLibraryNotFound = errors.New("library not found in snapshot")

var (
	bucketLibraries = []byte("libraries")
	bucketMeta      = []byte("meta")
)

// Meta describes a saved library.
type Meta struct {
	Name     string    `json:"name"`
	BuildID  string    `json:"build_id,omitempty"`
	Concepts int       `json:"concepts"`
	Dim      int       `json:"dim"`
	SavedAt  time.Time `json:"saved_at"`
}

// conceptRecord is the stored value for one concept. Vector holds EncodeVector output.
type conceptRecord struct {
	Name     string `json:"name"`
	Artifact string `json:"artifact,omitempty"`
	Dim      int    `json:"dim"`
	Vector   []byte `json:"vector"`
}

// Snapshot is a bbolt file holding one nested bucket per library, keyed by concept id.
type Snapshot struct {
	db *bbolt.DB
}

// OpenSnapshot opens or creates the snapshot file at path.
func OpenSnapshot(path string) (*Snapshot, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLibraries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot: %w", err)
	}

	return &Snapshot{db: db}, nil
}

// Close closes the snapshot file.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// Save replaces the stored copy of lib in one transaction.
func (s *Snapshot) Save(lib *gesture.Library, buildID string) error {
	name := []byte(lib.Name())
	return s.db.Update(func(tx *bbolt.Tx) error {
		libs := tx.Bucket(bucketLibraries)
		if libs.Bucket(name) != nil {
			if err := libs.DeleteBucket(name); err != nil {
				return err
			}
		}
		b, err := libs.CreateBucket(name)
		if err != nil {
			return err
		}

		for _, c := range lib.Concepts() {
			data, err := json.Marshal(conceptRecord{
				Name:     c.Name,
				Artifact: c.Artifact,
				Dim:      len(c.Vector),
				Vector:   EncodeVector(c.Vector),
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(c.ConceptID), data); err != nil {
				return err
			}
		}

		meta, err := json.Marshal(Meta{
			Name:     lib.Name(),
			BuildID:  buildID,
			Concepts: lib.Len(),
			Dim:      gesture.EmbeddingDim,
			SavedAt:  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(name, meta)
	})
}

// Load reads a library. Records that fail to decode or have the wrong dimension are
// skipped with a warning; gesture.ErrEmptyLibrary is returned if none survive.
func (s *Snapshot) Load(name string) (*gesture.Library, error) {
	var concepts []gesture.ConceptEmbedding

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLibraries).Bucket([]byte(name))
		if b == nil {
			return ErrLibraryNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			c, err := decodeConcept(k, v)
			if err != nil {
				log.Printf("Skipping concept %s in library %s: %v", k, name, err)
				return nil
			}
			concepts = append(concepts, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load library %s: %w", name, err)
	}

	if len(concepts) == 0 {
		return nil, fmt.Errorf("load library %s: %w", name, gesture.ErrEmptyLibrary)
	}
	return gesture.NewLibrary(name, concepts)
}

func decodeConcept(key, value []byte) (gesture.ConceptEmbedding, error) {
	var rec conceptRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return gesture.ConceptEmbedding{}, fmt.Errorf("decode record: %w", err)
	}
	vec, err := DecodeVector(rec.Vector)
	if err != nil {
		return gesture.ConceptEmbedding{}, err
	}
	if len(vec) != gesture.EmbeddingDim || rec.Dim != len(vec) {
		return gesture.ConceptEmbedding{}, fmt.Errorf("%w: got %d, want %d", gesture.ErrDimensionMismatch, len(vec), gesture.EmbeddingDim)
	}
	return gesture.ConceptEmbedding{
		ConceptID: string(key),
		Name:      rec.Name,
		Artifact:  rec.Artifact,
		Vector:    vec,
	}, nil
}

// Names returns the stored library names in key order.
func (s *Snapshot) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLibraries).ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	return names, err
}

// Info returns the metadata recorded when a library was saved.
func (s *Snapshot) Info(name string) (*Meta, error) {
	var meta Meta
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(name))
		if data == nil {
			return ErrLibraryNotFound
		}
		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Delete removes a library and its metadata.
func (s *Snapshot) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		libs := tx.Bucket(bucketLibraries)
		if libs.Bucket([]byte(name)) == nil {
			return ErrLibraryNotFound
		}
		if err := libs.DeleteBucket([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Delete([]byte(name))
	})
}
