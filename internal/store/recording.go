package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Recording is one example performance of a concept in one library, stored as the
// raw signature JSON produced by the extraction tooling.
type Recording struct {
	ID        int64           `json:"id"`
	ConceptID string          `json:"concept_id"`
	Library   string          `json:"library"`
	Source    string          `json:"source"`
	Frames    int             `json:"frames"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RecordingRepository provides CRUD operations for recordings.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Create inserts a recording and refreshes the recording count on its concept.
func (r *RecordingRepository) Create(rec *Recording) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rec.CreatedAt = time.Now()
	result, err := tx.Exec(
		`INSERT INTO recordings (concept_id, library, source, frames, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ConceptID, rec.Library, rec.Source, rec.Frames, string(rec.Data), rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	if rec.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	if err := refreshCount(tx, rec.ConceptID); err != nil {
		return err
	}

	return tx.Commit()
}

func refreshCount(tx *sql.Tx, conceptID string) error {
	_, err := tx.Exec(
		`UPDATE concepts
		 SET recordings = (SELECT COUNT(*) FROM recordings WHERE concept_id = ?), updated_at = ?
		 WHERE id = ?`,
		conceptID, time.Now(), conceptID,
	)
	return err
}

// GetByID retrieves a recording with its data.
func (r *RecordingRepository) GetByID(id int64) (*Recording, error) {
	var rec Recording
	var data string
	err := r.db.QueryRow(
		`SELECT id, concept_id, library, source, frames, data, created_at
		 FROM recordings WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.ConceptID, &rec.Library, &rec.Source, &rec.Frames, &data, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Data = json.RawMessage(data)
	return &rec, nil
}

// ListByConcept retrieves the recordings of a concept without their data.
// An empty library matches every library.
func (r *RecordingRepository) ListByConcept(conceptID, library string) ([]Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, concept_id, library, source, frames, created_at
		 FROM recordings
		 WHERE concept_id = ? AND (? = '' OR library = ?)
		 ORDER BY id`,
		conceptID, library, library,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []Recording
	for rows.Next() {
		var rec Recording
		if err := rows.Scan(&rec.ID, &rec.ConceptID, &rec.Library, &rec.Source, &rec.Frames, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// ListByLibrary retrieves every recording of a library with its data, ordered by
// concept then insertion so builds see a stable order.
func (r *RecordingRepository) ListByLibrary(library string) ([]Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, concept_id, library, source, frames, data, created_at
		 FROM recordings
		 WHERE library = ?
		 ORDER BY concept_id, id`,
		library,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []Recording
	for rows.Next() {
		var rec Recording
		var data string
		if err := rows.Scan(&rec.ID, &rec.ConceptID, &rec.Library, &rec.Source, &rec.Frames, &data, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Data = json.RawMessage(data)
		recordings = append(recordings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// Libraries returns the distinct library names that have recordings.
func (r *RecordingRepository) Libraries() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT library FROM recordings ORDER BY library`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libraries []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		libraries = append(libraries, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return libraries, nil
}

// Delete removes a recording and refreshes the count on its concept.
func (r *RecordingRepository) Delete(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var conceptID string
	err = tx.QueryRow(`SELECT concept_id FROM recordings WHERE id = ?`, id).Scan(&conceptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if _, err := tx.Exec(`DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return err
	}
	if err := refreshCount(tx, conceptID); err != nil {
		return err
	}

	return tx.Commit()
}
