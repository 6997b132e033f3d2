package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Build records one reference library build.
type Build struct {
	ID        string          `json:"id"`
	Library   string          `json:"library"`
	Built     int             `json:"built"`
	Skipped   int             `json:"skipped"`
	Report    json.RawMessage `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// BuildRepository stores the library build history.
type BuildRepository struct {
	db *sql.DB
}

// Builds returns the build repository for this store.
func (s *Store) Builds() *BuildRepository {
	return &BuildRepository{db: s.db}
}

// Create records a build.
func (r *BuildRepository) Create(b *Build) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO library_builds (id, library, built, skipped, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Library, b.Built, b.Skipped, configOrEmpty(b.Report), b.CreatedAt,
	)
	return err
}

// List returns the builds of a library, newest first. An empty library lists every build.
func (r *BuildRepository) List(library string) ([]*Build, error) {
	rows, err := r.db.Query(
		`SELECT id, library, built, skipped, report, created_at
		 FROM library_builds
		 WHERE ? = '' OR library = ?
		 ORDER BY created_at DESC, id`,
		library, library,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		b := &Build{}
		var report string
		if err := rows.Scan(&b.ID, &b.Library, &b.Built, &b.Skipped, &report, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Report = json.RawMessage(report)
		builds = append(builds, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return builds, nil
}

// Latest returns the most recent build of a library.
func (r *BuildRepository) Latest(library string) (*Build, error) {
	b := &Build{}
	var report string
	err := r.db.QueryRow(
		`SELECT id, library, built, skipped, report, created_at
		 FROM library_builds WHERE library = ?
		 ORDER BY created_at DESC LIMIT 1`,
		library,
	).Scan(&b.ID, &b.Library, &b.Built, &b.Skipped, &report, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b.Report = json.RawMessage(report)
	return b, nil
}
