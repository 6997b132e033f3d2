package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Concept is one recognizable sign meaning, shared by every library.
type Concept struct {
	ID         string
	Name       string
	Artifact   string // output reference carried on recognition events
	Recordings int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ConceptRepository provides CRUD operations for concepts.
type ConceptRepository struct {
	db *sql.DB
}

// Concepts returns the concept repository for this store.
func (s *Store) Concepts() *ConceptRepository {
	return &ConceptRepository{db: s.db}
}

const conceptColumns = `id, name, artifact, recordings, created_at, updated_at`

func scanConcept(row interface{ Scan(...any) error }) (*Concept, error) {
	c := &Concept{}
	if err := row.Scan(&c.ID, &c.Name, &c.Artifact, &c.Recordings, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new concept into the database.
func (r *ConceptRepository) Create(c *Concept) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO concepts (id, name, artifact, recordings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Artifact, c.Recordings, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetByID retrieves a concept by its ID.
func (r *ConceptRepository) GetByID(id string) (*Concept, error) {
	c, err := scanConcept(r.db.QueryRow(`SELECT `+conceptColumns+` FROM concepts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// GetByName retrieves a concept by its name.
func (r *ConceptRepository) GetByName(name string) (*Concept, error) {
	c, err := scanConcept(r.db.QueryRow(`SELECT `+conceptColumns+` FROM concepts WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// List retrieves all concepts ordered by id.
func (r *ConceptRepository) List() ([]*Concept, error) {
	rows, err := r.db.Query(`SELECT ` + conceptColumns + ` FROM concepts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concepts []*Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return concepts, nil
}

// Update updates the name and artifact of an existing concept.
func (r *ConceptRepository) Update(c *Concept) error {
	c.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE concepts SET name = ?, artifact = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Artifact, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a concept and, by cascade, its recordings and actions.
func (r *ConceptRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM concepts WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
