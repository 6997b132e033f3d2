package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Concepts table - one row per recognizable sign meaning
		`CREATE TABLE IF NOT EXISTS concepts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			artifact TEXT NOT NULL DEFAULT '',
			recordings INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Recordings table - raw signature JSON per example performance
		`CREATE TABLE IF NOT EXISTS recordings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			concept_id TEXT NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
			library TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			frames INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Actions table - plugin actions to run when a concept is recognized
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			concept_id TEXT NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Library builds table - history of reference library builds
		`CREATE TABLE IF NOT EXISTS library_builds (
			id TEXT PRIMARY KEY,
			library TEXT NOT NULL,
			built INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			report TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_recordings_concept_id ON recordings(concept_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_library ON recordings(library)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_concept_id ON actions(concept_id)`,
		`CREATE INDEX IF NOT EXISTS idx_library_builds_library ON library_builds(library)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
