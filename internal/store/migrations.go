package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Submissions table - one row per successful upload
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			upload_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			signs INTEGER NOT NULL DEFAULT 0,
			frames INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Signs table - labelled, trimmed recordings within a submission
		`CREATE TABLE IF NOT EXISTS signs (
			id TEXT PRIMARY KEY,
			submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			trim_start REAL NOT NULL,
			trim_end REAL NOT NULL,
			frames INTEGER NOT NULL,
			saved_at DATETIME NOT NULL
		)`,

		// Sign frames table - one glove message per row, as a channel map
		`CREATE TABLE IF NOT EXISTS sign_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sign_id TEXT NOT NULL REFERENCES signs(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			received_at DATETIME NOT NULL,
			data TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_submissions_language ON submissions(language)`,
		`CREATE INDEX IF NOT EXISTS idx_signs_submission_id ON signs(submission_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sign_frames_sign_id ON sign_frames(sign_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
