package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per run of the recognizer.
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('debug', 'view', 'collect', 'serve')),
			schema TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// One row per classified hand. gesture holds the stable gesture id;
		// error is set when classification failed for that hand.
		`CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame INTEGER NOT NULL,
			hand INTEGER NOT NULL,
			handedness TEXT NOT NULL DEFAULT '',
			score REAL NOT NULL DEFAULT 0,
			gesture TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_detections_session_id ON detections(session_id, frame)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_gesture ON detections(gesture)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
