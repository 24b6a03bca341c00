package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Memories table - durable facts about the child
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			fact TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Extension requests - "can you learn to..." wishes from chat,
		// picked up later by the code-generation pipeline
		`CREATE TABLE IF NOT EXISTS extension_requests (
			id TEXT PRIMARY KEY,
			phrase TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'built', 'declined')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_extension_requests_status ON extension_requests(status)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
