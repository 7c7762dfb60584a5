package store

// migrate creates all tables if they don't exist. The schema is
// additive; later versions extend it with idempotent ALTERs.
func (s *SQLiteStore) migrate() error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	agent_name TEXT NOT NULL,
	window_start TEXT NOT NULL,
	window_end TEXT NOT NULL,
	event_count INTEGER NOT NULL DEFAULT 0,
	factor_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'running',
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS factors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	agent_name TEXT NOT NULL,
	preference TEXT NOT NULL DEFAULT '',
	length_tokens INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	factor_id INTEGER NOT NULL REFERENCES factors(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	asset TEXT NOT NULL DEFAULT '',
	rating INTEGER NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_factors_run ON factors(run_id);
CREATE INDEX IF NOT EXISTS idx_factors_agent_date ON factors(agent_name, date);
CREATE INDEX IF NOT EXISTS idx_observations_factor ON observations(factor_id);
`
	_, err := s.db.Exec(ddl)
	return err
}
