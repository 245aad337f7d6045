package store

import "database/sql"

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS canonical_jobs (
  id TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  work_mode TEXT NOT NULL DEFAULT 'Unknown',
  description TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  tags TEXT NOT NULL DEFAULT '[]',
  salary_min INTEGER NOT NULL DEFAULT 0,
  salary_max INTEGER NOT NULL DEFAULT 0,
  posted_at TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_canonical_jobs_fingerprint
ON canonical_jobs(fingerprint);`,

		`CREATE TABLE IF NOT EXISTS job_sources (
  canonical_id TEXT NOT NULL,
  source_id TEXT NOT NULL,
  external_id TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  first_seen TEXT NOT NULL,
  last_seen TEXT NOT NULL,
  PRIMARY KEY (source_id, external_id)
);`,
		`CREATE INDEX IF NOT EXISTS idx_job_sources_canonical
ON job_sources(canonical_id);`,

		`CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  keywords TEXT NOT NULL DEFAULT '{}',
  embedding TEXT NOT NULL DEFAULT '[]',
  must_have TEXT NOT NULL DEFAULT '[]',
  must_not_have TEXT NOT NULL DEFAULT '[]',
  allowed_regions TEXT NOT NULL DEFAULT '[]',
  title_keywords TEXT NOT NULL DEFAULT '[]',
  min_score REAL NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1
);`,

		`CREATE TABLE IF NOT EXISTS match_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  canonical_id TEXT NOT NULL,
  profile_id TEXT NOT NULL,
  score REAL NOT NULL,
  matched_keywords TEXT NOT NULL DEFAULT '[]',
  decision TEXT NOT NULL,
  computed_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_pair
ON match_events(canonical_id, profile_id, computed_at DESC);`,

		`CREATE TABLE IF NOT EXISTS task_journal (
  task_kind TEXT NOT NULL,
  target_id TEXT NOT NULL,
  state TEXT NOT NULL,
  attempt INTEGER NOT NULL DEFAULT 0,
  next_run_at TEXT NOT NULL DEFAULT '',
  last_error TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL,
  PRIMARY KEY (task_kind, target_id)
);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}
