package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with diagrag-specific helpers.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Each new connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the file path the database was opened from.
func (d *DB) Path() string { return d.path }

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS diseases (
    name TEXT PRIMARY KEY,
    cause TEXT NOT NULL DEFAULT '',
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS disease_departments (
    disease TEXT NOT NULL REFERENCES diseases(name) ON DELETE CASCADE,
    department TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (disease, department)
);

CREATE TABLE IF NOT EXISTS disease_complications (
    disease TEXT NOT NULL REFERENCES diseases(name) ON DELETE CASCADE,
    complication TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (disease, complication)
);

CREATE INDEX IF NOT EXISTS idx_departments_department ON disease_departments(department);
CREATE INDEX IF NOT EXISTS idx_complications_complication ON disease_complications(complication);

CREATE TABLE IF NOT EXISTS diagnostic_sessions (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    symptoms TEXT NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL CHECK(outcome IN ('accepted','exhausted','fatal')),
    rejections INTEGER NOT NULL DEFAULT 0,
    diagnosis TEXT NOT NULL DEFAULT '',
    candidates TEXT NOT NULL DEFAULT '[]',
    enriched TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON diagnostic_sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_outcome ON diagnostic_sessions(outcome);

CREATE TABLE IF NOT EXISTS diagnostic_attempts (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES diagnostic_sessions(id) ON DELETE CASCADE,
    attempt_index INTEGER NOT NULL,
    verdict TEXT NOT NULL CHECK(verdict IN ('accepted','rejected','failed','final')),
    draft TEXT NOT NULL DEFAULT '',
    feedback TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_attempts_session ON diagnostic_attempts(session_id, attempt_index);
`
