package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:assess.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/assess?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer; also keeps a :memory: database alive across calls
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Timestamps are unix milliseconds.

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS assessments (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  assessment_type TEXT NOT NULL,
  time_limit_minutes INTEGER,
  passing_threshold REAL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  id TEXT NOT NULL,
  text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  display_order INTEGER NOT NULL,
  is_required INTEGER NOT NULL DEFAULT 0,
  options_json TEXT,
  image_url TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (assessment_id, id)
);

CREATE TABLE IF NOT EXISTS assessment_progress (
  assessment_id TEXT NOT NULL,
  respondent_id TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  last_question_index INTEGER NOT NULL DEFAULT 0,
  time_remaining_sec INTEGER,
  saved_at INTEGER NOT NULL,
  PRIMARY KEY (assessment_id, respondent_id)
);

CREATE TABLE IF NOT EXISTS results (
  id TEXT PRIMARY KEY,
  assessment_id TEXT NOT NULL,
  respondent_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  forced INTEGER NOT NULL DEFAULT 0,
  missing_json TEXT NOT NULL DEFAULT '[]',
  completed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS results_by_respondent ON results (assessment_id, respondent_id, completed_at);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., ResultCreated
  key TEXT NOT NULL,                         -- natural key: result id
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS assessments (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  assessment_type TEXT NOT NULL,
  time_limit_minutes INTEGER,
  passing_threshold DOUBLE PRECISION,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  id TEXT NOT NULL,
  text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  display_order INTEGER NOT NULL,
  is_required BOOLEAN NOT NULL DEFAULT FALSE,
  options_json TEXT,
  image_url TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (assessment_id, id)
);

CREATE TABLE IF NOT EXISTS assessment_progress (
  assessment_id TEXT NOT NULL,
  respondent_id TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  last_question_index INTEGER NOT NULL DEFAULT 0,
  time_remaining_sec INTEGER,
  saved_at BIGINT NOT NULL,
  PRIMARY KEY (assessment_id, respondent_id)
);

CREATE TABLE IF NOT EXISTS results (
  id TEXT PRIMARY KEY,
  assessment_id TEXT NOT NULL,
  respondent_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  forced BOOLEAN NOT NULL DEFAULT FALSE,
  missing_json TEXT NOT NULL DEFAULT '[]',
  completed_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS results_by_respondent ON results (assessment_id, respondent_id, completed_at);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
