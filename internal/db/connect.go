package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB, tunes the pool and ensures the add-on schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:failedq.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/failedq?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	tunePool(driver, db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `
			PRAGMA foreign_keys = ON;
			PRAGMA journal_mode = WAL;
			PRAGMA busy_timeout = 5000;
		`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragmas: %w", err)
		}
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func tunePool(driver Driver, db *sql.DB) {
	switch driver {
	case DriverSQLite:
		// one writer; also keeps shared in-memory databases alive
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	return execScript(ctx, db, schema)
}

// EnsureHostSchema creates minimal versions of the host quiz platform's
// quiz/question/category tables. Used in offline mode and tests; in
// production the host owns these tables.
func EnsureHostSchema(ctx context.Context, db *sql.DB, prefix string) error {
	return execScript(ctx, db, strings.ReplaceAll(schemaHost, "{p}", prefix))
}

// execScript runs the script in one call and falls back to statement-by-statement
// execution for drivers that reject multi-statement strings.
func execScript(ctx context.Context, db *sql.DB, script string) error {
	if _, err := db.ExecContext(ctx, script); err == nil {
		return nil
	}
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed at: %s\nerror: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS failed_questions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  quiz_id BIGINT NOT NULL,
  question_id BIGINT NOT NULL,
  category_id BIGINT NOT NULL,
  consecutive_correct INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  last_attempt_at BIGINT NOT NULL,
  created_at BIGINT NOT NULL,
  UNIQUE (user_id, question_id)
);
CREATE INDEX IF NOT EXISTS idx_failed_questions_user_active ON failed_questions (user_id, is_active, category_id);
CREATE INDEX IF NOT EXISTS idx_failed_questions_quiz ON failed_questions (quiz_id);

CREATE TABLE IF NOT EXISTS failedq_options (
  name TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS completion_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  hook TEXT NOT NULL,
  event_key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS failed_questions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  quiz_id BIGINT NOT NULL,
  question_id BIGINT NOT NULL,
  category_id BIGINT NOT NULL,
  consecutive_correct INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  last_attempt_at BIGINT NOT NULL,
  created_at BIGINT NOT NULL,
  UNIQUE (user_id, question_id)
);
CREATE INDEX IF NOT EXISTS idx_failed_questions_user_active ON failed_questions (user_id, is_active, category_id);
CREATE INDEX IF NOT EXISTS idx_failed_questions_quiz ON failed_questions (quiz_id);

CREATE TABLE IF NOT EXISTS failedq_options (
  name TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS completion_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  hook TEXT NOT NULL,
  event_key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`

const schemaHost = `
CREATE TABLE IF NOT EXISTS {p}quizes (
  id BIGINT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  is_failed_questions_quiz INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS {p}categories (
  id BIGINT PRIMARY KEY,
  title TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS {p}questions (
  id BIGINT PRIMARY KEY,
  question TEXT NOT NULL DEFAULT '',
  category_id BIGINT
);
`
