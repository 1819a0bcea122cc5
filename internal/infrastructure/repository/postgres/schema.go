package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey int64 = 2026031401

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	record_id TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS case_files (
	id TEXT PRIMARY KEY,
	reference TEXT NOT NULL UNIQUE,
	importer TEXT NOT NULL DEFAULT '',
	exporter TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	missing_documents JSONB NOT NULL DEFAULT '[]'::jsonb,
	missing_permits JSONB NOT NULL DEFAULT '[]'::jsonb,
	ready_for_validation BOOLEAN NOT NULL DEFAULT FALSE,
	tariff_code TEXT NOT NULL DEFAULT '',
	last_validation JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_records (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	kind TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	origin TEXT NOT NULL,
	analyzed_at TIMESTAMPTZ NOT NULL,
	matched_keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	content_hash TEXT NOT NULL DEFAULT '',
	case_id TEXT REFERENCES case_files(id),
	position INTEGER
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_case_files_created_at ON case_files(created_at);
CREATE INDEX IF NOT EXISTS idx_document_records_case ON document_records(case_id, position);
CREATE INDEX IF NOT EXISTS idx_document_records_unassigned ON document_records(analyzed_at) WHERE case_id IS NULL;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
