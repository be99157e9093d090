// Package db provides PostgreSQL persistence for postings, scores,
// proposals, and the bid submission ledger.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// schema is the full table layout. Statements are idempotent so EnsureSchema
// can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS postings (
	id           BIGINT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	budget_min   DOUBLE PRECISION NOT NULL DEFAULT 0,
	budget_max   DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency     TEXT NOT NULL DEFAULT 'USD',
	engagement   TEXT NOT NULL DEFAULT 'fixed',
	skills       JSONB,
	bid_count    INTEGER NOT NULL DEFAULT 0,
	submit_date  TIMESTAMPTZ,
	owner_info   JSONB,
	status       TEXT NOT NULL DEFAULT 'fetched',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS posting_scores (
	posting_id   BIGINT PRIMARY KEY REFERENCES postings(id) ON DELETE CASCADE,
	score        DOUBLE PRECISION NOT NULL,
	grade        TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	breakdown    JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS proposals (
	id           BIGSERIAL PRIMARY KEY,
	posting_id   BIGINT NOT NULL REFERENCES postings(id) ON DELETE CASCADE,
	text         TEXT NOT NULL,
	model        TEXT NOT NULL DEFAULT '',
	strategy     TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 1,
	validation   JSONB,
	latency_ms   BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS proposals_posting_idx ON proposals (posting_id, created_at DESC);

CREATE TABLE IF NOT EXISTS bid_submissions (
	id              UUID PRIMARY KEY,
	posting_id      BIGINT NOT NULL,
	remote_bid_id   BIGINT NOT NULL DEFAULT 0,
	amount          DOUBLE PRECISION NOT NULL,
	period_days     INTEGER NOT NULL,
	proposal        TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'active',
	confirmation_id TEXT NOT NULL DEFAULT '',
	submitted_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bid_submissions_posting_idx ON bid_submissions (posting_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   BIGINT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_log_entity_idx ON audit_log (entity_type, entity_id);

CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	phone         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates any missing tables and indexes
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
