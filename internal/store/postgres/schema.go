package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the tables and indexes the store relies on. Each
// statement is idempotent so EnsureSchema can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    sku TEXT NOT NULL,
    normalized_sku TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS import_jobs (
    id UUID PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'queued',
    spool_path TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    total_rows BIGINT,
    processed_rows BIGINT NOT NULL DEFAULT 0,
    created_count BIGINT NOT NULL DEFAULT 0,
    updated_count BIGINT NOT NULL DEFAULT 0,
    rejected_count BIGINT NOT NULL DEFAULT 0,
    rejected_samples JSONB NOT NULL DEFAULT '[]',
    cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
    claimed_at TIMESTAMPTZ,
    started_at TIMESTAMPTZ,
    finished_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE INDEX IF NOT EXISTS import_jobs_claim_idx
    ON import_jobs (created_at)
    WHERE status = 'queued'`,

	`CREATE TABLE IF NOT EXISTS product_events (
    seq BIGSERIAL PRIMARY KEY,
    kind TEXT NOT NULL,
    payload JSONB NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    attempts INT NOT NULL DEFAULT 0,
    next_attempt_at TIMESTAMPTZ NOT NULL,
    leased_at TIMESTAMPTZ,
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE INDEX IF NOT EXISTS product_events_lease_idx
    ON product_events (next_attempt_at, seq)
    WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS subscribers (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    target_url TEXT NOT NULL,
    event_kind TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    secret TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS delivery_attempts (
    id UUID PRIMARY KEY,
    event_seq BIGINT NOT NULL,
    subscriber_id UUID NOT NULL,
    attempt INT NOT NULL,
    status_code INT NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
)`,

	`CREATE INDEX IF NOT EXISTS delivery_attempts_event_idx
    ON delivery_attempts (event_seq)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
