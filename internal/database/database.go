package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the gate_passes table if needed. Keeping the migration
// in code lets docker-compose bootstrap a working stack with no extra steps.
// The primary-key constraint on reference is what gives Create its atomic
// insert-or-fail semantics; items live in a JSONB array, which round-trips
// the line items in entry order with their string values untouched.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS gate_passes (
	reference TEXT PRIMARY KEY,
	requested_by TEXT NOT NULL,
	send_to TEXT NOT NULL,
	purpose TEXT NOT NULL DEFAULT '',
	return_date TEXT NOT NULL DEFAULT '',
	dispatch_type TEXT NOT NULL,
	vehicle_number TEXT NOT NULL DEFAULT '',
	items JSONB NOT NULL,
	certified_signature TEXT NOT NULL DEFAULT '',
	authorized_signature TEXT NOT NULL DEFAULT '',
	received_signature TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_gate_passes_status ON gate_passes(status);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
