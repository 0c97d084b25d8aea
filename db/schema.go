// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// migration is one numbered schema step. Statements are written in the
// subset of SQL shared by SQLite and PostgreSQL: TEXT ids, TIMESTAMP
// columns always written in UTC from Go, no server-side defaults for time.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "core tables",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				display_name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT 'picker' CHECK (role IN ('picker', 'operative', 'supervisor', 'admin')),
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS user_states (
				user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				device_id TEXT NOT NULL DEFAULT '',
				payload TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS device_states (
				device_id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS usage_events (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMP NOT NULL,
				category TEXT NOT NULL,
				detail TEXT NOT NULL DEFAULT '{}',
				ip_hash TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_events_created_at ON usage_events(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_events_category ON usage_events(category)`,
			`CREATE TABLE IF NOT EXISTS shift_sessions (
				id TEXT PRIMARY KEY,
				operator_id TEXT NOT NULL,
				operator_name TEXT NOT NULL DEFAULT '',
				site TEXT NOT NULL DEFAULT '',
				shift_type TEXT NOT NULL DEFAULT '',
				device_id TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP NOT NULL,
				ended_at TIMESTAMP,
				total_units INTEGER,
				avg_rate DOUBLE PRECISION,
				summary TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_shift_sessions_operator ON shift_sessions(operator_id)`,
			`CREATE INDEX IF NOT EXISTS idx_shift_sessions_started_at ON shift_sessions(started_at)`,
			`CREATE TABLE IF NOT EXISTS order_records (
				id TEXT PRIMARY KEY,
				operator_id TEXT NOT NULL,
				operator_name TEXT NOT NULL DEFAULT '',
				device_id TEXT NOT NULL DEFAULT '',
				shift_id TEXT REFERENCES shift_sessions(id) ON DELETE SET NULL,
				order_name TEXT NOT NULL DEFAULT '',
				units INTEGER NOT NULL DEFAULT 0,
				pallets INTEGER NOT NULL DEFAULT 0,
				locations INTEGER NOT NULL DEFAULT 0,
				start_hhmm TEXT NOT NULL DEFAULT '',
				close_hhmm TEXT NOT NULL DEFAULT '',
				duration_min INTEGER,
				order_rate_uh DOUBLE PRECISION,
				excl_min INTEGER NOT NULL DEFAULT 0,
				remaining INTEGER,
				closed_early BOOLEAN NOT NULL DEFAULT FALSE,
				early_reason TEXT NOT NULL DEFAULT '',
				payload TEXT NOT NULL DEFAULT '{}',
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_order_records_operator ON order_records(operator_id, created_at)`,
			`CREATE TABLE IF NOT EXISTS order_events (
				id TEXT PRIMARY KEY,
				order_id TEXT NOT NULL REFERENCES order_records(id) ON DELETE CASCADE,
				event_type TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id)`,
		},
	},
	{
		version: 2,
		name:    "devices, admin messages, warehouse locations",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS devices (
				id TEXT PRIMARY KEY,
				last_user_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				last_seen_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS admin_messages (
				id TEXT PRIMARY KEY,
				sender_id TEXT NOT NULL,
				recipient_id TEXT,
				body TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				read_at TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_admin_messages_recipient ON admin_messages(recipient_id)`,
			`CREATE TABLE IF NOT EXISTS warehouse_locations (
				aisle TEXT NOT NULL,
				bay INTEGER NOT NULL,
				state TEXT NOT NULL DEFAULT 'empty' CHECK (state IN ('empty', 'full')),
				updated_by TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (aisle, bay)
			)`,
		},
	},
	{
		// Versioned shift state for the optimistic-concurrency PATCH.
		version: 3,
		name:    "shift state versioning",
		statements: []string{
			`ALTER TABLE shift_sessions ADD COLUMN state_version INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE shift_sessions ADD COLUMN active_order_snapshot TEXT`,
			`ALTER TABLE shift_sessions ADD COLUMN updated_at TIMESTAMP`,
		},
	},
}

// CurrentVersion is the schema version after all migrations have run.
func CurrentVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate brings the schema up to date. Each migration runs in its own
// transaction together with its schema_version row, so a failed step
// leaves the database at the previous version. Safe to call repeatedly.
func Migrate(ctx context.Context, p *Pool) error {
	_, err := p.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := SchemaVersion(ctx, p)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, p, m); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		slog.Info("schema migration applied", "version", m.version, "name", m.name)
	}

	return nil
}

// SchemaVersion reports the highest applied migration (0 for a new database).
func SchemaVersion(ctx context.Context, p *Pool) (int, error) {
	var version int
	err := p.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("check schema version: %w", err)
	}
	return version, nil
}

func apply(ctx context.Context, p *Pool, m migration) error {
	tx, err := p.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
