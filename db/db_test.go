// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/wqt-backend/cliparse"
)

func openMemory(t *testing.T) *Pool {
	t.Helper()
	pool, err := Open(context.Background(), cliparse.Config{
		DatabaseType: cliparse.DatabaseSQLite,
		DatabaseURL:  ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestMigrateFreshDatabase(t *testing.T) {
	pool := openMemory(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, pool))

	version, err := SchemaVersion(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion(), version)

	// Columns added by the shift versioning migration exist
	_, err = pool.ExecContext(ctx, `
		INSERT INTO shift_sessions (id, operator_id, started_at, state_version, active_order_snapshot)
		VALUES (?, ?, ?, ?, ?)
	`, "s1", "u1", time.Now().UTC(), 0, nil)
	assert.NoError(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool := openMemory(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool))

	var rows int
	require.NoError(t, pool.GetContext(ctx, &rows, "SELECT COUNT(*) FROM schema_version"))
	assert.Equal(t, len(migrations), rows)
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].version, migrations[i-1].version)
	}
}

func TestTxRollbackAfterCommit(t *testing.T) {
	pool := openMemory(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, pool))

	tx, err := pool.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO devices (id, created_at, last_seen_at) VALUES (?, ?, ?)",
		"dev-1", time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")

	var id string
	require.NoError(t, pool.GetContext(ctx, &id, "SELECT id FROM devices WHERE id = ?", "dev-1"))
	assert.Equal(t, "dev-1", id)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("file:x.db?mode=rwc"))
}
