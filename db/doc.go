// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db owns the connection pool and the database schema.

# Connection Pool

Open returns a *Pool for the configured driver:

	pool, err := db.Open(ctx, cfg)

Three drivers are registered: "sqlite" (modernc.org/sqlite, the default and
the one tests use), "postgres" (lib/pq) and "pgx" (jackc/pgx stdlib). The
pool is created once in main and injected into every handler; there is no
package-level connection state.

All SQL in this repository is written with ? placeholders. Pool and Tx
rebind them for the active driver, so Postgres receives $1, $2, ...

# Migrations

Migrate applies numbered migrations and records each one in the
schema_version table:

	if err := db.Migrate(ctx, pool); err != nil {
		// ...
	}

Tables:

  - users: PIN/password accounts and roles
  - user_states, device_states: MainState JSON documents
  - usage_events: append-only activity log with summarised details
  - shift_sessions: shifts, including state_version and active_order_snapshot
  - order_records, order_events: immutable closed-order summaries
  - devices: device registry (last user, last seen)
  - admin_messages: supervisor to picker messages
  - warehouse_locations: shared aisle/bay occupancy map

To change the schema, append a migration; never edit one that has shipped.
*/
package db
