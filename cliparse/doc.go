// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Connection string or sqlite file path (required)
  - DatabaseType: sqlite, postgres (lib/pq) or pgx (default: sqlite)
  - JWTSecret: HS256 signing secret for bearer tokens (required)
  - TokenTTL: Bearer token lifetime (default: 12h)
  - Location: Warehouse time zone used for live rates (default: UTC)
  - IPHashSalt: Salt for hashing client IPs in usage events (optional)
  - AdminUsername/AdminPassword: Bootstrap admin account (optional, together)

# Environment Variables

Flags fall back to environment variables:

	PORT          → -p
	DATABASE_URL  → -d
	DATABASE_TYPE → -t
	WAREHOUSE_TZ  → -tz
	TOKEN_TTL     → -token-ttl
	JWT_SECRET    → -jwt-secret

A .env file is loaded before the fallback runs (see -env-file). Values
already present in the environment win over the file, and CLI flags win
over both.
*/
package cliparse
