// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the warehouse tracker API server.

The tracker records order-picking productivity for warehouse operators:
the client's full tracker document, shift sessions with a versioned
active-order snapshot, closed-order records and their history, a device
registry for supervisors, admin messages and the bay occupancy map.

# Starting the Server

Configuration comes from flags, the environment or a .env file:

	DATABASE_URL=wqt.db JWT_SECRET=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

# Configuration

Required settings:

  - DATABASE_URL (-d): DSN or SQLite file path
  - JWT_SECRET (--jwt-secret): HMAC secret for bearer tokens

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or pgx (default: sqlite)
  - WAREHOUSE_TZ (--tz): IANA zone used for live-rate wall clocks
  - TOKEN_TTL (--token-ttl): Bearer token lifetime
  - IP_HASH_SALT: Salt for hashed client IPs in the usage log
  - ADMIN_USERNAME / ADMIN_PASSWORD: Bootstrap admin created at startup

# Architecture

  - handlers: HTTP request handlers
  - router: Route table (chi)
  - middleware: Request ids, recovery, CORS, auth, logging, JSON helpers
  - tracker: Tracker document migrations, live rate, order summaries, dedupe
  - models: Request/response and domain types
  - auth: Tokens, hashing and the role policy
  - db: Connection pool and schema migrations
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
