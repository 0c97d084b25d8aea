// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the warehouse tracker API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - AuthHandler: Registration, password and PIN login, role unlock
  - StateHandler: The client's tracker document
  - ShiftHandler: Shift sessions and the versioned active-order state
  - OrderHandler: Closed-order records
  - HistoryHandler: Per-operator history and XLSX export
  - DeviceHandler: Device registry and the supervisor device list
  - AdminHandler: Usage log and daily usage summary
  - MessageHandler: Supervisor messages
  - LocationHandler: Warehouse bay occupancy

Handlers are created via constructor functions that accept *db.Pool and Config:

	shiftHandler := handlers.NewShiftHandler(pool, cfg)

# Authorization

Routes other than auth sit behind middleware.RequireAuth. Handlers read
the verified claims from the request context and ask auth.Authorize
whether the caller's role may perform the action. Owner checks ("my
shift", "my history") fall back to the matching *_any action.

# Shift State

PATCH /api/shift/{id}/state replaces the active-order snapshot only when
base_version matches the stored version. Rejections are 409 with a code
and the server's current state:

	version_conflict  - base_version is stale, or another write won the race
	blocked_clear     - clearing a non-empty snapshot without explicit_clear_active_order=true
	shift_ended       - the shift is closed

# Usage Events

Saves, logins, shift starts and ends, closed orders and patch rejections
are appended to usage_events. Logging an event never fails the request.
*/
package handlers
