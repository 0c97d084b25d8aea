// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and row types for the WQT API.

# Request Types

Types for parsing incoming JSON:

  - RegisterRequest, LoginRequest, LoginPinRequest, RoleAccessRequest
  - StartShiftRequest, EndShiftRequest, ShiftStatePatch
  - RecordOrderRequest: {shift_id, device_id, order: <archived order>}
  - CreateMessageRequest, BulkLocationsRequest

# Domain Types

  - User: PIN or password account; PasswordHash is never serialised
  - ShiftSession: shift window with StateVersion and ActiveOrderSnapshot
  - OrderRecord: immutable closed-order summary
  - UsageEvent, AdminMessage, WarehouseLocation

The MainState document itself lives in package tracker because it is a
versioned JSON schema with its own migrations, not a table row.

# Errors

ErrorResponse is the envelope for every error:

	{"error": "Conflict", "message": "...", "code": "version_conflict",
	 "server_state": {"state_version": 4, "active_order_snapshot": {...}}}

Code distinguishes the two 409s of the shift-state PATCH
(CodeVersionConflict and CodeBlockedClear). RequestID is filled for 500s.

# Constants

Roles: RolePicker, RoleOperative, RoleSupervisor, RoleAdmin

Bay states: BayEmpty, BayFull
*/
package models
