// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the warehouse tracker API.

# Route Registration

NewRouter returns a chi router wrapped in the shared middleware stack
(request id, panic recovery, CORS, security headers):

	handler := router.NewRouter(pool, cfg)

# Endpoints

Public:

	GET  /health
	POST /api/auth/register  - Register (non-picker roles need an admin token)
	POST /api/auth/login     - Username/password login
	POST /auth/login_pin     - PIN login from a shared device
	POST /auth/role_access   - Unlock a role-gated screen with a PIN

Bearer token required:

	GET   /api/auth/me
	GET   /api/state                     - Tracker document
	POST  /api/state                     - Save tracker document
	POST  /api/shifts/start
	POST  /api/shifts/end
	GET   /api/shifts/active
	GET   /api/shifts/recent             - Supervisors
	GET   /api/shift/{id}/state
	PATCH /api/shift/{id}/state          - Versioned active-order patch
	POST  /api/orders/record
	GET   /api/history/operator/{id}
	GET   /api/history/operator/{id}/export
	GET   /api/devices/me
	GET   /api/admin/devices             - Supervisors
	GET   /api/admin/logs                - Supervisors
	GET   /api/admin/usage/summary       - Supervisors
	POST  /api/admin/messages            - Supervisors
	GET   /api/messages
	POST  /api/messages/{id}/read
	POST  /api/warehouse/locations/bulk  - Supervisors
	GET   /api/warehouse/locations/summary
	POST  /api/warehouse/locations/{aisle}/{bay}/toggle

Role checks live in the handlers and go through auth.Authorize.
*/
package router
