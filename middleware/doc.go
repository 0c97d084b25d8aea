// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	r.Get("/api/state", middleware.WithLogging(stateHandler.GetState))

Logs request start (method, path, remote, request_id) and completion
(status, duration_ms, request_id). The request id comes from chi's
RequestID middleware, which must run first.

# Stack

The router installs, outermost first:

	chimw.RequestID, middleware.Recover, middleware.CORS, middleware.SecurityHeaders(...)

Recover turns a panic into a JSON 500 with the request id and logs the
stack. CORS allows GET, POST, PUT, PATCH, DELETE, OPTIONS with headers
Content-Type, Authorization, X-Device-ID.

# Bearer Auth

	r.Use(middleware.RequireAuth(cfg.JWTSecret))

	claims, _ := middleware.ClaimsFromContext(r.Context())

Handlers that accept an optional token (registration) call BearerClaims
directly.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.InternalError(w, r)
	middleware.ConflictResponse(w, models.CodeVersionConflict, "message", serverState)

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Used for IP hashing on usage events.
*/
package middleware
