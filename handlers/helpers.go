// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/middleware"
)

var ErrNotFound = errors.New("not found")

// maxBodyBytes caps request bodies. State documents carry a full shift of
// picks and history, so this is generous.
const maxBodyBytes = 4 << 20

// requireClaims returns the caller's verified claims or writes a 401
func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing or invalid token")
		return nil, false
	}
	return claims, true
}

// allowed checks the policy and writes a 403 when it says no
func allowed(w http.ResponseWriter, claims *auth.Claims, resource auth.Resource, action auth.Action) bool {
	if !auth.Authorize(claims.Role, resource, action) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not allowed")
		return false
	}
	return true
}

// ownsOr allows the owner, or anyone the policy grants the *Any action
func ownsOr(claims *auth.Claims, ownerID string, resource auth.Resource, action auth.Action) bool {
	return claims.UserID() == ownerID || auth.Authorize(claims.Role, resource, action)
}

// parseOptionalJSON decodes the body into v, treating an empty body as {}
func parseOptionalJSON(r *http.Request, v any) error {
	err := middleware.ParseJSONBody(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// parseLimit reads ?limit=, falling back to def and clamping to [1, max]
func parseLimit(r *http.Request, def, maxLimit int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}

// clientIPHash is the salted hash stored on usage events ("" without a salt)
func clientIPHash(r *http.Request, cfg cliparse.Config) string {
	return auth.HashIP(middleware.GetClientIP(r), cfg.IPHashSalt)
}

// deviceIDFrom prefers an explicit value and falls back to X-Device-ID
func deviceIDFrom(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return r.Header.Get("X-Device-ID")
}

// isEmptyJSON reports whether raw is absent, null or {}
func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err == nil && len(obj) == 0 {
		return true
	}
	return false
}

// nullJSON maps an empty document to SQL NULL and compacts everything else
func nullJSON(raw json.RawMessage) sql.NullString {
	if isEmptyJSON(raw) {
		return sql.NullString{}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return sql.NullString{String: string(raw), Valid: true}
	}
	return sql.NullString{String: buf.String(), Valid: true}
}

// rawJSON turns a nullable JSON column back into a RawMessage (nil for NULL)
func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}
