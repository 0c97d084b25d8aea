// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// It is closed automatically when the test ends.
func SetupTestDB(t *testing.T) *db.Pool {
	t.Helper()

	pool, err := db.Open(context.Background(), GetTestConfig())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := db.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return pool
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  ":memory:",
		DatabaseType: cliparse.DatabaseSQLite,
		JWTSecret:    "test-jwt-secret",
		TokenTTL:     time.Hour,
		Location:     time.UTC,
		IPHashSalt:   "test-ip-salt",
	}
}

// CreateTestUser inserts a user whose PIN/password equals its username
func CreateTestUser(t *testing.T, pool *db.Pool, username, displayName, role string) models.User {
	t.Helper()

	hash, err := auth.HashSecret(username)
	if err != nil {
		t.Fatalf("Failed to hash test secret: %v", err)
	}

	user := models.User{
		ID:           auth.NewID(),
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = pool.ExecContext(context.Background(), `
		INSERT INTO users (id, username, password_hash, display_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.PasswordHash, user.DisplayName, user.Role, user.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// CreateTestShift inserts an open shift for the user and returns its ID
func CreateTestShift(t *testing.T, pool *db.Pool, user models.User) string {
	t.Helper()

	id := auth.NewID()
	_, err := pool.ExecContext(context.Background(), `
		INSERT INTO shift_sessions (id, operator_id, operator_name, site, shift_type, device_id, started_at, state_version)
		VALUES (?, ?, ?, 'TEST', '9h', 'test-device', ?, 0)
	`, id, user.ID, user.DisplayName, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test shift: %v", err)
	}

	return id
}

// TokenFor mints a bearer token for the user
func TokenFor(t *testing.T, cfg cliparse.Config, user models.User) string {
	t.Helper()

	token, err := auth.IssueToken(user.ID, user.Username, user.Role, cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, bytes.NewReader([]byte(b)))
		req.Header.Set("Content-Type", "application/json")
	default:
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// MakeAuthedRequest is MakeRequest for a signed-in user: it sets the bearer
// header and the claims RequireAuth would have placed in the context, so
// handlers can be called directly
func MakeAuthedRequest(t *testing.T, cfg cliparse.Config, user models.User, method, path string, body any, headers map[string]string) *http.Request {
	t.Helper()

	token := TokenFor(t, cfg, user)
	req := MakeRequest(method, path, body, headers)
	req.Header.Set("Authorization", "Bearer "+token)

	claims, err := auth.ParseToken(token, cfg.JWTSecret)
	if err != nil {
		t.Fatalf("Failed to parse test token: %v", err)
	}
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
