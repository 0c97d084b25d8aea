// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
)

const userColumns = "id, username, password_hash, display_name, role, created_at"

type AuthHandler struct {
	db  *db.Pool
	cfg cliparse.Config
}

func NewAuthHandler(db *db.Pool, cfg cliparse.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

// Register handles POST /api/auth/register
// PIN users register with username = PIN. Only pickers may self-register;
// other roles need an admin bearer token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password == "" {
		req.Password = req.Username
	}
	if req.Role == "" {
		req.Role = models.RolePicker
	}
	if !auth.IsValidRole(req.Role) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "role must be one of: picker, operative, supervisor, admin")
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		req.DisplayName = req.Username
	}

	if req.Role != models.RolePicker {
		claims, err := middleware.BearerClaims(r, h.cfg.JWTSecret)
		if err != nil || !auth.Authorize(claims.Role, auth.ResourceUser, auth.ActionCreatePrivileged) {
			middleware.ErrorResponse(w, http.StatusForbidden, "Only admins can create this role")
			return
		}
	}

	hash, err := auth.HashSecret(req.Password)
	if errors.Is(err, auth.ErrSecretTooShort) {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to hash secret", "error", err)
		middleware.InternalError(w, r)
		return
	}

	user := models.User{
		ID:           auth.NewID(),
		Username:     req.Username,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := insertUser(r.Context(), h.db, user)
	if err != nil {
		slog.Error("failed to insert user", "error", err)
		middleware.InternalError(w, r)
		return
	}
	if !created {
		middleware.ErrorResponse(w, http.StatusConflict, "Username already taken")
		return
	}

	slog.Info("user registered", "user_id", user.ID, "role", user.Role)
	h.respondWithToken(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, ok := h.verify(w, r, req.Username, req.Password)
	if !ok {
		return
	}

	logUsageEvent(r.Context(), h.db, models.EventLogin, map[string]any{
		"user_id": user.ID,
		"method":  "password",
	}, clientIPHash(r, h.cfg))

	h.respondWithToken(w, r, http.StatusOK, user)
}

// LoginPin handles POST /auth/login_pin
func (h *AuthHandler) LoginPin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginPinRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, ok := h.verify(w, r, req.PinCode, req.PinCode)
	if !ok {
		return
	}

	deviceID := deviceIDFrom(r, strings.TrimSpace(req.DeviceID))
	if deviceID != "" {
		touchDevice(r.Context(), h.db, deviceID, user.ID)
	}

	logUsageEvent(r.Context(), h.db, models.EventLogin, map[string]any{
		"user_id":   user.ID,
		"device_id": deviceID,
		"method":    "pin",
	}, clientIPHash(r, h.cfg))

	slog.Info("pin login", "user_id", user.ID, "device_id", deviceID)
	h.respondWithToken(w, r, http.StatusOK, user)
}

// RoleAccess handles POST /auth/role_access
// Confirms that a PIN holder may unlock a role-gated screen on a shared device.
func (h *AuthHandler) RoleAccess(w http.ResponseWriter, r *http.Request) {
	var req models.RoleAccessRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, ok := h.verify(w, r, req.PinCode, req.PinCode)
	if !ok {
		return
	}

	if !auth.CanUnlockRole(user.Role, req.Role) {
		slog.Warn("role access denied", "user_id", user.ID, "requested_role", req.Role)
		middleware.ErrorResponse(w, http.StatusForbidden, "Access denied")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.RoleAccessResponse{
		OK:          true,
		Role:        req.Role,
		DisplayName: user.DisplayName,
		UserID:      user.ID,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var user models.User
	err := h.db.GetContext(r.Context(), &user, "SELECT "+userColumns+" FROM users WHERE id = ?", claims.UserID())
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, user)
}

// verify looks the user up and checks the secret. Unknown users and wrong
// secrets get the same 401 so callers cannot tell which one failed.
func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, username, secret string) (models.User, bool) {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "credentials are required")
		return models.User{}, false
	}

	user, err := findUserByUsername(r.Context(), h.db, username)
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		return models.User{}, false
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.InternalError(w, r)
		return models.User{}, false
	}

	if err := auth.VerifySecret(secret, user.PasswordHash); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		return models.User{}, false
	}

	return user, true
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	token, err := auth.IssueToken(user.ID, user.Username, user.Role, h.cfg.JWTSecret, h.cfg.TokenTTL)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, status, models.AuthResponse{
		Success:     true,
		Token:       token,
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	})
}

func findUserByUsername(ctx context.Context, pool *db.Pool, username string) (models.User, error) {
	var user models.User
	err := pool.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user %q: %w", username, err)
	}
	return user, nil
}

func displayNameOf(ctx context.Context, pool *db.Pool, userID string) (string, error) {
	var name string
	err := pool.QueryRowContext(ctx, "SELECT display_name FROM users WHERE id = ?", userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load display name: %w", err)
	}
	return name, nil
}

// insertUser reports false when the username is already taken
func insertUser(ctx context.Context, pool *db.Pool, user models.User) (bool, error) {
	res, err := pool.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, display_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`, user.ID, user.Username, user.PasswordHash, user.DisplayName, user.Role, user.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// EnsureAdmin creates the bootstrap admin from ADMIN_USERNAME/ADMIN_PASSWORD
// when it does not exist yet. An existing account is left alone.
func EnsureAdmin(ctx context.Context, pool *db.Pool, cfg cliparse.Config) error {
	if cfg.AdminUsername == "" {
		return nil
	}

	hash, err := auth.HashSecret(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	created, err := insertUser(ctx, pool, models.User{
		ID:           auth.NewID(),
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		DisplayName:  cfg.AdminUsername,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	if created {
		slog.Info("bootstrap admin created", "username", cfg.AdminUsername)
	}
	return nil
}
