// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
	"github.com/danielhkuo/wqt-backend/tracker"
)

type StateHandler struct {
	db  *db.Pool
	cfg cliparse.Config
	now func() time.Time
}

func NewStateHandler(db *db.Pool, cfg cliparse.Config) *StateHandler {
	return &StateHandler{db: db, cfg: cfg, now: time.Now}
}

// GetState handles GET /api/state
// Returns the caller's document, else the legacy row for X-Device-ID,
// else an empty document. A device row stamped by another operator is
// never served.
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceState, auth.ActionRead) {
		return
	}

	payload, fromDevice, err := h.loadPayload(r.Context(), claims.UserID(), r.Header.Get("X-Device-ID"))
	if err != nil {
		slog.Error("failed to load state", "user_id", claims.UserID(), "error", err)
		middleware.InternalError(w, r)
		return
	}

	doc := tracker.DefaultDocument()
	if payload != "" {
		doc = decodeStored(payload)
	}

	if fromDevice {
		if opID, _ := tracker.Operator(doc); opID != "" && opID != claims.UserID() {
			slog.Info("device state belongs to another operator", "user_id", claims.UserID(), "operator_id", opID)
			doc = tracker.DefaultDocument()
		} else {
			displayName, err := displayNameOf(r.Context(), h.db, claims.UserID())
			if errors.Is(err, ErrNotFound) {
				middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing or invalid token")
				return
			}
			if err != nil {
				slog.Error("failed to load user", "error", err)
				middleware.InternalError(w, r)
				return
			}
			tracker.StampOperator(doc, claims.UserID(), displayName)
		}
	}

	middleware.JSONResponse(w, http.StatusOK, doc)
}

// loadPayload reports whether the payload came from the legacy device row
func (h *StateHandler) loadPayload(ctx context.Context, userID, deviceID string) (string, bool, error) {
	var payload string
	err := h.db.QueryRowContext(ctx, "SELECT payload FROM user_states WHERE user_id = ?", userID).Scan(&payload)
	if err == nil {
		return payload, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("load user state: %w", err)
	}

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", false, nil
	}
	err = h.db.QueryRowContext(ctx, "SELECT payload FROM device_states WHERE device_id = ?", deviceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load device state: %w", err)
	}
	return payload, true, nil
}

// SaveState handles POST /api/state
// Migrates the document, stamps the caller's identity, injects the live
// rate and stores it. Returns the document as stored.
func (h *StateHandler) SaveState(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceState, auth.ActionWrite) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusRequestEntityTooLarge, "State document too large")
		return
	}

	doc, err := tracker.Decode(body)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "State must be a JSON object")
		return
	}
	if err := tracker.Migrate(doc); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	displayName, err := displayNameOf(r.Context(), h.db, claims.UserID())
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Missing or invalid token")
		return
	}
	if err != nil {
		slog.Error("failed to load user", "error", err)
		middleware.InternalError(w, r)
		return
	}

	tracker.StampOperator(doc, claims.UserID(), displayName)
	tracker.InjectLiveRate(doc, h.now(), h.cfg.Location)

	raw, err := json.Marshal(doc)
	if err != nil {
		slog.Error("failed to encode state", "error", err)
		middleware.InternalError(w, r)
		return
	}

	deviceID := strings.TrimSpace(r.Header.Get("X-Device-ID"))
	if err := h.store(r.Context(), claims.UserID(), deviceID, string(raw)); err != nil {
		slog.Error("failed to save state", "user_id", claims.UserID(), "error", err)
		middleware.InternalError(w, r)
		return
	}

	if deviceID != "" {
		touchDevice(r.Context(), h.db, deviceID, claims.UserID())
	}

	kind, summary := tracker.ClassifySave(doc)
	logUsageEvent(r.Context(), h.db, models.EventStateSave, map[string]any{
		"user_id":   claims.UserID(),
		"device_id": deviceID,
		"kind":      kind,
		"summary":   summary,
	}, clientIPHash(r, h.cfg))

	middleware.JSONResponse(w, http.StatusOK, doc)
}

// store upserts the user row and, when a device is named, its legacy
// device row in one transaction
func (h *StateHandler) store(ctx context.Context, userID, deviceID, payload string) error {
	now := time.Now().UTC()

	tx, err := h.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_states (user_id, device_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			device_id = excluded.device_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, userID, deviceID, payload, now)
	if err != nil {
		return fmt.Errorf("upsert user state: %w", err)
	}

	if deviceID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO device_states (device_id, payload, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (device_id) DO UPDATE SET
				payload = excluded.payload,
				updated_at = excluded.updated_at
		`, deviceID, payload, now)
		if err != nil {
			return fmt.Errorf("upsert device state: %w", err)
		}
	}

	return tx.Commit()
}
