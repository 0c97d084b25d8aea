// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
)

var (
	ErrVersionConflict = errors.New("shift state version conflict")
	ErrBlockedClear    = errors.New("clearing the active order needs explicit confirmation")
	ErrShiftEnded      = errors.New("shift has ended")
)

type shiftState struct {
	OperatorID string
	Ended      bool
	models.ShiftState
}

func loadShiftState(ctx context.Context, pool *db.Pool, id string) (shiftState, error) {
	var (
		s        shiftState
		endedAt  sql.NullTime
		snapshot sql.NullString
	)
	err := pool.QueryRowContext(ctx, `
		SELECT operator_id, ended_at, state_version, active_order_snapshot
		FROM shift_sessions
		WHERE id = ?
	`, id).Scan(&s.OperatorID, &endedAt, &s.StateVersion, &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return shiftState{}, ErrNotFound
	}
	if err != nil {
		return shiftState{}, fmt.Errorf("load shift state %s: %w", id, err)
	}
	s.Ended = endedAt.Valid
	s.ActiveOrderSnapshot = rawJSON(snapshot)
	return s, nil
}

// checkShiftPatch decides whether a patch built on baseVersion may replace
// the current snapshot. Order matters: an ended shift and a stale version
// are reported before the destructive-clear guard.
func checkShiftPatch(cur shiftState, baseVersion int, snapshot json.RawMessage, explicitClear bool) error {
	if cur.Ended {
		return ErrShiftEnded
	}
	if baseVersion != cur.StateVersion {
		return ErrVersionConflict
	}
	if !isEmptyJSON(cur.ActiveOrderSnapshot) && isEmptyJSON(snapshot) && !explicitClear {
		return ErrBlockedClear
	}
	return nil
}

// applyShiftPatch writes the snapshot only if the row is still at
// baseVersion, bumping the version by one. Losing a race to another
// writer is ErrVersionConflict.
func applyShiftPatch(ctx context.Context, pool *db.Pool, id string, baseVersion int, snapshot json.RawMessage) error {
	res, err := pool.ExecContext(ctx, `
		UPDATE shift_sessions
		SET state_version = state_version + 1,
			active_order_snapshot = ?,
			updated_at = ?
		WHERE id = ? AND state_version = ? AND ended_at IS NULL
	`, nullJSON(snapshot), time.Now().UTC(), id, baseVersion)
	if err != nil {
		return fmt.Errorf("update shift state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shift state: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// GetShiftState handles GET /api/shift/{id}/state
func (h *ShiftHandler) GetShiftState(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	cur, err := loadShiftState(r.Context(), h.db, r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Shift not found")
		return
	}
	if err != nil {
		slog.Error("failed to load shift state", "error", err)
		middleware.InternalError(w, r)
		return
	}
	if !ownsOr(claims, cur.OperatorID, auth.ResourceShift, auth.ActionReadAny) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your shift")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, cur.ShiftState)
}

// PatchShiftState handles PATCH /api/shift/{id}/state
// Query: base_version (required), explicit_clear_active_order, request_id, device_id.
// Body: {"active_order_snapshot": <object|null>}.
func (h *ShiftHandler) PatchShiftState(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	shiftID := r.PathValue("id")
	q := r.URL.Query()

	baseVersion, err := strconv.Atoi(q.Get("base_version"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "base_version must be an integer")
		return
	}
	explicitClear, _ := strconv.ParseBool(q.Get("explicit_clear_active_order"))
	requestID := q.Get("request_id")
	if requestID == "" {
		requestID = chimw.GetReqID(r.Context())
	}
	deviceID := deviceIDFrom(r, q.Get("device_id"))

	var patch models.ShiftStatePatch
	if err := parseOptionalJSON(r, &patch); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !isEmptyJSON(patch.ActiveOrderSnapshot) {
		var obj map[string]any
		if err := json.Unmarshal(patch.ActiveOrderSnapshot, &obj); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "active_order_snapshot must be an object or null")
			return
		}
	}

	cur, err := loadShiftState(r.Context(), h.db, shiftID)
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Shift not found")
		return
	}
	if err != nil {
		slog.Error("failed to load shift state", "error", err)
		middleware.InternalError(w, r)
		return
	}
	if !ownsOr(claims, cur.OperatorID, auth.ResourceShift, auth.ActionWriteAny) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your shift")
		return
	}

	err = checkShiftPatch(cur, baseVersion, patch.ActiveOrderSnapshot, explicitClear)
	if err == nil {
		err = applyShiftPatch(r.Context(), h.db, shiftID, baseVersion, patch.ActiveOrderSnapshot)
		if errors.Is(err, ErrVersionConflict) {
			// Lost the race; report against what won
			if latest, loadErr := loadShiftState(r.Context(), h.db, shiftID); loadErr == nil {
				cur = latest
				if cur.Ended {
					err = ErrShiftEnded
				}
			}
		}
	}

	logArgs := []any{
		"shift_id", shiftID,
		"request_id", requestID,
		"device_id", deviceID,
		"user_id", claims.UserID(),
		"base_version", baseVersion,
		"server_version", cur.StateVersion,
	}
	detail := map[string]any{
		"shift_id":       shiftID,
		"request_id":     requestID,
		"device_id":      deviceID,
		"base_version":   baseVersion,
		"server_version": cur.StateVersion,
	}

	switch {
	case err == nil:
		next := models.ShiftState{
			StateVersion:        baseVersion + 1,
			ActiveOrderSnapshot: rawJSON(nullJSON(patch.ActiveOrderSnapshot)),
		}
		slog.Info("shift state updated", append(logArgs, "state_version", next.StateVersion)...)
		middleware.JSONResponse(w, http.StatusOK, next)

	case errors.Is(err, ErrVersionConflict):
		slog.Warn("shift state version conflict", logArgs...)
		logUsageEvent(r.Context(), h.db, models.EventShiftConflict, detail, clientIPHash(r, h.cfg))
		middleware.ConflictResponse(w, models.CodeVersionConflict, "Shift state has changed; reload and retry", &cur.ShiftState)

	case errors.Is(err, ErrBlockedClear):
		slog.Warn("shift state clear blocked", logArgs...)
		logUsageEvent(r.Context(), h.db, models.EventShiftBlockedClear, detail, clientIPHash(r, h.cfg))
		middleware.ConflictResponse(w, models.CodeBlockedClear, "Refusing to clear the active order without explicit_clear_active_order=true", &cur.ShiftState)

	case errors.Is(err, ErrShiftEnded):
		slog.Warn("shift state patch on ended shift", logArgs...)
		middleware.ConflictResponse(w, models.CodeShiftEnded, "Shift has ended", &cur.ShiftState)

	default:
		slog.Error("failed to patch shift state", append(logArgs, "error", err)...)
		middleware.InternalError(w, r)
	}
}
