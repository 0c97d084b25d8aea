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

const shiftColumns = `id, operator_id, operator_name, site, shift_type, device_id, started_at, ended_at,
	total_units, avg_rate, summary, state_version, active_order_snapshot, updated_at`

type ShiftHandler struct {
	db  *db.Pool
	cfg cliparse.Config
}

func NewShiftHandler(db *db.Pool, cfg cliparse.Config) *ShiftHandler {
	return &ShiftHandler{db: db, cfg: cfg}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(row rowScanner) (models.ShiftSession, error) {
	var (
		s          models.ShiftSession
		endedAt    sql.NullTime
		totalUnits sql.NullInt64
		avgRate    sql.NullFloat64
		summary    sql.NullString
		snapshot   sql.NullString
		updatedAt  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.OperatorID, &s.OperatorName, &s.Site, &s.ShiftType, &s.DeviceID,
		&s.StartedAt, &endedAt, &totalUnits, &avgRate, &summary, &s.StateVersion, &snapshot, &updatedAt)
	if err != nil {
		return models.ShiftSession{}, err
	}

	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	if totalUnits.Valid {
		n := int(totalUnits.Int64)
		s.TotalUnits = &n
	}
	if avgRate.Valid {
		s.AvgRate = &avgRate.Float64
	}
	if updatedAt.Valid {
		s.UpdatedAt = &updatedAt.Time
	}
	s.Summary = rawJSON(summary)
	s.ActiveOrderSnapshot = rawJSON(snapshot)
	return s, nil
}

func getShift(ctx context.Context, pool *db.Pool, id string) (models.ShiftSession, error) {
	s, err := scanShift(pool.QueryRowContext(ctx, "SELECT "+shiftColumns+" FROM shift_sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShiftSession{}, ErrNotFound
	}
	if err != nil {
		return models.ShiftSession{}, fmt.Errorf("load shift %s: %w", id, err)
	}
	return s, nil
}

func openShiftFor(ctx context.Context, pool *db.Pool, operatorID string) (models.ShiftSession, error) {
	s, err := scanShift(pool.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shift_sessions
		WHERE operator_id = ? AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, operatorID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShiftSession{}, ErrNotFound
	}
	if err != nil {
		return models.ShiftSession{}, fmt.Errorf("load open shift: %w", err)
	}
	return s, nil
}

// StartShift handles POST /api/shifts/start
// The operator is the caller. An already open shift is returned with 200
// instead of opening a second one.
func (h *ShiftHandler) StartShift(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceShift, auth.ActionWrite) {
		return
	}

	var req models.StartShiftRequest
	if err := parseOptionalJSON(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	existing, err := openShiftFor(r.Context(), h.db, claims.UserID())
	if err == nil {
		slog.Info("shift already open", "shift_id", existing.ID, "operator_id", claims.UserID())
		middleware.JSONResponse(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, ErrNotFound) {
		slog.Error("failed to query open shift", "error", err)
		middleware.InternalError(w, r)
		return
	}

	operatorName := strings.TrimSpace(req.OperatorName)
	if operatorName == "" {
		operatorName, err = displayNameOf(r.Context(), h.db, claims.UserID())
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("failed to load user", "error", err)
			middleware.InternalError(w, r)
			return
		}
	}

	shift := models.ShiftSession{
		ID:           auth.NewID(),
		OperatorID:   claims.UserID(),
		OperatorName: operatorName,
		Site:         strings.TrimSpace(req.Site),
		ShiftType:    strings.TrimSpace(req.ShiftType),
		DeviceID:     deviceIDFrom(r, strings.TrimSpace(req.DeviceID)),
		StartedAt:    time.Now().UTC(),
	}

	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO shift_sessions (id, operator_id, operator_name, site, shift_type, device_id, started_at, state_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`, shift.ID, shift.OperatorID, shift.OperatorName, shift.Site, shift.ShiftType, shift.DeviceID, shift.StartedAt)
	if err != nil {
		slog.Error("failed to insert shift", "error", err)
		middleware.InternalError(w, r)
		return
	}

	logUsageEvent(r.Context(), h.db, models.EventShiftStart, map[string]any{
		"shift_id":    shift.ID,
		"operator_id": shift.OperatorID,
		"site":        shift.Site,
		"shift_type":  shift.ShiftType,
	}, clientIPHash(r, h.cfg))

	slog.Info("shift started", "shift_id", shift.ID, "operator_id", shift.OperatorID)
	middleware.JSONResponse(w, http.StatusCreated, shift)
}

// EndShift handles POST /api/shifts/end
func (h *ShiftHandler) EndShift(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req models.EndShiftRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ShiftID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "shift_id is required")
		return
	}

	shift, err := getShift(r.Context(), h.db, req.ShiftID)
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Shift not found")
		return
	}
	if err != nil {
		slog.Error("failed to query shift", "error", err)
		middleware.InternalError(w, r)
		return
	}

	if !ownsOr(claims, shift.OperatorID, auth.ResourceShift, auth.ActionWriteAny) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your shift")
		return
	}
	if shift.EndedAt != nil {
		middleware.ConflictResponse(w, models.CodeShiftEnded, "Shift already ended", nil)
		return
	}

	now := time.Now().UTC()
	res, err := h.db.ExecContext(r.Context(), `
		UPDATE shift_sessions
		SET ended_at = ?,
			total_units = COALESCE(?, total_units),
			avg_rate = COALESCE(?, avg_rate),
			summary = COALESCE(?, summary),
			updated_at = ?
		WHERE id = ? AND ended_at IS NULL
	`, now, req.TotalUnits, req.AvgRate, nullJSON(req.Summary), now, shift.ID)
	if err != nil {
		slog.Error("failed to end shift", "error", err)
		middleware.InternalError(w, r)
		return
	}
	n, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to end shift", "error", err)
		middleware.InternalError(w, r)
		return
	}
	if n == 0 {
		middleware.ConflictResponse(w, models.CodeShiftEnded, "Shift already ended", nil)
		return
	}

	ended, err := getShift(r.Context(), h.db, shift.ID)
	if err != nil {
		slog.Error("failed to reload shift", "error", err)
		middleware.InternalError(w, r)
		return
	}

	logUsageEvent(r.Context(), h.db, models.EventShiftEnd, map[string]any{
		"shift_id":    ended.ID,
		"operator_id": ended.OperatorID,
		"total_units": ended.TotalUnits,
		"avg_rate":    ended.AvgRate,
	}, clientIPHash(r, h.cfg))

	slog.Info("shift ended", "shift_id", ended.ID, "operator_id", ended.OperatorID)
	middleware.JSONResponse(w, http.StatusOK, ended)
}

// GetActive handles GET /api/shifts/active
// Supervisors may pass ?operator_id= to look at someone else's shift.
func (h *ShiftHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	operatorID := r.URL.Query().Get("operator_id")
	if operatorID == "" {
		operatorID = claims.UserID()
	}
	if !ownsOr(claims, operatorID, auth.ResourceShift, auth.ActionReadAny) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not allowed")
		return
	}

	shift, err := openShiftFor(r.Context(), h.db, operatorID)
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "No active shift")
		return
	}
	if err != nil {
		slog.Error("failed to query active shift", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, shift)
}

// GetRecent handles GET /api/shifts/recent?limit=
func (h *ShiftHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceShift, auth.ActionReadAny) {
		return
	}

	limit := parseLimit(r, 50, 500)
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT `+shiftColumns+`
		FROM shift_sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		slog.Error("failed to query recent shifts", "error", err)
		middleware.InternalError(w, r)
		return
	}
	defer rows.Close()

	shifts := []models.ShiftSession{}
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			slog.Error("failed to scan shift", "error", err)
			middleware.InternalError(w, r)
			return
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate shifts", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, shifts)
}
