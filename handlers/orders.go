// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
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
	"github.com/danielhkuo/wqt-backend/tracker"
)

type OrderHandler struct {
	db  *db.Pool
	cfg cliparse.Config
}

func NewOrderHandler(db *db.Pool, cfg cliparse.Config) *OrderHandler {
	return &OrderHandler{db: db, cfg: cfg}
}

// RecordOrder handles POST /api/orders/record
// Derives the closed-order summary once and stores it with its event.
// Records are never updated afterwards.
func (h *OrderHandler) RecordOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceOrder, auth.ActionWrite) {
		return
	}

	var req models.RecordOrderRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var order map[string]any
	if err := json.Unmarshal(req.Order, &order); err != nil || order == nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "order must be a JSON object")
		return
	}

	var shiftID *string
	if id := strings.TrimSpace(req.ShiftID); id != "" {
		shift, err := getShift(r.Context(), h.db, id)
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
		shiftID = &id
	}

	operatorName, err := displayNameOf(r.Context(), h.db, claims.UserID())
	if err != nil && !errors.Is(err, ErrNotFound) {
		slog.Error("failed to load user", "error", err)
		middleware.InternalError(w, r)
		return
	}

	summary := tracker.SummarizeOrder(order)
	record := models.OrderRecord{
		ID:           auth.NewID(),
		OperatorID:   claims.UserID(),
		OperatorName: operatorName,
		DeviceID:     deviceIDFrom(r, strings.TrimSpace(req.DeviceID)),
		ShiftID:      shiftID,
		OrderName:    summary.Name,
		Units:        summary.Units,
		Pallets:      summary.Pallets,
		Locations:    summary.Locations,
		StartHHMM:    summary.Start,
		CloseHHMM:    summary.Close,
		DurationMin:  summary.DurationMin,
		OrderRateUh:  summary.OrderRateUh,
		ExclMin:      summary.ExclMin,
		Remaining:    summary.Remaining,
		ClosedEarly:  summary.ClosedEarly,
		EarlyReason:  summary.EarlyReason,
		CreatedAt:    time.Now().UTC(),
	}

	payload := nullJSON(req.Order)
	if !payload.Valid {
		payload.String = "{}"
	}

	if err := insertOrderRecord(r.Context(), h.db, record, payload.String); err != nil {
		slog.Error("failed to record order", "error", err)
		middleware.InternalError(w, r)
		return
	}

	logUsageEvent(r.Context(), h.db, models.EventOrderClosed, map[string]any{
		"order_id":      record.ID,
		"operator_id":   record.OperatorID,
		"order_name":    record.OrderName,
		"units":         record.Units,
		"order_rate_uh": record.OrderRateUh,
		"closed_early":  record.ClosedEarly,
	}, clientIPHash(r, h.cfg))

	slog.Info("order recorded", "order_id", record.ID, "operator_id", record.OperatorID, "units", record.Units)
	middleware.JSONResponse(w, http.StatusCreated, record)
}

// insertOrderRecord writes the record and its close event atomically
func insertOrderRecord(ctx context.Context, pool *db.Pool, rec models.OrderRecord, payload string) error {
	tx, err := pool.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_records (
			id, operator_id, operator_name, device_id, shift_id, order_name,
			units, pallets, locations, start_hhmm, close_hhmm, duration_min,
			order_rate_uh, excl_min, remaining, closed_early, early_reason,
			payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.OperatorID, rec.OperatorName, rec.DeviceID, rec.ShiftID, rec.OrderName,
		rec.Units, rec.Pallets, rec.Locations, rec.StartHHMM, rec.CloseHHMM, rec.DurationMin,
		rec.OrderRateUh, rec.ExclMin, rec.Remaining, rec.ClosedEarly, rec.EarlyReason,
		payload, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order record: %w", err)
	}

	eventType := models.OrderEventClosed
	if rec.ClosedEarly {
		eventType = models.OrderEventClosedEarly
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_events (id, order_id, event_type, created_at)
		VALUES (?, ?, ?, ?)
	`, auth.NewID(), rec.ID, eventType, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}

	return tx.Commit()
}
