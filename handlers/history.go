// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
)

// payload is left out; records are served as their derived summary
const orderColumns = `id, operator_id, operator_name, device_id, shift_id, order_name, units, pallets,
	locations, start_hhmm, close_hhmm, duration_min, order_rate_uh, excl_min, remaining,
	closed_early, early_reason, created_at`

type HistoryHandler struct {
	db  *db.Pool
	cfg cliparse.Config
}

func NewHistoryHandler(db *db.Pool, cfg cliparse.Config) *HistoryHandler {
	return &HistoryHandler{db: db, cfg: cfg}
}

func (h *HistoryHandler) loadRecords(ctx context.Context, operatorID string, limit int) ([]models.OrderRecord, error) {
	records := []models.OrderRecord{}
	err := h.db.SelectContext(ctx, &records, `
		SELECT `+orderColumns+`
		FROM order_records
		WHERE operator_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, operatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("load order records: %w", err)
	}
	return records, nil
}

// authorizeOperator lets callers read their own history, or anyone's with history:read_any
func (h *HistoryHandler) authorizeOperator(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return "", false
	}
	operatorID := r.PathValue("id")
	if !ownsOr(claims, operatorID, auth.ResourceHistory, auth.ActionReadAny) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not allowed")
		return "", false
	}
	return operatorID, true
}

// OperatorHistory handles GET /api/history/operator/{id}?limit=
// Returns records newest first, with totals over the operator's whole history.
func (h *HistoryHandler) OperatorHistory(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.authorizeOperator(w, r)
	if !ok {
		return
	}

	records, err := h.loadRecords(r.Context(), operatorID, parseLimit(r, 100, 1000))
	if err != nil {
		slog.Error("failed to load history", "operator_id", operatorID, "error", err)
		middleware.InternalError(w, r)
		return
	}

	var (
		orders int
		units  int
		avg    sql.NullFloat64
	)
	err = h.db.QueryRowContext(r.Context(), `
		SELECT COUNT(*), COALESCE(SUM(units), 0), AVG(order_rate_uh)
		FROM order_records
		WHERE operator_id = ?
	`, operatorID).Scan(&orders, &units, &avg)
	if err != nil {
		slog.Error("failed to total history", "operator_id", operatorID, "error", err)
		middleware.InternalError(w, r)
		return
	}

	resp := models.OperatorHistory{
		OperatorID: operatorID,
		Orders:     orders,
		TotalUnits: units,
		Records:    records,
	}
	if avg.Valid {
		rate := math.Round(avg.Float64*100) / 100
		resp.AvgRateUh = &rate
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

var exportHeaders = []string{
	"Order", "Units", "Pallets", "Locations", "Start", "Close",
	"Duration (min)", "Rate (u/h)", "Excluded (min)", "Closed early", "Reason", "Recorded (UTC)",
}

// ExportHistory handles GET /api/history/operator/{id}/export
// Streams the operator's records as an XLSX workbook.
func (h *HistoryHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := h.authorizeOperator(w, r)
	if !ok {
		return
	}

	records, err := h.loadRecords(r.Context(), operatorID, parseLimit(r, 5000, 5000))
	if err != nil {
		slog.Error("failed to load history", "operator_id", operatorID, "error", err)
		middleware.InternalError(w, r)
		return
	}

	f, err := buildHistoryWorkbook(records)
	if err != nil {
		slog.Error("failed to build workbook", "operator_id", operatorID, "error", err)
		middleware.InternalError(w, r)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("orders_%s_%s.xlsx", operatorID, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		slog.Error("failed to write workbook", "operator_id", operatorID, "error", err)
	}
}

func buildHistoryWorkbook(records []models.OrderRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Orders"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, rec := range records {
		row := []any{
			rec.OrderName, rec.Units, rec.Pallets, rec.Locations, rec.StartHHMM, rec.CloseHHMM,
			optional(rec.DurationMin), optional(rec.OrderRateUh), rec.ExclMin, rec.ClosedEarly,
			rec.EarlyReason, rec.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetColWidth(sheet, "A", "A", 20)
	f.SetColWidth(sheet, "K", "L", 22)
	return f, nil
}

// optional renders nil as an empty cell
func optional[T any](v *T) any {
	if v == nil {
		return ""
	}
	return *v
}
