// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
)

const (
	defaultSummaryDays = 7
	maxSummaryDays     = 90
)

type AdminHandler struct {
	db  *db.Pool
	cfg cliparse.Config
	now func() time.Time
}

func NewAdminHandler(db *db.Pool, cfg cliparse.Config) *AdminHandler {
	return &AdminHandler{db: db, cfg: cfg, now: time.Now}
}

// RecentUsage handles GET /api/admin/logs?limit=
func (h *AdminHandler) RecentUsage(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceAdmin, auth.ActionRead) {
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, created_at, category, detail
		FROM usage_events
		ORDER BY created_at DESC
		LIMIT ?
	`, parseLimit(r, 100, 1000))
	if err != nil {
		slog.Error("failed to query usage events", "error", err)
		middleware.InternalError(w, r)
		return
	}
	defer rows.Close()

	events := []models.UsageEvent{}
	for rows.Next() {
		var (
			e      models.UsageEvent
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Category, &detail); err != nil {
			slog.Error("failed to scan usage event", "error", err)
			middleware.InternalError(w, r)
			return
		}
		e.Detail = rawJSON(detail)
		e.Age = humanize.Time(e.CreatedAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate usage events", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.UsageLogResponse{Events: events})
}

// UsageSummary handles GET /api/admin/usage/summary?days=
// Counts STATE_SAVE events per UTC day, oldest first, including days with none.
func (h *AdminHandler) UsageSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceAdmin, auth.ActionRead) {
		return
	}

	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 {
		days = defaultSummaryDays
	}
	days = min(days, maxSummaryDays)

	today := h.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT created_at
		FROM usage_events
		WHERE category = ? AND created_at >= ?
	`, models.EventStateSave, since)
	if err != nil {
		slog.Error("failed to query usage summary", "error", err)
		middleware.InternalError(w, r)
		return
	}
	defer rows.Close()

	counts := make(map[string]int, days)
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			slog.Error("failed to scan usage event", "error", err)
			middleware.InternalError(w, r)
			return
		}
		counts[at.UTC().Format(time.DateOnly)]++
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to iterate usage events", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.UsageSummaryResponse{
		Category: models.EventStateSave,
		Days:     fillDays(since, days, counts),
	})
}

// fillDays lays counts out over n consecutive days starting at since
func fillDays(since time.Time, n int, counts map[string]int) []models.UsageDay {
	out := make([]models.UsageDay, 0, n)
	for i := 0; i < n; i++ {
		date := since.AddDate(0, 0, i).Format(time.DateOnly)
		out = append(out, models.UsageDay{Date: date, Count: counts[date]})
	}
	return out
}
