// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
)

// Aisles is the warehouse's aisle list in floor order. I and N are not used.
var Aisles = []string{"A", "B", "C", "D", "E", "F", "G", "H", "J", "K", "L", "M", "O", "P", "Q", "AGL"}

const (
	maxBay         = 999
	maxBulkEntries = 5000
)

type LocationHandler struct {
	db  *db.Pool
	cfg cliparse.Config
}

func NewLocationHandler(db *db.Pool, cfg cliparse.Config) *LocationHandler {
	return &LocationHandler{db: db, cfg: cfg}
}

func normalizeAisle(aisle string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(aisle))
	if !slices.Contains(Aisles, a) {
		return "", fmt.Errorf("unknown aisle %q", aisle)
	}
	return a, nil
}

func validBay(bay int) bool {
	return bay >= 1 && bay <= maxBay
}

// BulkUpdate handles POST /api/warehouse/locations/bulk
// Ranges seed missing bays as empty and never overwrite existing state.
// Explicit locations then set their state, creating the bay if needed.
func (h *LocationHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceLocation, auth.ActionWrite) {
		return
	}

	var req models.BulkLocationsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	entries := len(req.Locations)
	for i, rg := range req.Ranges {
		aisle, err := normalizeAisle(rg.Aisle)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if !validBay(rg.MinBay) || !validBay(rg.MaxBay) || rg.MinBay > rg.MaxBay {
			middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid bay range for aisle %s", aisle))
			return
		}
		req.Ranges[i].Aisle = aisle
		entries += rg.MaxBay - rg.MinBay + 1
	}
	for i, loc := range req.Locations {
		aisle, err := normalizeAisle(loc.Aisle)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if !validBay(loc.Bay) {
			middleware.ErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("invalid bay %d", loc.Bay))
			return
		}
		if loc.State != models.BayEmpty && loc.State != models.BayFull {
			middleware.ErrorResponse(w, http.StatusBadRequest, "state must be empty or full")
			return
		}
		req.Locations[i].Aisle = aisle
	}
	if entries > maxBulkEntries {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Too many locations in one request")
		return
	}

	resp, err := h.applyBulk(r, claims.UserID(), req)
	if err != nil {
		slog.Error("failed to update locations", "error", err)
		middleware.InternalError(w, r)
		return
	}

	slog.Info("locations updated", "seeded", resp.Seeded, "upserted", resp.Upserted, "user_id", claims.UserID())
	middleware.JSONResponse(w, http.StatusOK, resp)
}

func (h *LocationHandler) applyBulk(r *http.Request, userID string, req models.BulkLocationsRequest) (models.BulkLocationsResponse, error) {
	ctx := r.Context()
	now := time.Now().UTC()
	var resp models.BulkLocationsResponse

	tx, err := h.db.BeginTx(ctx)
	if err != nil {
		return resp, err
	}
	defer tx.Rollback()

	for _, rg := range req.Ranges {
		for bay := rg.MinBay; bay <= rg.MaxBay; bay++ {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO warehouse_locations (aisle, bay, state, updated_by, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (aisle, bay) DO NOTHING
			`, rg.Aisle, bay, models.BayEmpty, userID, now)
			if err != nil {
				return resp, fmt.Errorf("seed %s%d: %w", rg.Aisle, bay, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return resp, fmt.Errorf("seed %s%d: %w", rg.Aisle, bay, err)
			}
			resp.Seeded += int(n)
		}
	}

	for _, loc := range req.Locations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO warehouse_locations (aisle, bay, state, updated_by, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (aisle, bay) DO UPDATE SET
				state = excluded.state,
				updated_by = excluded.updated_by,
				updated_at = excluded.updated_at
		`, loc.Aisle, loc.Bay, loc.State, userID, now)
		if err != nil {
			return resp, fmt.Errorf("upsert %s%d: %w", loc.Aisle, loc.Bay, err)
		}
		resp.Upserted++
	}

	return resp, tx.Commit()
}

// Summary handles GET /api/warehouse/locations/summary
// Aisles appear in floor order; aisles with no bays are left out.
func (h *LocationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceLocation, auth.ActionRead) {
		return
	}

	locations := []models.WarehouseLocation{}
	err := h.db.SelectContext(r.Context(), &locations, `
		SELECT aisle, bay, state, updated_by, updated_at
		FROM warehouse_locations
		ORDER BY aisle, bay
	`)
	if err != nil {
		slog.Error("failed to query locations", "error", err)
		middleware.InternalError(w, r)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, summarizeLocations(locations))
}

func summarizeLocations(locations []models.WarehouseLocation) models.LocationSummary {
	byAisle := make(map[string]*models.AisleSummary)
	for _, loc := range locations {
		a, ok := byAisle[loc.Aisle]
		if !ok {
			a = &models.AisleSummary{Aisle: loc.Aisle, MinBay: loc.Bay, MaxBay: loc.Bay, Bays: map[string]string{}}
			byAisle[loc.Aisle] = a
		}
		a.MinBay = min(a.MinBay, loc.Bay)
		a.MaxBay = max(a.MaxBay, loc.Bay)
		a.Total++
		if loc.State == models.BayFull {
			a.Full++
		} else {
			a.Empty++
		}
		a.Bays[strconv.Itoa(loc.Bay)] = loc.State
	}

	summary := models.LocationSummary{Aisles: []models.AisleSummary{}}
	for _, name := range Aisles {
		a, ok := byAisle[name]
		if !ok {
			continue
		}
		summary.Aisles = append(summary.Aisles, *a)
		summary.Total += a.Total
		summary.Full += a.Full
		summary.Empty += a.Empty
	}
	return summary
}

// Toggle handles POST /api/warehouse/locations/{aisle}/{bay}/toggle
// Flips a known bay between empty and full.
func (h *LocationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceLocation, auth.ActionToggle) {
		return
	}

	aisle, err := normalizeAisle(r.PathValue("aisle"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	bay, err := strconv.Atoi(r.PathValue("bay"))
	if err != nil || !validBay(bay) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid bay")
		return
	}

	loc, err := h.toggle(r, aisle, bay, claims.UserID())
	if errors.Is(err, ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Location not found")
		return
	}
	if err != nil {
		slog.Error("failed to toggle location", "aisle", aisle, "bay", bay, "error", err)
		middleware.InternalError(w, r)
		return
	}

	slog.Info("location toggled", "aisle", aisle, "bay", bay, "state", loc.State, "user_id", claims.UserID())
	middleware.JSONResponse(w, http.StatusOK, loc)
}

func (h *LocationHandler) toggle(r *http.Request, aisle string, bay int, userID string) (models.WarehouseLocation, error) {
	ctx := r.Context()

	tx, err := h.db.BeginTx(ctx)
	if err != nil {
		return models.WarehouseLocation{}, err
	}
	defer tx.Rollback()

	var loc models.WarehouseLocation
	err = tx.GetContext(ctx, &loc, `
		SELECT aisle, bay, state, updated_by, updated_at
		FROM warehouse_locations
		WHERE aisle = ? AND bay = ?
	`, aisle, bay)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WarehouseLocation{}, ErrNotFound
	}
	if err != nil {
		return models.WarehouseLocation{}, err
	}

	if loc.State == models.BayFull {
		loc.State = models.BayEmpty
	} else {
		loc.State = models.BayFull
	}
	loc.UpdatedBy = userID
	loc.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE warehouse_locations
		SET state = ?, updated_by = ?, updated_at = ?
		WHERE aisle = ? AND bay = ?
	`, loc.State, loc.UpdatedBy, loc.UpdatedAt, aisle, bay)
	if err != nil {
		return models.WarehouseLocation{}, err
	}

	return loc, tx.Commit()
}
