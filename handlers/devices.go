// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/wqt-backend/auth"
	"github.com/danielhkuo/wqt-backend/cliparse"
	"github.com/danielhkuo/wqt-backend/db"
	"github.com/danielhkuo/wqt-backend/middleware"
	"github.com/danielhkuo/wqt-backend/models"
	"github.com/danielhkuo/wqt-backend/tracker"
)

type DeviceHandler struct {
	db  *db.Pool
	cfg cliparse.Config
}

func NewDeviceHandler(db *db.Pool, cfg cliparse.Config) *DeviceHandler {
	return &DeviceHandler{db: db, cfg: cfg}
}

// touchDevice records that deviceID was just used by userID, registering
// the device on first sight. Failures are logged only.
func touchDevice(ctx context.Context, pool *db.Pool, deviceID, userID string) {
	now := time.Now().UTC()
	_, err := pool.ExecContext(ctx, `
		INSERT INTO devices (id, last_user_id, created_at, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET last_user_id = excluded.last_user_id, last_seen_at = excluded.last_seen_at
	`, deviceID, userID, now, now)
	if err != nil {
		slog.Error("failed to update device last_seen_at", "device_id", deviceID, "error", err)
	}
}

// GetMe handles GET /api/devices/me
// Returns the registry entry for the X-Device-ID header
func (h *DeviceHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get("X-Device-ID")
	if deviceID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "X-Device-ID header required")
		return
	}

	var device models.Device
	err := h.db.GetContext(r.Context(), &device, `
		SELECT id, last_user_id, created_at, last_seen_at
		FROM devices
		WHERE id = ?
	`, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Device not registered")
		return
	}
	if err != nil {
		slog.Error("failed to query device", "error", err)
		middleware.InternalError(w, r)
		return
	}

	device.LastSeen = humanize.Time(device.LastSeenAt)
	middleware.JSONResponse(w, http.StatusOK, device)
}

type userStateRow struct {
	UserID      string    `db:"user_id"`
	DeviceID    string    `db:"device_id"`
	Payload     string    `db:"payload"`
	UpdatedAt   time.Time `db:"updated_at"`
	DisplayName string    `db:"display_name"`
}

type deviceStateRow struct {
	DeviceID  string    `db:"device_id"`
	Payload   string    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ListDevices handles GET /api/admin/devices
// One entry per operator across user-keyed and legacy device-keyed state
// rows, newest save first.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	if !allowed(w, claims, auth.ResourceAdmin, auth.ActionRead) {
		return
	}

	var (
		userRows   []userStateRow
		deviceRows []deviceStateRow
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.db.SelectContext(ctx, &userRows, `
			SELECT s.user_id, s.device_id, s.payload, s.updated_at, u.display_name
			FROM user_states s
			JOIN users u ON u.id = s.user_id
		`)
	})
	g.Go(func() error {
		return h.db.SelectContext(ctx, &deviceRows, `
			SELECT device_id, payload, updated_at FROM device_states
		`)
	})
	if err := g.Wait(); err != nil {
		slog.Error("failed to load state rows", "error", err)
		middleware.InternalError(w, r)
		return
	}

	rows := make([]tracker.Row, 0, len(userRows)+len(deviceRows))
	for _, u := range userRows {
		doc := decodeStored(u.Payload)
		rows = append(rows, tracker.Row{
			Source:       tracker.SourceUser,
			DeviceID:     u.DeviceID,
			OperatorID:   u.UserID,
			OperatorName: u.DisplayName,
			SavedAt:      tracker.SavedAt(doc),
			Doc:          doc,
			UpdatedAt:    u.UpdatedAt,
		})
	}
	for _, d := range deviceRows {
		doc := decodeStored(d.Payload)
		opID, opName := tracker.Operator(doc)
		rows = append(rows, tracker.Row{
			Source:       tracker.SourceDevice,
			DeviceID:     d.DeviceID,
			OperatorID:   opID,
			OperatorName: opName,
			SavedAt:      tracker.SavedAt(doc),
			Doc:          doc,
			UpdatedAt:    d.UpdatedAt,
		})
	}

	deduped := tracker.Dedupe(rows)
	views := make([]models.DeviceView, 0, len(deduped))
	for _, d := range deduped {
		views = append(views, deviceView(d))
	}

	middleware.JSONResponse(w, http.StatusOK, models.DevicesResponse{
		Devices: views,
		Count:   len(views),
	})
}

func deviceView(d tracker.Deduped) models.DeviceView {
	snap := tracker.Summarize(d.Doc)
	_, activity := tracker.ClassifySave(d.Doc)

	seen := d.UpdatedAt
	if d.HasSaved {
		seen = d.SavedAtT
	}

	return models.DeviceView{
		LogicalKey:   d.Key,
		Source:       d.Source,
		DeviceID:     d.DeviceID,
		OperatorID:   d.OperatorID,
		OperatorName: d.OperatorName,
		SavedAt:      d.SavedAt,
		LastSeen:     humanize.Time(seen),
		LiveRateUh:   snap.LiveRateUh,
		CurrentOrder: snap.CurrentOrder,
		ClosedOrders: snap.ClosedOrders,
		UnitsDone:    snap.UnitsDone,
		StartTime:    snap.StartTime,
		OnBreak:      snap.OnBreak,
		LastActivity: activity,
		RowUpdatedAt: d.UpdatedAt,
	}
}

// decodeStored reads a stored payload leniently. Rows that no longer
// parse are shown as empty documents rather than failing the listing.
func decodeStored(payload string) tracker.Document {
	doc, err := tracker.Decode([]byte(payload))
	if err != nil {
		slog.Warn("stored state does not parse", "error", err)
		return tracker.DefaultDocument()
	}
	if err := tracker.Migrate(doc); err != nil {
		slog.Warn("stored state not migrated", "error", err)
	}
	return doc
}
