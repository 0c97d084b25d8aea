// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/wqt-backend/models"
	"github.com/danielhkuo/wqt-backend/testutil"
	"github.com/danielhkuo/wqt-backend/tracker"
)

func TestGetDeviceMe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewDeviceHandler(db, cfg)
	user := testutil.CreateTestUser(t, db, "1919", "Jesse", models.RolePicker)

	get := func(headers map[string]string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.GetMe(w, testutil.MakeAuthedRequest(t, cfg, user, "GET", "/api/devices/me", nil, headers))
		return w
	}

	testutil.AssertStatus(t, get(nil), http.StatusBadRequest)
	testutil.AssertStatus(t, get(map[string]string{"X-Device-ID": "unknown"}), http.StatusNotFound)

	touchDevice(context.Background(), db, "scanner-5", user.ID)

	w := get(map[string]string{"X-Device-ID": "scanner-5"})
	testutil.AssertStatus(t, w, http.StatusOK)
	var device models.Device
	testutil.AssertJSON(t, w, &device)
	assert.Equal(t, "scanner-5", device.ID)
	assert.Equal(t, user.ID, device.LastUserID)
	assert.NotEmpty(t, device.LastSeen)
}

func TestTouchDeviceUpdatesLastUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	touchDevice(ctx, db, "shared-1", "user-a")
	touchDevice(ctx, db, "shared-1", "user-b")

	var count int
	var last string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(last_user_id) FROM devices WHERE id = ?", "shared-1").Scan(&count, &last))
	assert.Equal(t, 1, count)
	assert.Equal(t, "user-b", last)
}

func TestListDevicesDedupes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewDeviceHandler(db, cfg)
	ctx := context.Background()

	picker := testutil.CreateTestUser(t, db, "1818", "Avery", models.RolePicker)
	sup := testutil.CreateTestUser(t, db, "1717", "Sup", models.RoleSupervisor)
	now := time.Now().UTC()

	// The user row is the newer save for Avery
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_states (user_id, device_id, payload, updated_at) VALUES (?, ?, ?, ?)
	`, picker.ID, "dev-1", `{
		"savedAt": "2026-03-02T10:00:00Z",
		"startTime": "06:00",
		"picks": [{"name": "ORD-1", "units": 120}],
		"current": {"name": "ORD-2", "total": 50}
	}`, now)
	require.NoError(t, err)

	// An older legacy row from the same person on the same scanner
	_, err = db.ExecContext(ctx, `
		INSERT INTO device_states (device_id, payload, updated_at) VALUES (?, ?, ?)
	`, "dev-1", `{"savedAt": "2026-03-02T09:00:00Z", "current": {"operatorId": "`+picker.ID+`", "name": "OLD"}}`, now)
	require.NoError(t, err)

	// A legacy row nobody can be matched to, with no savedAt
	_, err = db.ExecContext(ctx, `
		INSERT INTO device_states (device_id, payload, updated_at) VALUES (?, ?, ?)
	`, "dev-9", `{"picks": []}`, now)
	require.NoError(t, err)

	t.Run("pickers are refused", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ListDevices(w, testutil.MakeAuthedRequest(t, cfg, picker, "GET", "/api/admin/devices", nil, nil))
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})

	w := httptest.NewRecorder()
	handler.ListDevices(w, testutil.MakeAuthedRequest(t, cfg, sup, "GET", "/api/admin/devices", nil, nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.DevicesResponse
	testutil.AssertJSON(t, w, &resp)
	require.Equal(t, 2, resp.Count)
	require.Len(t, resp.Devices, 2)

	first := resp.Devices[0]
	assert.Equal(t, "operator:"+picker.ID, first.LogicalKey)
	assert.Equal(t, tracker.SourceUser, first.Source)
	assert.Equal(t, "Avery", first.OperatorName)
	assert.Equal(t, "ORD-2", first.CurrentOrder)
	assert.Equal(t, 1, first.ClosedOrders)
	assert.Equal(t, 120, first.UnitsDone)
	assert.NotEmpty(t, first.LastSeen)

	second := resp.Devices[1]
	assert.Equal(t, "device:dev-9", second.LogicalKey)
	assert.Equal(t, tracker.SourceDevice, second.Source)
}
