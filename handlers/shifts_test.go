// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/wqt-backend/models"
	"github.com/danielhkuo/wqt-backend/testutil"
)

func TestStartShift(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewShiftHandler(db, cfg)
	user := testutil.CreateTestUser(t, db, "7070", "Drew", models.RolePicker)

	w := httptest.NewRecorder()
	handler.StartShift(w, testutil.MakeAuthedRequest(t, cfg, user, "POST", "/api/shifts/start", models.StartShiftRequest{
		Site:      "NDC",
		ShiftType: "9h",
	}, map[string]string{"X-Device-ID": "scanner-1"}))

	testutil.AssertStatus(t, w, http.StatusCreated)
	var first models.ShiftSession
	testutil.AssertJSON(t, w, &first)
	assert.Equal(t, user.ID, first.OperatorID)
	assert.Equal(t, "Drew", first.OperatorName, "defaults to the display name")
	assert.Equal(t, "NDC", first.Site)
	assert.Equal(t, "scanner-1", first.DeviceID)
	assert.Nil(t, first.EndedAt)
	assert.Zero(t, first.StateVersion)

	t.Run("second start returns the open shift", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.StartShift(w, testutil.MakeAuthedRequest(t, cfg, user, "POST", "/api/shifts/start", nil, nil))

		testutil.AssertStatus(t, w, http.StatusOK)
		var again models.ShiftSession
		testutil.AssertJSON(t, w, &again)
		assert.Equal(t, first.ID, again.ID)
	})

	var open, events int
	ctx := context.Background()
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM shift_sessions WHERE ended_at IS NULL").Scan(&open))
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_events WHERE category = ?", models.EventShiftStart).Scan(&events))
	assert.Equal(t, 1, open)
	assert.Equal(t, 1, events)
}

func TestEndShift(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewShiftHandler(db, cfg)
	owner := testutil.CreateTestUser(t, db, "1212", "Owner", models.RolePicker)
	other := testutil.CreateTestUser(t, db, "3434", "Other", models.RolePicker)
	shiftID := testutil.CreateTestShift(t, db, owner)

	end := func(user models.User, body any) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.EndShift(w, testutil.MakeAuthedRequest(t, cfg, user, "POST", "/api/shifts/end", body, nil))
		return w
	}

	t.Run("missing shift_id", func(t *testing.T) {
		testutil.AssertStatus(t, end(owner, models.EndShiftRequest{}), http.StatusBadRequest)
	})

	t.Run("unknown shift", func(t *testing.T) {
		testutil.AssertStatus(t, end(owner, models.EndShiftRequest{ShiftID: "nope"}), http.StatusNotFound)
	})

	t.Run("someone else's shift", func(t *testing.T) {
		testutil.AssertStatus(t, end(other, models.EndShiftRequest{ShiftID: shiftID}), http.StatusForbidden)
	})

	t.Run("owner ends shift", func(t *testing.T) {
		units, rate := 420, 84.5
		w := end(owner, models.EndShiftRequest{
			ShiftID:    shiftID,
			TotalUnits: &units,
			AvgRate:    &rate,
			Summary:    []byte(`{"orders": 5}`),
		})

		testutil.AssertStatus(t, w, http.StatusOK)
		var got models.ShiftSession
		testutil.AssertJSON(t, w, &got)
		require.NotNil(t, got.EndedAt)
		require.NotNil(t, got.TotalUnits)
		assert.Equal(t, 420, *got.TotalUnits)
		assert.Equal(t, 84.5, *got.AvgRate)
		assert.JSONEq(t, `{"orders": 5}`, string(got.Summary))
	})

	t.Run("already ended", func(t *testing.T) {
		w := end(owner, models.EndShiftRequest{ShiftID: shiftID})

		testutil.AssertStatus(t, w, http.StatusConflict)
		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		assert.Equal(t, models.CodeShiftEnded, resp.Code)
	})
}

func TestGetActiveShift(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewShiftHandler(db, cfg)
	picker := testutil.CreateTestUser(t, db, "5656", "Picker", models.RolePicker)
	other := testutil.CreateTestUser(t, db, "7878", "Other", models.RolePicker)
	sup := testutil.CreateTestUser(t, db, "9090", "Sup", models.RoleSupervisor)

	active := func(user models.User, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.GetActive(w, testutil.MakeAuthedRequest(t, cfg, user, "GET", path, nil, nil))
		return w
	}

	testutil.AssertStatus(t, active(picker, "/api/shifts/active"), http.StatusNotFound)

	shiftID := testutil.CreateTestShift(t, db, picker)

	w := active(picker, "/api/shifts/active")
	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.ShiftSession
	testutil.AssertJSON(t, w, &got)
	assert.Equal(t, shiftID, got.ID)

	testutil.AssertStatus(t, active(other, "/api/shifts/active?operator_id="+picker.ID), http.StatusForbidden)
	testutil.AssertStatus(t, active(sup, "/api/shifts/active?operator_id="+picker.ID), http.StatusOK)
}

func TestGetRecentShifts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewShiftHandler(db, cfg)
	picker := testutil.CreateTestUser(t, db, "2323", "Picker", models.RolePicker)
	sup := testutil.CreateTestUser(t, db, "4545", "Sup", models.RoleSupervisor)

	for i := 0; i < 3; i++ {
		testutil.CreateTestShift(t, db, picker)
	}

	w := httptest.NewRecorder()
	handler.GetRecent(w, testutil.MakeAuthedRequest(t, cfg, picker, "GET", "/api/shifts/recent", nil, nil))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = httptest.NewRecorder()
	handler.GetRecent(w, testutil.MakeAuthedRequest(t, cfg, sup, "GET", "/api/shifts/recent?limit=2", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var shifts []models.ShiftSession
	testutil.AssertJSON(t, w, &shifts)
	require.Len(t, shifts, 2)
	assert.False(t, shifts[0].StartedAt.Before(shifts[1].StartedAt), "newest first")
}
