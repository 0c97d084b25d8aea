// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/wqt-backend/models"
	"github.com/danielhkuo/wqt-backend/testutil"
)

func TestCheckShiftPatch(t *testing.T) {
	order := json.RawMessage(`{"name": "ORD-1", "total": 40}`)

	cases := []struct {
		name          string
		cur           shiftState
		base          int
		snapshot      json.RawMessage
		explicitClear bool
		want          error
	}{
		{"first write", shiftState{}, 0, order, false, nil},
		{"replace", state(3, order), 3, json.RawMessage(`{"name": "ORD-2"}`), false, nil},
		{"stale version", state(3, order), 2, order, false, ErrVersionConflict},
		{"future version", state(3, order), 4, order, false, ErrVersionConflict},
		{"clear without flag", state(3, order), 3, nil, false, ErrBlockedClear},
		{"clear to empty object", state(3, order), 3, json.RawMessage(`{}`), false, ErrBlockedClear},
		{"clear with flag", state(3, order), 3, json.RawMessage(`null`), true, nil},
		{"clear when already empty", state(3, nil), 3, nil, false, nil},
		{"ended beats stale version", shiftState{Ended: true, ShiftState: models.ShiftState{StateVersion: 3}}, 1, order, false, ErrShiftEnded},
		{"stale version beats blocked clear", state(3, order), 1, nil, false, ErrVersionConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkShiftPatch(tc.cur, tc.base, tc.snapshot, tc.explicitClear)
			assert.ErrorIs(t, err, tc.want)
			if tc.want == nil {
				assert.NoError(t, err)
			}
		})
	}
}

func state(version int, snapshot json.RawMessage) shiftState {
	return shiftState{ShiftState: models.ShiftState{StateVersion: version, ActiveOrderSnapshot: snapshot}}
}

type shiftStateFixture struct {
	handler *ShiftHandler
	owner   models.User
	shiftID string
}

func newShiftStateFixture(t *testing.T) shiftStateFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	owner := testutil.CreateTestUser(t, db, "6161", "Owner", models.RolePicker)
	return shiftStateFixture{
		handler: NewShiftHandler(db, cfg),
		owner:   owner,
		shiftID: testutil.CreateTestShift(t, db, owner),
	}
}

func (f shiftStateFixture) patch(t *testing.T, user models.User, query string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.MakeAuthedRequest(t, f.handler.cfg, user, "PATCH", "/api/shift/"+f.shiftID+"/state?"+query, body, nil)
	req.SetPathValue("id", f.shiftID)
	w := httptest.NewRecorder()
	f.handler.PatchShiftState(w, req)
	return w
}

func (f shiftStateFixture) get(t *testing.T, user models.User) models.ShiftState {
	t.Helper()
	req := testutil.MakeAuthedRequest(t, f.handler.cfg, user, "GET", "/api/shift/"+f.shiftID+"/state", nil, nil)
	req.SetPathValue("id", f.shiftID)
	w := httptest.NewRecorder()
	f.handler.GetShiftState(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var s models.ShiftState
	testutil.AssertJSON(t, w, &s)
	return s
}

func snapshotBody(name string) map[string]any {
	return map[string]any{"active_order_snapshot": map[string]any{"name": name, "total": 40}}
}

func decodeConflict(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	testutil.AssertStatus(t, w, http.StatusConflict)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	require.NotNil(t, resp.ServerState, "conflicts carry the server state")
	return resp
}

func TestPatchShiftState(t *testing.T) {
	f := newShiftStateFixture(t)

	w := f.patch(t, f.owner, "base_version=0&request_id=r1&device_id=d1", snapshotBody("ORD-1"))
	testutil.AssertStatus(t, w, http.StatusOK)
	var got models.ShiftState
	testutil.AssertJSON(t, w, &got)
	assert.Equal(t, 1, got.StateVersion)
	assert.JSONEq(t, `{"name": "ORD-1", "total": 40}`, string(got.ActiveOrderSnapshot))

	stored := f.get(t, f.owner)
	assert.Equal(t, 1, stored.StateVersion)
	assert.JSONEq(t, `{"name": "ORD-1", "total": 40}`, string(stored.ActiveOrderSnapshot))

	t.Run("stale base version", func(t *testing.T) {
		resp := decodeConflict(t, f.patch(t, f.owner, "base_version=0", snapshotBody("ORD-X")))
		assert.Equal(t, models.CodeVersionConflict, resp.Code)
		assert.Equal(t, 1, resp.ServerState.StateVersion)
		assert.JSONEq(t, `{"name": "ORD-1", "total": 40}`, string(resp.ServerState.ActiveOrderSnapshot))
	})

	t.Run("clear without confirmation", func(t *testing.T) {
		resp := decodeConflict(t, f.patch(t, f.owner, "base_version=1", map[string]any{"active_order_snapshot": nil}))
		assert.Equal(t, models.CodeBlockedClear, resp.Code)
		assert.Equal(t, 1, f.get(t, f.owner).StateVersion, "blocked clear does not bump the version")
	})

	t.Run("empty body counts as a clear", func(t *testing.T) {
		resp := decodeConflict(t, f.patch(t, f.owner, "base_version=1", nil))
		assert.Equal(t, models.CodeBlockedClear, resp.Code)
	})

	t.Run("confirmed clear", func(t *testing.T) {
		w := f.patch(t, f.owner, "base_version=1&explicit_clear_active_order=true", map[string]any{"active_order_snapshot": nil})
		testutil.AssertStatus(t, w, http.StatusOK)

		s := f.get(t, f.owner)
		assert.Equal(t, 2, s.StateVersion)
		assert.True(t, isEmptyJSON(s.ActiveOrderSnapshot))
	})

	ctx := context.Background()
	var conflicts, blocked int
	require.NoError(t, f.handler.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_events WHERE category = ?", models.EventShiftConflict).Scan(&conflicts))
	require.NoError(t, f.handler.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_events WHERE category = ?", models.EventShiftBlockedClear).Scan(&blocked))
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, blocked)
}

func TestPatchShiftStateEndedShift(t *testing.T) {
	f := newShiftStateFixture(t)

	_, err := f.handler.db.ExecContext(context.Background(),
		"UPDATE shift_sessions SET ended_at = ? WHERE id = ?", time.Now().UTC(), f.shiftID)
	require.NoError(t, err)

	resp := decodeConflict(t, f.patch(t, f.owner, "base_version=7", snapshotBody("ORD-1")))
	assert.Equal(t, models.CodeShiftEnded, resp.Code)
}

func TestPatchShiftStateValidation(t *testing.T) {
	f := newShiftStateFixture(t)

	cases := []struct {
		name  string
		query string
		body  any
	}{
		{"missing base_version", "", snapshotBody("ORD-1")},
		{"non-numeric base_version", "base_version=abc", snapshotBody("ORD-1")},
		{"snapshot is an array", "base_version=0", `{"active_order_snapshot": [1, 2]}`},
		{"snapshot is a string", "base_version=0", `{"active_order_snapshot": "ORD-1"}`},
		{"malformed JSON", "base_version=0", `{"active_order_snapshot":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testutil.AssertStatus(t, f.patch(t, f.owner, tc.query, tc.body), http.StatusBadRequest)
		})
	}

	assert.Zero(t, f.get(t, f.owner).StateVersion)
}

func TestPatchShiftStateAccess(t *testing.T) {
	f := newShiftStateFixture(t)
	other := testutil.CreateTestUser(t, f.handler.db, "7171", "Other", models.RolePicker)
	sup := testutil.CreateTestUser(t, f.handler.db, "8181", "Sup", models.RoleSupervisor)

	testutil.AssertStatus(t, f.patch(t, other, "base_version=0", snapshotBody("ORD-1")), http.StatusForbidden)
	testutil.AssertStatus(t, f.patch(t, sup, "base_version=0", snapshotBody("ORD-1")), http.StatusOK)

	req := testutil.MakeAuthedRequest(t, f.handler.cfg, f.owner, "PATCH", "/api/shift/missing/state?base_version=0", snapshotBody("ORD-1"), nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()
	f.handler.PatchShiftState(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

// TestConcurrentShiftPatches races writers that all read version 0.
// Exactly one may win; every loser is told about the winner's version.
func TestConcurrentShiftPatches(t *testing.T) {
	f := newShiftStateFixture(t)

	const writers = 8
	codes := make([]int, writers)
	bodies := make([]string, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := f.patch(t, f.owner, fmt.Sprintf("base_version=0&request_id=req-%d", i), snapshotBody(fmt.Sprintf("ORD-%d", i)))
			codes[i] = w.Code
			bodies[i] = w.Body.String()
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, code := range codes {
		switch code {
		case http.StatusOK:
			wins++
		case http.StatusConflict:
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal([]byte(bodies[i]), &resp))
			assert.Equal(t, models.CodeVersionConflict, resp.Code)
			require.NotNil(t, resp.ServerState)
			assert.Equal(t, 1, resp.ServerState.StateVersion)
		default:
			t.Errorf("writer %d: unexpected status %d: %s", i, code, bodies[i])
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.get(t, f.owner).StateVersion)
}
