// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/wqt-backend/models"
	"github.com/danielhkuo/wqt-backend/testutil"
)

type locationFixture struct {
	handler *LocationHandler
	picker  models.User
	sup     models.User
}

func newLocationFixture(t *testing.T) locationFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return locationFixture{
		handler: NewLocationHandler(db, testutil.GetTestConfig()),
		picker:  testutil.CreateTestUser(t, db, "4141", "Picker", models.RolePicker),
		sup:     testutil.CreateTestUser(t, db, "4242", "Sup", models.RoleSupervisor),
	}
}

func (f locationFixture) bulk(t *testing.T, user models.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.BulkUpdate(w, testutil.MakeAuthedRequest(t, f.handler.cfg, user, "POST", "/api/warehouse/locations/bulk", body, nil))
	return w
}

func (f locationFixture) summary(t *testing.T, user models.User) models.LocationSummary {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.Summary(w, testutil.MakeAuthedRequest(t, f.handler.cfg, user, "GET", "/api/warehouse/locations/summary", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var s models.LocationSummary
	testutil.AssertJSON(t, w, &s)
	return s
}

func (f locationFixture) toggle(t *testing.T, user models.User, aisle, bay string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.MakeAuthedRequest(t, f.handler.cfg, user, "POST", "/api/warehouse/locations/"+aisle+"/"+bay+"/toggle", nil, nil)
	req.SetPathValue("aisle", aisle)
	req.SetPathValue("bay", bay)
	w := httptest.NewRecorder()
	f.handler.Toggle(w, req)
	return w
}

func TestBulkLocations(t *testing.T) {
	f := newLocationFixture(t)

	w := f.bulk(t, f.sup, models.BulkLocationsRequest{
		Ranges: []models.BayRange{
			{Aisle: "b", MinBay: 1, MaxBay: 4},
			{Aisle: "AGL", MinBay: 10, MaxBay: 11},
		},
		Locations: []models.BayUpdate{
			{Aisle: "B", Bay: 2, State: models.BayFull},
		},
	})
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.BulkLocationsResponse
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, 6, resp.Seeded)
	assert.Equal(t, 1, resp.Upserted)

	// Re-seeding the same range does not reset bay 2
	w = f.bulk(t, f.sup, models.BulkLocationsRequest{
		Ranges: []models.BayRange{{Aisle: "B", MinBay: 1, MaxBay: 5}},
	})
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &resp)
	assert.Equal(t, 1, resp.Seeded)

	s := f.summary(t, f.picker)
	assert.Equal(t, 7, s.Total)
	assert.Equal(t, 1, s.Full)
	assert.Equal(t, 6, s.Empty)
	require.Len(t, s.Aisles, 2)

	b := s.Aisles[0]
	assert.Equal(t, "B", b.Aisle, "aisles in floor order")
	assert.Equal(t, 1, b.MinBay)
	assert.Equal(t, 5, b.MaxBay)
	assert.Equal(t, models.BayFull, b.Bays["2"])
	assert.Equal(t, models.BayEmpty, b.Bays["5"])
	assert.Equal(t, "AGL", s.Aisles[1].Aisle)
}

func TestBulkLocationsValidation(t *testing.T) {
	f := newLocationFixture(t)

	testutil.AssertStatus(t, f.bulk(t, f.picker, models.BulkLocationsRequest{}), http.StatusForbidden)

	cases := []struct {
		name string
		body models.BulkLocationsRequest
	}{
		{"unknown aisle", models.BulkLocationsRequest{Ranges: []models.BayRange{{Aisle: "I", MinBay: 1, MaxBay: 2}}}},
		{"inverted range", models.BulkLocationsRequest{Ranges: []models.BayRange{{Aisle: "A", MinBay: 5, MaxBay: 2}}}},
		{"bay zero", models.BulkLocationsRequest{Ranges: []models.BayRange{{Aisle: "A", MinBay: 0, MaxBay: 2}}}},
		{"bay too large", models.BulkLocationsRequest{Locations: []models.BayUpdate{{Aisle: "A", Bay: maxBay + 1, State: models.BayFull}}}},
		{"bad state", models.BulkLocationsRequest{Locations: []models.BayUpdate{{Aisle: "A", Bay: 1, State: "half"}}}},
		{"too many bays", models.BulkLocationsRequest{Ranges: []models.BayRange{
			{Aisle: "A", MinBay: 1, MaxBay: maxBay},
			{Aisle: "B", MinBay: 1, MaxBay: maxBay},
			{Aisle: "C", MinBay: 1, MaxBay: maxBay},
			{Aisle: "D", MinBay: 1, MaxBay: maxBay},
			{Aisle: "E", MinBay: 1, MaxBay: maxBay},
			{Aisle: "F", MinBay: 1, MaxBay: maxBay},
		}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testutil.AssertStatus(t, f.bulk(t, f.sup, tc.body), http.StatusBadRequest)
		})
	}

	assert.Zero(t, f.summary(t, f.sup).Total, "rejected requests write nothing")
}

func TestToggleLocation(t *testing.T) {
	f := newLocationFixture(t)

	testutil.AssertStatus(t, f.bulk(t, f.sup, models.BulkLocationsRequest{
		Ranges: []models.BayRange{{Aisle: "C", MinBay: 1, MaxBay: 3}},
	}), http.StatusOK)

	w := f.toggle(t, f.picker, "c", "2")
	testutil.AssertStatus(t, w, http.StatusOK)
	var loc models.WarehouseLocation
	testutil.AssertJSON(t, w, &loc)
	assert.Equal(t, "C", loc.Aisle)
	assert.Equal(t, 2, loc.Bay)
	assert.Equal(t, models.BayFull, loc.State)
	assert.Equal(t, f.picker.ID, loc.UpdatedBy)

	w = f.toggle(t, f.picker, "C", "2")
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &loc)
	assert.Equal(t, models.BayEmpty, loc.State)

	testutil.AssertStatus(t, f.toggle(t, f.picker, "C", "9"), http.StatusNotFound)
	testutil.AssertStatus(t, f.toggle(t, f.picker, "Z", "1"), http.StatusBadRequest)
	testutil.AssertStatus(t, f.toggle(t, f.picker, "C", "x"), http.StatusBadRequest)
}

func TestSummarizeLocations(t *testing.T) {
	s := summarizeLocations([]models.WarehouseLocation{
		{Aisle: "AGL", Bay: 3, State: models.BayFull},
		{Aisle: "A", Bay: 7, State: models.BayEmpty},
		{Aisle: "A", Bay: 2, State: models.BayFull},
	})

	require.Len(t, s.Aisles, 2)
	assert.Equal(t, "A", s.Aisles[0].Aisle)
	assert.Equal(t, 2, s.Aisles[0].MinBay)
	assert.Equal(t, 7, s.Aisles[0].MaxBay)
	assert.Equal(t, 1, s.Aisles[0].Full)
	assert.Equal(t, "AGL", s.Aisles[1].Aisle)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Full)

	empty := summarizeLocations(nil)
	assert.NotNil(t, empty.Aisles)
	assert.Zero(t, empty.Total)
}
