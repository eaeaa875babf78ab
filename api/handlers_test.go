/*
handlers_test.go - HTTP-level tests for the API

Tests the full stack (router -> handler -> service -> in-memory store):
- Employee creation and retrieval
- Ride submission: accepted, rejected, broken references
- Config save validation
- Export lifecycle including the CSV download
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commute-engine/api"
	"github.com/warp/commute-engine/engine"
	"github.com/warp/commute-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, today engine.Date) (*httptest.Server, *engine.Service) {
	t.Helper()
	mem := store.NewTxMemory()
	svc := engine.NewServiceWithClock(mem, func() engine.Date { return today })
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc)))
	t.Cleanup(srv.Close)
	return srv, svc
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func addTestEmployee(t *testing.T, svc *engine.Service, id string, country engine.Country, bike engine.BikeType) {
	t.Helper()
	require.NoError(t, svc.AddEmployee(context.Background(), engine.Employee{
		ID:       engine.EmployeeID(id),
		Name:     "Employee " + id,
		Country:  country,
		BikeType: bike,
		Trajectories: map[string]decimal.Decimal{
			"home-office": decimal.NewFromInt(10),
		},
	}))
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestCreateEmployee_AndFetch(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, _ := newTestServer(t, today)

	resp := postJSON(t, srv.URL+"/api/employees", map[string]any{
		"id":              "emp-1",
		"name":            "An Peeters",
		"country":         "BE",
		"bike_type":       "own",
		"trajectory_name": "home-office",
		"trajectory_km":   12.5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/employees/emp-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto api.EmployeeDTO
	decodeJSON(t, resp, &dto)
	assert.Equal(t, "An Peeters", dto.Name)
	assert.Equal(t, "12.5", dto.Trajectories["home-office"])
}

func TestCreateEmployee_InvalidCountry_BadRequest(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, _ := newTestServer(t, today)

	resp := postJSON(t, srv.URL+"/api/employees", map[string]any{
		"id": "emp-1", "name": "X", "country": "DE", "bike_type": "own",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateEmployee_Duplicate_Conflict(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, svc := newTestServer(t, today)
	addTestEmployee(t, svc, "emp-1", engine.CountryBE, engine.BikeOwn)

	resp := postJSON(t, srv.URL+"/api/employees", map[string]any{
		"id": "emp-1", "name": "X", "country": "BE", "bike_type": "own",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetEmployee_Unknown_NotFound(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, _ := newTestServer(t, today)

	resp, err := http.Get(srv.URL + "/api/employees/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// RIDE SUBMISSION
// =============================================================================

func TestSubmitRide_Accepted(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, svc := newTestServer(t, today)
	addTestEmployee(t, svc, "emp-1", engine.CountryBE, engine.BikeOwn)

	resp := postJSON(t, srv.URL+"/api/rides", map[string]any{
		"employee_id": "emp-1",
		"date":        "2025-06-20",
		"trajectory":  "home-office",
		"ride_type":   "ROUND_TRIP",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.SubmissionResultDTO
	decodeJSON(t, resp, &result)
	assert.True(t, result.Accepted)
	assert.Equal(t, "5.40", result.Amount)
	require.NotNil(t, result.Ride)
	assert.Equal(t, "20", result.Ride.DistanceKM)
}

func TestSubmitRide_Rejected_Still200(t *testing.T) {
	// A business rejection is a normal outcome for the portal, not an
	// HTTP error.
	today := engine.NewDate(2025, time.June, 20)
	srv, svc := newTestServer(t, today)
	addTestEmployee(t, svc, "emp-1", engine.CountryBE, engine.BikeOwn)

	resp := postJSON(t, srv.URL+"/api/rides", map[string]any{
		"employee_id": "emp-1",
		"date":        "2025-06-21", // tomorrow
		"trajectory":  "home-office",
		"ride_type":   "ONE_WAY",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.SubmissionResultDTO
	decodeJSON(t, resp, &result)
	assert.False(t, result.Accepted)
	assert.Equal(t, "0.00", result.Amount)
	require.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "future")
}

func TestSubmitRide_UnknownTrajectory_NotFound(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, svc := newTestServer(t, today)
	addTestEmployee(t, svc, "emp-1", engine.CountryBE, engine.BikeOwn)

	resp := postJSON(t, srv.URL+"/api/rides", map[string]any{
		"employee_id": "emp-1",
		"date":        "2025-06-20",
		"trajectory":  "nope",
		"ride_type":   "ONE_WAY",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitRide_BadRideType_BadRequest(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, svc := newTestServer(t, today)
	addTestEmployee(t, svc, "emp-1", engine.CountryBE, engine.BikeOwn)

	resp := postJSON(t, srv.URL+"/api/rides", map[string]any{
		"employee_id": "emp-1",
		"date":        "2025-06-20",
		"trajectory":  "home-office",
		"ride_type":   "THERE_AND_BACK_AGAIN",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestSaveConfig_RoundTripWithWarnings(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, _ := newTestServer(t, today)

	body := map[string]any{
		"be_rate":           "0.40",
		"be_limit_type":     "YEARLY",
		"be_yearly_limit":   "3160.00",
		"be_monthly_limit":  "265.00",
		"be_enforce_mode":   "CAP",
		"nl_own_rate":       "0.23",
		"nl_company_rate":   "0.00",
		"deadline_day":      15,
		"max_rides_per_day": 2,
	}
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/config", bytes.NewReader(mustJSON(t, body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto api.ConfigDTO
	decodeJSON(t, resp, &dto)
	assert.Equal(t, "0.40", dto.BERate)
	assert.Equal(t, "CAP", dto.BEEnforceMode)
	require.Len(t, dto.Warnings, 1)
	assert.Contains(t, dto.Warnings[0], "tax-free maximum")
}

func TestSaveConfig_InvalidDeadline_BadRequest(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, _ := newTestServer(t, today)

	body := map[string]any{
		"be_rate":           "0.27",
		"be_limit_type":     "YEARLY",
		"be_yearly_limit":   "3160.00",
		"be_monthly_limit":  "265.00",
		"be_enforce_mode":   "BLOCK",
		"nl_own_rate":       "0.23",
		"nl_company_rate":   "0.00",
		"deadline_day":      31,
		"max_rides_per_day": 2,
	}
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/config", bytes.NewReader(mustJSON(t, body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// =============================================================================
// EXPORTS
// =============================================================================

func TestExportLifecycle_ProcessAndDownload(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, svc := newTestServer(t, today)
	addTestEmployee(t, svc, "emp-1", engine.CountryNL, engine.BikeCompany)

	ctx := context.Background()
	result, err := svc.SubmitRide(ctx, "emp-1", today, "home-office", engine.RideOneWay)
	require.NoError(t, err)
	require.True(t, result.Accepted)

	// Preview before processing.
	resp, err := http.Get(srv.URL + "/api/exports/pending")
	require.NoError(t, err)
	var pending api.PendingExportDTO
	decodeJSON(t, resp, &pending)
	assert.Equal(t, 1, pending.RideCount)

	// Process.
	resp = postJSON(t, srv.URL+"/api/exports", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var batch api.ExportBatchDTO
	decodeJSON(t, resp, &batch)
	assert.Equal(t, 1, batch.BatchID)
	assert.Equal(t, 1, batch.RideCount)
	assert.True(t, strings.HasPrefix(batch.Filename, "payroll_batch_1_"))

	// Download the CSV.
	resp, err = http.Get(fmt.Sprintf("%s/api/exports/%d/csv", srv.URL, batch.BatchID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), batch.Filename)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "taxable", "NL company bike rides are tagged taxable")
	assert.Contains(t, buf.String(), "20-06-2025")
}

func TestProcessExport_Empty_Conflict(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, _ := newTestServer(t, today)

	resp := postJSON(t, srv.URL+"/api/exports", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDownloadExport_UnknownBatch_NotFound(t *testing.T) {
	today := engine.NewDate(2025, time.June, 20)
	srv, _ := newTestServer(t, today)

	resp, err := http.Get(srv.URL + "/api/exports/42/csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
