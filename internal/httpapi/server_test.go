package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"taxi-dashboard/internal/dashboard"
	"taxi-dashboard/internal/pipeline/pipelinetest"
	"taxi-dashboard/internal/taxi"
)

type counter map[string]int

func (c counter) HTTPRequestInc(route string, code int) { c[route+" "+http.StatusText(code)]++ }

func newServer(t *testing.T, load bool) (*Server, counter) {
	t.Helper()
	pickup := time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC)
	rows := []taxi.RawTrip{
		pipelinetest.Trip(pickup, 5, 1, 2, 2, 10, 1),
		pipelinetest.Trip(pickup.Add(time.Hour), 4, 2, 1, 3, 0, 2),
		pipelinetest.Trip(pickup.Add(15*time.Minute), 6, 1, 2, 4, 15, 1),
	}
	zones := []taxi.Zone{{LocationID: 1, Name: "A"}, {LocationID: 2, Name: "B"}}
	svc, err := dashboard.New(&pipelinetest.Trips{ID: "t", Rows: rows}, &pipelinetest.Zones{ID: "z", Zones: zones}, dashboard.Config{}, nil)
	require.NoError(t, err)
	if load {
		_, _, err = svc.Load(context.Background())
		require.NoError(t, err)
	}
	c := counter{}
	return New(svc, c, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("metrics")) })), c
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDashboardDefaultFilter(t *testing.T) {
	s, c := newServer(t, true)
	rec := get(t, s, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp dashboard.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dashboard.StatusOK, resp.Status)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
	require.NotNil(t, resp.Result)
	h := resp.Result.Headline
	assert.Equal(t, int64(2), h.TotalTrips)
	assert.Equal(t, 12.5, h.AvgFare)
	assert.Equal(t, 25.0, h.TotalRevenue)
	assert.Equal(t, "A", *resp.Result.TopZones[0].Zone)
	assert.Len(t, resp.Result.HourlyFare, 24)
	assert.Equal(t, 1, c["dashboard OK"])
}

func TestDashboardFilterParams(t *testing.T) {
	s, _ := newServer(t, true)
	rec := get(t, s, "/api/v1/dashboard?start=2024-01-09&end=2024-01-09&hour_from=8&hour_to=8&payment=1&payment=2&bins=8")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dashboard.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Result.Headline.TotalTrips)
	assert.Len(t, resp.Result.Distance, 8)
	assert.Equal(t, []int64{1, 2}, resp.Result.Filter.Payments)
}

func TestDashboardEmptyResult(t *testing.T) {
	s, _ := newServer(t, true)
	rec := get(t, s, "/api/v1/dashboard?payment=3")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "empty", body["status"])
	assert.Equal(t, "No data for the selected filters.", body["message"])
	assert.NotContains(t, body, "result")
}

func TestDashboardWithoutTrips(t *testing.T) {
	pickup := time.Date(2024, time.January, 9, 8, 0, 0, 0, time.UTC)
	rows := []taxi.RawTrip{pipelinetest.Trip(pickup, 5, 1, 2, 2, 0, 1)}
	svc, err := dashboard.New(&pipelinetest.Trips{ID: "t", Rows: rows}, &pipelinetest.Zones{ID: "z"}, dashboard.Config{}, nil)
	require.NoError(t, err)
	_, _, err = svc.Load(context.Background())
	require.NoError(t, err)
	s := New(svc, nil, nil)

	rec := get(t, s, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "empty", decode(t, rec)["status"])
}

func TestDashboardInvalidFilter(t *testing.T) {
	s, c := newServer(t, true)
	for _, target := range []string{
		"/api/v1/dashboard?start=2024-01-10&end=2024-01-09",
		"/api/v1/dashboard?hour_from=5&hour_to=2",
		"/api/v1/dashboard?hour_to=24",
		"/api/v1/dashboard?start=yesterday",
		"/api/v1/dashboard?payment=",
		"/api/v1/dashboard?payment=card",
		"/api/v1/dashboard?bins=7",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "invalid", decode(t, rec)["status"], target)
	}
	assert.Equal(t, 7, c["dashboard Bad Request"])
}

func TestNotLoaded(t *testing.T) {
	s, _ := newServer(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/api/v1/options").Code)
	rec := get(t, s, "/api/v1/dashboard")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
}

func TestOptionsAndHealth(t *testing.T) {
	s, _ := newServer(t, true)
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)

	rec := get(t, s, "/api/v1/options")
	require.Equal(t, http.StatusOK, rec.Code)
	var opts dashboard.Options
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	assert.Equal(t, taxi.NewDate(2024, time.January, 9), opts.MinDate)
	assert.Equal(t, []dashboard.PaymentOption{{Code: 1, Label: "Credit card"}}, opts.Payments)

	assert.Equal(t, "metrics", get(t, s, "/metrics").Body.String())
}

func TestExport(t *testing.T) {
	s, _ := newServer(t, true)
	rec := get(t, s, "/api/v1/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Top zones", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A", v)

	rec = get(t, s, "/api/v1/export.xlsx?payment=4")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "empty", decode(t, rec)["status"])
}

func TestRequestIDIsKept(t *testing.T) {
	s, _ := newServer(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("X-Request-ID", "fixed")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "fixed", rec.Header().Get("X-Request-ID"))
}
