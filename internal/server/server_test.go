package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/cantonhealth/internal/config"
	"github.com/gyeh/cantonhealth/internal/dashboard"
	"github.com/gyeh/cantonhealth/internal/pipeline"
)

func testConfig() config.Config {
	return config.Config{
		Population:          "../pipeline/testdata/population.geojson",
		Facilities:          "../pipeline/testdata/facilities.geojson",
		Boundaries:          "../pipeline/testdata/boundaries.geojson",
		SaturationThreshold: dashboard.DefaultThreshold,
	}
}

func newTestServer(t *testing.T) (*Server, *pipeline.Memo) {
	t.Helper()
	memo := pipeline.NewMemo(zerolog.Nop(), 0, nil)
	s := New(testConfig(), memo, zerolog.Nop())
	gin.SetMode(gin.TestMode)
	return s, memo
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodOptions, "/api/districts")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProvincesAndCantons(t *testing.T) {
	s, _ := newTestServer(t)

	var provinces struct{ Provinces []string }
	decode(t, do(t, s, http.MethodGet, "/api/provinces"), &provinces)
	assert.Equal(t, []string{"Alajuela", "San José"}, provinces.Provinces)

	var cantons struct{ Cantons []string }
	decode(t, do(t, s, http.MethodGet, "/api/cantons?province=San+Jos%C3%A9"), &cantons)
	assert.Equal(t, []string{"Alfa", "Beta"}, cantons.Cantons)

	decode(t, do(t, s, http.MethodGet, "/api/cantons?province=(Todas)"), &cantons)
	assert.Len(t, cantons.Cantons, 3)
}

func TestDistricts(t *testing.T) {
	s, _ := newTestServer(t)

	var body struct {
		Districts []dashboard.Row
		Count     int
	}
	decode(t, do(t, s, http.MethodGet, "/api/districts"), &body)
	require.Equal(t, 3, body.Count)
	assert.Equal(t, "Beta", body.Districts[0].Canton, "sorted by population descending")
	assert.Equal(t, "Alfa", body.Districts[1].Canton)
	require.NotNil(t, body.Districts[1].PerHospital)
	assert.InDelta(t, 500, *body.Districts[1].PerHospital, 1e-9)
	assert.Nil(t, body.Districts[0].PerHospital)

	decode(t, do(t, s, http.MethodGet, "/api/districts?province=Alajuela"), &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Gamma", body.Districts[0].Canton)

	decode(t, do(t, s, http.MethodGet, "/api/districts?canton=Alfa"), &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, int64(2), body.Districts[0].Hospitals)
}

func TestDistrictsCSV(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/districts.csv?province=San+Jos%C3%A9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), dashboard.CSVFileName)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "San José,Beta,2000,"))
	assert.True(t, strings.HasSuffix(lines[1], ",0,"), "undefined ratio is an empty cell: %q", lines[1])
}

func TestDistrictsPDF(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/districts.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestFacilities(t *testing.T) {
	s, _ := newTestServer(t)

	var body struct {
		Markers []dashboard.Marker
		Count   int
	}
	decode(t, do(t, s, http.MethodGet, "/api/facilities"), &body)
	assert.Equal(t, 4, body.Count)

	decode(t, do(t, s, http.MethodGet, "/api/facilities?province=San+Jos%C3%A9"), &body)
	assert.Equal(t, 3, body.Count)

	decode(t, do(t, s, http.MethodGet, "/api/facilities?canton=Alfa"), &body)
	require.Equal(t, 2, body.Count)
	names := []string{body.Markers[0].Name, body.Markers[1].Name}
	assert.ElementsMatch(t, []string{"Hospital Alfa", "Clínica Norte"}, names)
}

func TestCharts(t *testing.T) {
	s, _ := newTestServer(t)

	var hospitals dashboard.Chart
	decode(t, do(t, s, http.MethodGet, "/api/charts/hospitals"), &hospitals)
	require.NotEmpty(t, hospitals.Bars)
	assert.Equal(t, "Alfa", hospitals.Bars[0].Canton)
	assert.Equal(t, float64(2), hospitals.Bars[0].Value)

	var pressure dashboard.Chart
	decode(t, do(t, s, http.MethodGet, "/api/charts/pressure"), &pressure)
	require.Len(t, pressure.Bars, 1)
	assert.True(t, pressure.Horizontal)
	assert.Equal(t, float64(500), pressure.Bars[0].Value)
}

func TestSaturated(t *testing.T) {
	s, _ := newTestServer(t)

	var body struct {
		Threshold float64
		Saturated []dashboard.SaturatedRow
		Count     int
	}
	decode(t, do(t, s, http.MethodGet, "/api/saturated"), &body)
	assert.Equal(t, float64(dashboard.DefaultThreshold), body.Threshold)
	assert.Equal(t, 0, body.Count)

	decode(t, do(t, s, http.MethodGet, "/api/saturated?threshold=1000"), &body)
	assert.Equal(t, 0, body.Count, "Alfa's ratio of 500 stays below the minimum threshold")

	for _, bad := range []string{"abc", "10", "2000000"} {
		rec := do(t, s, http.MethodGet, "/api/saturated?threshold="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "threshold=%s", bad)
	}
}

func TestMap(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/map?variable=POB_2015&palette=Viridis&canton=Alfa")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Variable  dashboard.Variable
		Palette   dashboard.Palette
		Districts struct {
			Type     string
			Features []json.RawMessage
		}
		Markers []dashboard.Marker
	}
	decode(t, rec, &view)
	assert.Equal(t, "POB_2015", view.Variable.Column)
	assert.Equal(t, "Viridis", view.Palette.Name)
	assert.Equal(t, "FeatureCollection", view.Districts.Type)
	assert.Len(t, view.Districts.Features, 3, "choropleth ignores the canton selection")
	assert.Len(t, view.Markers, 2)

	rec = do(t, s, http.MethodGet, "/api/map")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Len(t, view.Districts.Features, 1, "only Alfa has a defined ratio")

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/map?variable=bogus").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/map?palette=bogus").Code)
}

func TestSummary(t *testing.T) {
	s, _ := newTestServer(t)

	var body struct {
		Summary dashboard.Summary
		Run     map[string]int
	}
	decode(t, do(t, s, http.MethodGet, "/api/summary"), &body)
	assert.Equal(t, int64(2), body.Summary.TotalHospitals)
	assert.Equal(t, int64(3000), body.Summary.TotalPopulation)
	assert.Equal(t, 7, body.Run["facilities_read"])
	assert.Equal(t, 2, body.Run["facilities_unmatched"])
}

func TestReloadFlushesMemo(t *testing.T) {
	s, memo := newTestServer(t)

	do(t, s, http.MethodGet, "/api/summary")
	do(t, s, http.MethodGet, "/api/provinces")
	assert.Equal(t, 1, memo.Runs())

	rec := do(t, s, http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, memo.Runs())
}

type failingResults struct{}

func (failingResults) Get(context.Context, pipeline.Sources) (*pipeline.Result, error) {
	return nil, errors.New("boundaries unreadable")
}

func (failingResults) Flush() {}

func TestPipelineErrorIs500(t *testing.T) {
	s := New(testConfig(), failingResults{}, zerolog.Nop())
	rec := do(t, s, http.MethodGet, "/api/districts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"boundaries unreadable"}`, rec.Body.String())
}
