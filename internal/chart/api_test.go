package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/shared/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(src *fakeSource) http.Handler {
	r := chi.NewRouter()
	r.Mount("/api/charts", NewHandler(NewService(src, zerolog.Nop())).Routes())
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestTrendsRequestsStandardizedMeasures(t *testing.T) {
	src := &fakeSource{set: lungTrends()}
	svc := NewService(src, zerolog.Nop())

	year := 2020
	filter, err := disease.ParseMeasureFilter("", "female")
	require.NoError(t, err)

	_, err = svc.Trends(context.Background(), disease.SeriesRequest{
		Category:  disease.CategoryCancer,
		Condition: "lung",
		Region:    "Toronto",
		Year:      &year,
		Filter:    filter,
	})
	require.NoError(t, err)

	require.Len(t, src.got, 1)
	got := src.got[0]
	assert.Equal(t, disease.StandardizedPrefix, got.Measure)
	assert.True(t, got.Filter.IsZero())
	assert.Nil(t, got.Year)
	assert.False(t, got.Latest)
	assert.Equal(t, "Toronto", got.Region)
}

func TestAgeGroupsRequestsSpecificMeasures(t *testing.T) {
	src := &fakeSource{set: ageSet()}
	svc := NewService(src, zerolog.Nop())

	groups, err := svc.AgeGroups(context.Background(), disease.SeriesRequest{Category: disease.CategoryCancer, Condition: "lung"})
	require.NoError(t, err)
	assert.Len(t, groups.Groups, 3)
	assert.Equal(t, disease.SpecificPrefix, src.got[0].Measure)

	_, err = svc.AgeGroups(context.Background(), disease.SeriesRequest{Category: disease.CategoryRespiratory, Condition: "asthma"})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestTrendsChartEndpoint(t *testing.T) {
	h := newTestRouter(&fakeSource{set: lungTrends()})

	w := get(t, h, "/api/charts/trends?diseaseType=Cancer&specificType=Lung&region=Toronto")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "echarts")
	assert.Contains(t, body, "Incidence (both sexes)")
	assert.Contains(t, body, "Mortality (both sexes)")
	assert.Contains(t, body, "in Toronto")
}

func TestAgeGroupsChartEndpoint(t *testing.T) {
	h := newTestRouter(&fakeSource{set: ageSet()})

	w := get(t, h, "/api/charts/age-groups?diseaseType=Cancer&specificType=Lung")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Incidence 2020")

	w = get(t, h, "/api/charts/age-groups?diseaseType=Reproductive&specificType=births")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopRegionsChartEndpoint(t *testing.T) {
	src := &fakeSource{regions: []disease.RegionRate{
		{Geography: "Sudbury", Year: 2021, Rate: 70},
		{Geography: "Toronto", Year: 2021, Rate: 50.4},
		{Geography: "Ottawa", Year: 2021, Rate: 41},
	}}
	h := newTestRouter(src)

	w := get(t, h, "/api/charts/top-regions?diseaseType=Cancer&specificType=Lung&limit=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, "Sudbury")
	assert.Contains(t, body, "Toronto")
	assert.NotContains(t, body, "Ottawa")
	assert.Contains(t, body, "2021")

	assert.Equal(t, http.StatusBadRequest,
		get(t, h, "/api/charts/top-regions?diseaseType=Cancer&specificType=Lung&limit=0").Code)
}

func TestChartEndpointErrors(t *testing.T) {
	h := newTestRouter(&fakeSource{err: errors.UnknownCondition("Cancer", "spleen")})

	w := get(t, h, "/api/charts/trends?diseaseType=Cancer&specificType=spleen")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UNKNOWN_CONDITION", body["code"])

	w = get(t, h, "/api/charts/trends?diseaseType=Dental&specificType=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderTrendsGaps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTrends(&buf, "gaps", BuildTrends(disease.CategoryCancer, lungTrends())))
	assert.Contains(t, buf.String(), fmt.Sprintf("%q", missing))
}
