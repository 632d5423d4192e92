package disease

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *memoryStore) http.Handler {
	r := chi.NewRouter()
	r.Mount("/api", NewHandler(newTestService(store)).Routes())
	return r
}

func torontoLungOnly() *memoryStore {
	return newMemoryStore().add("cancer_incidence_lung",
		rec("City of Toronto", 2019, BothSexesLabel, 48.2),
		rec("City of Toronto", 2020, BothSexesLabel, 50.4),
		rec("Ottawa", 2020, BothSexesLabel, 44.0),
		rec("Peel", 2020, "Age-standardized rate (males)", 70.0),
	).add("cancer_mortality_lung",
		rec("Ottawa", 2020, BothSexesLabel, 20.0),
	)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetTrendsOnlyPrimaryData(t *testing.T) {
	h := newTestRouter(torontoLungOnly())

	rec := get(t, h, "/api/disease-trends?diseaseType=Cancer&specificType=Lung&region=Toronto")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[map[string]json.RawMessage](t, rec)
	assert.JSONEq(t, `[]`, string(body["secondary"]))
	assert.JSONEq(t, `[]`, string(body["tertiary"]))

	var primary []DiseaseRecord
	require.NoError(t, json.Unmarshal(body["primary"], &primary))
	require.Len(t, primary, 2)
	assert.Equal(t, CategoryCancer, primary[0].Category)
	assert.Equal(t, "lung", primary[0].Condition)
	assert.Equal(t, RolePrimary, primary[0].SeriesRole)
}

func TestGetTrendsErrors(t *testing.T) {
	h := newTestRouter(torontoLungOnly())

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unsupported category", "/api/disease-trends?diseaseType=Dental&specificType=Lung", http.StatusBadRequest, "UNSUPPORTED_CATEGORY"},
		{"unknown condition", "/api/disease-trends?diseaseType=Cancer&specificType=Brain", http.StatusBadRequest, "UNKNOWN_CONDITION"},
		{"injection attempt", "/api/disease-trends?diseaseType=Cancer&specificType=lung%3Bdrop", http.StatusBadRequest, "UNKNOWN_CONDITION"},
		{"missing condition", "/api/disease-trends?diseaseType=Cancer", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad year", "/api/disease-trends?diseaseType=Cancer&specificType=Lung&year=latest", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad gender", "/api/disease-trends?diseaseType=Cancer&specificType=Lung&gender=other", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			body := decode[map[string]any](t, rec)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetAlignedTrends(t *testing.T) {
	h := newTestRouter(torontoLungOnly())

	rec := get(t, h, "/api/disease-trends/aligned?diseaseType=cancer&specificType=lung&region=Toronto")
	require.Equal(t, http.StatusOK, rec.Code)

	set := decode[AlignedSeriesSet](t, rec)
	assert.Equal(t, []int{2019, 2020}, set.Years)
	assert.Len(t, set.Secondary, 2)
	assert.Nil(t, set.Secondary[0])
	assert.Nil(t, set.Secondary[1])
}

func TestGetAlignedTrendsRequiresRegion(t *testing.T) {
	store := torontoLungOnly()
	h := newTestRouter(store)

	for _, target := range []string{
		"/api/disease-trends/aligned?diseaseType=cancer&specificType=lung",
		"/api/disease-trends/aligned?diseaseType=cancer&specificType=lung&region=%20",
	} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	}
	assert.Zero(t, store.callCount("cancer_incidence_lung"))
}

func TestListConditions(t *testing.T) {
	store := torontoLungOnly().add("cancer_incidence_breast")
	h := newTestRouter(store)

	rec := get(t, h, "/api/cancer-types")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"breast", "lung"}, decode[[]string](t, rec))

	rec = get(t, h, "/api/dental-types")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryRouteAliases(t *testing.T) {
	store := newMemoryStore().add("reproductive_health_hiv", rec("Toronto", 2021, "Rate per 100,000", 4.2))
	h := newTestRouter(store)

	for _, target := range []string{"/api/reproductive-types", "/api/reproductive-health-types"} {
		resp := get(t, h, target)
		require.Equal(t, http.StatusOK, resp.Code, target)
		assert.Equal(t, []string{"hiv"}, decode[[]string](t, resp))
	}

	resp := get(t, h, "/api/reproductive-health-data?specificType=HIV")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Len(t, decode[[]DiseaseRecord](t, resp), 1)
}

func TestGetCategoryData(t *testing.T) {
	h := newTestRouter(torontoLungOnly())

	rec := get(t, h, "/api/cancer-data?specificType=lung")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows := decode[[]DiseaseRecord](t, rec)
	require.Len(t, rows, 3)
	var roles []Role
	for _, r := range rows {
		assert.Equal(t, 2020, r.Year)
		roles = append(roles, r.SeriesRole)
	}
	assert.Equal(t, []Role{RolePrimary, RolePrimary, RoleSecondary}, roles)
}

func TestGetTopRegions(t *testing.T) {
	h := newTestRouter(torontoLungOnly())

	rec := get(t, h, "/api/top-regions?diseaseType=Cancer&specificType=lung&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	ranked := decode[[]RegionRate](t, rec)
	require.Len(t, ranked, 1)
	assert.Equal(t, "City of Toronto", ranked[0].Geography)

	rec = get(t, h, "/api/top-regions?diseaseType=Cancer&specificType=lung&limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAvailableYearsAndFilters(t *testing.T) {
	h := newTestRouter(torontoLungOnly())

	rec := get(t, h, "/api/available-years?diseaseType=Cancer&specificType=lung")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{2020, 2019}, decode[[]int](t, rec))

	rec = get(t, h, "/api/available-age-gender?diseaseType=Cancer&specificType=lung")
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[FilterOptions](t, rec)
	assert.Equal(t, []string{"male"}, opts.GenderFilters)
	assert.Empty(t, opts.AgeFilters)
}

func TestListTables(t *testing.T) {
	h := newTestRouter(torontoLungOnly())

	rec := get(t, h, "/api/tables")
	require.Equal(t, http.StatusOK, rec.Code)
	tables := decode[[]TableRef](t, rec)
	require.Len(t, tables, 2)
	assert.Equal(t, "cancer_incidence_lung", tables[0].Name)
}
