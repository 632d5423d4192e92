package disease

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ontario-health/healthmap/internal/shared/errors"
)

const defaultTopRegions = 10

// Handler provides HTTP handlers for the disease module
type Handler struct {
	service *Service
}

// NewHandler creates a new disease handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the disease routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/disease-trends", func(r chi.Router) {
		r.Get("/", h.GetTrends)
		r.Get("/aligned", h.GetAlignedTrends)
	})

	r.Get("/available-years", h.GetAvailableYears)
	r.Get("/available-age-gender", h.GetAvailableFilters)
	r.Get("/top-regions", h.GetTopRegions)
	r.Get("/tables", h.ListTables)

	for _, c := range Categories {
		for _, slug := range routeSlugs(c) {
			r.Get("/"+slug+"-types", h.ListConditions(c))
			r.Get("/"+slug+"-data", h.GetCategoryData(c))
		}
	}

	return r
}

func routeSlugs(c Category) []string {
	if c == CategoryReproductive {
		return []string{c.Slug(), c.Slug() + "-health"}
	}
	return []string{c.Slug()}
}

// ParseSeriesRequest reads the common query parameters: diseaseType (or
// disease), specificType (or type), region, year, age and gender.
func ParseSeriesRequest(r *http.Request) (SeriesRequest, error) {
	q := r.URL.Query()
	category, err := ParseCategory(firstParam(q.Get("diseaseType"), q.Get("disease")))
	if err != nil {
		return SeriesRequest{}, err
	}
	return parseRequestFor(r, category)
}

func parseRequestFor(r *http.Request, category Category) (SeriesRequest, error) {
	q := r.URL.Query()
	req := SeriesRequest{
		Category:  category,
		Condition: strings.TrimSpace(firstParam(q.Get("specificType"), q.Get("type"))),
		Region:    strings.TrimSpace(q.Get("region")),
	}
	if req.Condition == "" {
		return req, errors.Validation("specificType is required", map[string]string{"specificType": "required"})
	}

	if y := strings.TrimSpace(q.Get("year")); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return req, errors.Validation("invalid year", map[string]string{"year": y})
		}
		req.Year = &year
	}

	filter, err := ParseMeasureFilter(q.Get("age"), q.Get("gender"))
	if err != nil {
		return req, err
	}
	req.Filter = filter
	return req, nil
}

func firstParam(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// --- Trend Handlers ---

// GetTrends returns the three raw series of a condition across all years.
func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	set, err := h.service.Series(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, set)
}

// GetAlignedTrends returns the three series merged on a shared year axis.
// Alignment keeps one value per year, so region is required.
func (h *Handler) GetAlignedTrends(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Region == "" {
		writeError(w, errors.Validation("region is required", map[string]string{"region": "required"}))
		return
	}

	set, err := h.service.Series(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, set.Align())
}

// --- Category Handlers ---

// ListConditions lists the conditions registered for a category.
func (h *Handler) ListConditions(category Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.service.Conditions(category))
	}
}

// GetCategoryData returns flat records of every series for one year,
// defaulting to the primary table's latest year.
func (h *Handler) GetCategoryData(category Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseRequestFor(r, category)
		if err != nil {
			writeError(w, err)
			return
		}
		req.Latest = true

		set, err := h.service.Series(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, set.All())
	}
}

// GetAvailableYears lists the years of a condition's primary table, newest first.
func (h *Handler) GetAvailableYears(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	years, err := h.service.Years(r.Context(), req.Category, req.Condition)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, years)
}

// GetAvailableFilters lists the age bands and genders a condition offers.
func (h *Handler) GetAvailableFilters(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts, err := h.service.FilterOptions(r.Context(), req.Category, req.Condition)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, opts)
}

// GetTopRegions ranks regions by primary rate for the latest year.
func (h *Handler) GetTopRegions(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, err := ParseLimit(r, defaultTopRegions)
	if err != nil {
		writeError(w, err)
		return
	}

	ranked, err := h.service.TopRegions(r.Context(), req, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ranked)
}

// ListTables returns the validated table registry.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Tables())
}

// ParseLimit reads a positive limit query parameter.
func ParseLimit(r *http.Request, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, errors.Validation("limit must be between 1 and 100", map[string]string{"limit": raw})
	}
	return n, nil
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	appErr := errors.As(err)
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   appErr.Message,
		"code":    appErr.Code,
		"details": appErr.Details,
	})
}
