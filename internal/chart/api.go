package chart

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/shared/errors"
)

// Handler serves rendered charts.
type Handler struct {
	service *Service
}

// NewHandler creates a new chart handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the chart routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/trends", h.GetTrendsChart)
	r.Get("/age-groups", h.GetAgeGroupsChart)
	r.Get("/top-regions", h.GetTopRegionsChart)

	return r
}

// GetTrendsChart renders a condition's rates over time.
func (h *Handler) GetTrendsChart(w http.ResponseWriter, r *http.Request) {
	req, err := disease.ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.service.TrendsHTML(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeHTML(w, page)
}

// GetAgeGroupsChart renders a condition's age-specific rates.
func (h *Handler) GetAgeGroupsChart(w http.ResponseWriter, r *http.Request) {
	req, err := disease.ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.service.AgeGroupsHTML(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeHTML(w, page)
}

// GetTopRegionsChart renders the highest-rate regions.
func (h *Handler) GetTopRegionsChart(w http.ResponseWriter, r *http.Request) {
	req, err := disease.ParseSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := disease.ParseLimit(r, 10)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := h.service.TopRegionsHTML(r.Context(), req, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeHTML(w, page)
}

func writeHTML(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
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
