package geography

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/shared/errors"
)

// Handler provides HTTP handlers for the geography module
type Handler struct {
	service *Service
}

// NewHandler creates a new geography handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the geography routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListRegions)
	r.Get("/join", h.JoinRegion)
	r.Get("/locate", h.LocateRegion)
	r.Get("/reconciliation", h.GetReconciliation)
	r.Get("/demographics", h.ListDemographics)

	r.Route("/boundaries", func(r chi.Router) {
		r.Get("/", h.GetBoundaries)
		r.Delete("/", h.InvalidateBoundaries)
		r.Post("/refresh", h.RefreshBoundaries)
	})

	return r
}

// OptionalSeriesRequest parses a series request when diseaseType is given.
func OptionalSeriesRequest(r *http.Request) (*disease.SeriesRequest, error) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("diseaseType")) == "" && strings.TrimSpace(q.Get("disease")) == "" {
		return nil, nil
	}
	req, err := disease.ParseSeriesRequest(r)
	if err != nil {
		return nil, err
	}
	// region selects the feature here, not a dataset filter
	req.Region = ""
	return &req, nil
}

// ListRegions lists boundary features with centroids.
func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.service.Regions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

// GetBoundaries serves the cached GeoJSON document as received.
func (h *Handler) GetBoundaries(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Boundaries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Last-Modified", snap.FetchedAt.UTC().Format(http.TimeFormat))
	if snap.Stale {
		w.Header().Set("X-Boundary-Stale", "true")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Raw)
}

// RefreshBoundaries reloads the boundary layer.
func (h *Handler) RefreshBoundaries(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.RefreshBoundaries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"features":  len(snap.Collection.Features),
		"fetchedAt": snap.FetchedAt.UTC().Format(time.RFC3339),
		"stale":     snap.Stale,
	})
}

// InvalidateBoundaries empties the boundary cache without refetching.
func (h *Handler) InvalidateBoundaries(w http.ResponseWriter, r *http.Request) {
	if err := h.service.InvalidateBoundaries(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JoinRegion returns demographics and records joined to one feature.
func (h *Handler) JoinRegion(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(firstParam(r.URL.Query().Get("name"), r.URL.Query().Get("region")))
	if name == "" {
		writeError(w, errors.Validation("name is required", map[string]string{"name": "required"}))
		return
	}
	req, err := OptionalSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if req != nil && req.Year == nil {
		req.Latest = true
	}

	view, err := h.service.Join(r.Context(), name, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// LocateRegion finds the feature containing lat/lng.
func (h *Handler) LocateRegion(w http.ResponseWriter, r *http.Request) {
	lat, errLat := parseCoordinate(r.URL.Query().Get("lat"), 90)
	lng, errLng := parseCoordinate(r.URL.Query().Get("lng"), 180)
	if errLat != nil || errLng != nil {
		writeError(w, errors.Validation("lat and lng must be valid coordinates", map[string]string{
			"lat": r.URL.Query().Get("lat"),
			"lng": r.URL.Query().Get("lng"),
		}))
		return
	}

	name, ok, err := h.service.Locate(r.Context(), lat, lng)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, errors.NotFound("region", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lng, 'f', -1, 64)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "lat": lat, "lng": lng})
}

func parseCoordinate(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if v < -limit || v > limit {
		return 0, errors.ErrBadRequest
	}
	return v, nil
}

// GetReconciliation reports unmatched and ambiguous region names.
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	req, err := OptionalSeriesRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.service.Reconcile(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListDemographics returns every public health unit.
func (h *Handler) ListDemographics(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Demographics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func firstParam(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
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
