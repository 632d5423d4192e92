package choropleth

import (
	"bytes"
	"encoding/json"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/shared/errors"
)

const (
	minDimension = 64
	maxDimension = 2048
)

// Handler provides HTTP handlers for the choropleth module
type Handler struct {
	service *Service
}

// NewHandler creates a new choropleth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the choropleth routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/choropleth", h.GetChoropleth)
	r.Get("/choropleth.png", h.RenderChoropleth)
	r.Get("/bubble.png", h.RenderBubbles)

	return r
}

// ParseRequest reads the series parameters plus role, bins and method.
func (h *Handler) ParseRequest(r *http.Request) (Request, error) {
	series, err := disease.ParseSeriesRequest(r)
	if err != nil {
		return Request{}, err
	}
	q := r.URL.Query()
	req := Request{Series: series}

	switch role := disease.Role(strings.ToLower(strings.TrimSpace(q.Get("role")))); role {
	case "":
		req.Role = disease.RolePrimary
	case disease.RolePrimary, disease.RoleSecondary, disease.RoleTertiary:
		req.Role = role
	default:
		return req, errors.Validation("unknown series role", map[string]string{"role": q.Get("role")})
	}

	if raw := strings.TrimSpace(q.Get("bins")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxBins {
			return req, errors.Validation("bins must be between 1 and 9", map[string]string{"bins": raw})
		}
		req.Bins = n
	}

	_, fallback := h.service.Defaults()
	req.Method, err = ParseMethod(q.Get("method"), fallback)
	if err != nil {
		return req, err
	}
	return req, nil
}

func parseRenderOptions(r *http.Request) (RenderOptions, error) {
	opts := DefaultRenderOptions()
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
		lo   int
		hi   int
	}{
		{"width", &opts.Width, minDimension, maxDimension},
		{"height", &opts.Height, minDimension, maxDimension},
		{"zoom", &opts.Zoom, 1, 18},
	} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < p.lo || n > p.hi {
			return opts, errors.Validation("invalid "+p.name, map[string]string{p.name: raw})
		}
		*p.dst = n
	}
	return opts, nil
}

// GetChoropleth returns the classified regions and bin legend.
func (h *Handler) GetChoropleth(w http.ResponseWriter, r *http.Request) {
	req, err := h.ParseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.Build(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RenderChoropleth renders the classified regions as a PNG map.
func (h *Handler) RenderChoropleth(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, RenderChoropleth)
}

// RenderBubbles renders population bubbles as a PNG map.
func (h *Handler) RenderBubbles(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, RenderBubbles)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, draw func(*Result, RenderOptions) (image.Image, error)) {
	req, err := h.ParseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	opts, err := parseRenderOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.Build(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	img, err := draw(res, opts)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
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
