package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Series metrics
	seriesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disease_series_fetched_total",
			Help: "Total number of disease series fetches",
		},
		[]string{"category", "role", "outcome"},
	)

	ambiguousMeasures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disease_measure_ambiguous_total",
			Help: "Query slots where more than one stored measure matched the requested label",
		},
		[]string{"table"},
	)

	fetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disease_fetch_retries_total",
			Help: "Retries of transient storage failures",
		},
		[]string{"table"},
	)

	// Boundary metrics
	boundaryCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boundary_cache_lookups_total",
			Help: "Boundary cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	boundaryRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boundary_refresh_duration_seconds",
			Help:    "Boundary service fetch duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	unmatchedRegions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geography_unmatched_regions",
			Help: "Boundary features without a matching dataset name in the last reconciliation",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern labels requests by their chi route template so category
// routes like /api/{category}-data share one series.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if len(r.URL.Path) > 100 {
		return "/api/..."
	}
	return r.URL.Path
}

// RecordSeriesFetch records a series fetch outcome: ok, empty, degraded or failed.
func RecordSeriesFetch(category, role, outcome string) {
	seriesFetched.WithLabelValues(category, role, outcome).Inc()
}

// RecordAmbiguousMeasure records a query slot with several matching measures.
func RecordAmbiguousMeasure(table string) {
	ambiguousMeasures.WithLabelValues(table).Inc()
}

// RecordFetchRetry records a retried storage call.
func RecordFetchRetry(table string) {
	fetchRetries.WithLabelValues(table).Inc()
}

// RecordBoundaryCache records a boundary cache lookup.
func RecordBoundaryCache(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	boundaryCache.WithLabelValues(tier, result).Inc()
}

// RecordBoundaryRefresh records a boundary service fetch.
func RecordBoundaryRefresh(ok bool, duration time.Duration) {
	status := "error"
	if ok {
		status = "ok"
	}
	boundaryRefreshDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordUnmatchedRegions records the unmatched feature count of a reconciliation.
func RecordUnmatchedRegions(count int) {
	unmatchedRegions.Set(float64(count))
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
