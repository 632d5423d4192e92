package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ontario-health/healthmap/internal/chart"
	"github.com/ontario-health/healthmap/internal/choropleth"
	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/geography"
	"github.com/ontario-health/healthmap/internal/shared/logging"
	"github.com/ontario-health/healthmap/internal/shared/metrics"
	secmiddleware "github.com/ontario-health/healthmap/internal/shared/middleware"
)

const version = "1.0.0"

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	defer app.Close()

	cfg, logger := app.Config, app.Logger
	for _, rej := range app.Rejections {
		logger.Warn().Str("table", rej.Table).Str("reason", rej.Reason).Msg("disease table rejected")
	}

	go recordPoolUsage(ctx, app)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(logging.Component(logger, "http")))
	r.Use(secmiddleware.Recoverer(logger))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)

	cors := secmiddleware.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.Server.AllowedOrigins
	}
	r.Use(secmiddleware.CORS(cors))

	// Health checks
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	diseaseHandler := disease.NewHandler(app.Disease)
	geoHandler := geography.NewHandler(app.Geography)
	mapHandler := choropleth.NewHandler(choropleth.NewService(app.Geography, cfg.Choropleth, logging.Component(logger, "choropleth")))
	chartHandler := chart.NewHandler(chart.NewService(app.Disease, logging.Component(logger, "chart")))

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			limiter := secmiddleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
			go limiter.Run(ctx, time.Minute)
			r.Use(limiter.Middleware)
		}

		r.Get("/phu-data", geoHandler.ListDemographics)
		r.Mount("/", diseaseHandler.Routes())
		r.Mount("/regions", geoHandler.Routes())
		r.Mount("/maps", mapHandler.Routes())
		r.Mount("/charts", chartHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	logger.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Int("tables", app.Registry.Len()).
		Int("rejected_tables", len(app.Rejections)).
		Bool("redis", app.Redis != nil).
		Str("boundary_url", cfg.Boundary.URL).
		Msg("healthmap API listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	logger.Info().Msg("server stopped")
	return nil
}

// recordPoolUsage samples pool checkouts until ctx ends.
func recordPoolUsage(ctx context.Context, app *App) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.RecordDBConnections(app.DB.AcquiredConns())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Ontario Public Health Disease Map API",
		"version": version,
		"docs":    "/api",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Redis != nil {
			if err := app.Redis.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = "not ready: " + err.Error()
			} else {
				checks["redis"] = "ready"
			}
		} else {
			checks["redis"] = "not configured"
		}

		if app.Registry.Len() == 0 {
			checks["tables"] = "not ready: no valid disease tables"
		} else {
			checks["tables"] = "ready"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
