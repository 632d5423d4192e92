package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/geography"
	"github.com/ontario-health/healthmap/internal/shared/config"
	"github.com/ontario-health/healthmap/internal/shared/database"
	"github.com/ontario-health/healthmap/internal/shared/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	DB         *database.DB
	Redis      *redis.Client
	Registry   *disease.Registry
	Rejections []disease.Rejection
	Disease    *disease.Service
	Geography  *geography.Service
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthmap",
		Short: "Ontario public health disease data API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the validated disease tables and the tables rejected at startup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			return printJSON(cmd, map[string]any{
				"tables":   app.Registry.Tables(),
				"rejected": app.Rejections,
			})
		},
	}
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report boundary, demographics and dataset names that do not join",
		RunE: func(cmd *cobra.Command, args []string) error {
			diseaseType, _ := cmd.Flags().GetString("disease")
			condition, _ := cmd.Flags().GetString("type")

			ctx := cmd.Context()
			app, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			var req *disease.SeriesRequest
			if diseaseType != "" {
				category, err := disease.ParseCategory(diseaseType)
				if err != nil {
					return err
				}
				req = &disease.SeriesRequest{Category: category, Condition: condition, Latest: true}
			}

			report, err := app.Geography.Reconcile(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().String("disease", "", "Disease category whose primary table is compared (e.g. Cancer)")
	cmd.Flags().String("type", "", "Condition within the category (e.g. Lung)")
	return cmd
}

// bootstrap loads configuration and wires storage and services.
func bootstrap(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Server.Env)
	app := &App{Config: cfg, Logger: logger}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database not available: %w", err)
	}
	app.DB = db

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not available, boundary cache is memory only")
			rdb.Close()
		} else {
			app.Redis = rdb
		}
	}

	repo := disease.NewRepository(db.Pool)
	registry, rejections, err := disease.BuildRegistry(ctx, repo, logging.Component(logger, "catalog"))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build table registry: %w", err)
	}
	app.Registry, app.Rejections = registry, rejections

	fetcher := disease.NewFetcher(repo, cfg.Retry, logging.Component(logger, "fetcher"))
	app.Disease = disease.NewService(registry, fetcher, logging.Component(logger, "disease"))

	client := geography.NewClient(cfg.Boundary, cfg.Retry, logging.Component(logger, "boundary-client"))
	cache := geography.NewBoundaryCache(client, cfg.Boundary.CacheTTL, app.Redis, cfg.Redis.Prefix, logging.Component(logger, "boundary-cache"))
	app.Geography = geography.NewService(
		cache,
		geography.NewDemographicsRepository(db.Pool),
		app.Disease,
		cfg.Boundary.NameProperty,
		logging.Component(logger, "geography"),
	)

	return app, nil
}

// Close releases storage clients.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
