package geography

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ontario-health/healthmap/internal/shared/metrics"
)

// GeographyRecord is one public health unit's demographic profile.
type GeographyRecord struct {
	Name         string   `json:"phu_name"`
	Region       string   `json:"region"`
	Population   *int64   `json:"population"`
	MedianIncome *float64 `json:"median_total_income"`
}

// DemographicsStore lists public health unit demographics.
type DemographicsStore interface {
	ListDemographics(ctx context.Context) ([]GeographyRecord, error)
}

// DemographicsRepository reads the public_health_units table.
type DemographicsRepository struct {
	pool *pgxpool.Pool
}

// NewDemographicsRepository creates a new demographics repository
func NewDemographicsRepository(pool *pgxpool.Pool) *DemographicsRepository {
	return &DemographicsRepository{pool: pool}
}

// ListDemographics returns every unit ordered by name. Population and
// income values that are not plain numbers are returned as null.
func (r *DemographicsRepository) ListDemographics(ctx context.Context) ([]GeographyRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_demographics", time.Since(start)) }()

	query := `
		SELECT
			COALESCE(phu_name::text, ''),
			COALESCE(region::text, ''),
			CASE WHEN population::text ~ '^[0-9][0-9,]*$'
				THEN replace(population::text, ',', '')::bigint END,
			CASE WHEN median_total_income::text ~ '^[0-9]+(\.[0-9]+)?$'
				THEN median_total_income::text::float8 END
		FROM public_health_units
		ORDER BY phu_name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list demographics: %w", err)
	}
	defer rows.Close()

	records := []GeographyRecord{}
	for rows.Next() {
		var rec GeographyRecord
		if err := rows.Scan(&rec.Name, &rec.Region, &rec.Population, &rec.MedianIncome); err != nil {
			return nil, fmt.Errorf("scan demographics: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
