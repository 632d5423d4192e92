package chart

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/shared/errors"
	"github.com/rs/zerolog"
)

// SeriesSource fetches disease series.
type SeriesSource interface {
	Series(ctx context.Context, req disease.SeriesRequest) (*disease.SeriesSet, error)
	TopRegions(ctx context.Context, req disease.SeriesRequest, limit int) ([]disease.RegionRate, error)
}

// Service builds and renders charts.
type Service struct {
	source SeriesSource
	logger zerolog.Logger
}

// NewService creates a chart service
func NewService(source SeriesSource, logger zerolog.Logger) *Service {
	return &Service{source: source, logger: logger}
}

// Trends fetches every standardized measure of a condition across all
// years and lays them out per role and sex.
func (s *Service) Trends(ctx context.Context, req disease.SeriesRequest) (Trends, error) {
	req.Year, req.Latest = nil, false
	if req.Category.Stratified() {
		req.Filter = disease.MeasureFilter{}
		req.Measure = disease.StandardizedPrefix
	}
	set, err := s.source.Series(ctx, req)
	if err != nil {
		return Trends{}, err
	}
	return BuildTrends(req.Category, set), nil
}

// AgeGroups fetches every age-specific measure of a condition.
func (s *Service) AgeGroups(ctx context.Context, req disease.SeriesRequest) (AgeGroups, error) {
	if !req.Category.Stratified() {
		return AgeGroups{}, errors.Validation("age groups are not available for this category",
			map[string]string{"diseaseType": string(req.Category)})
	}
	req.Filter = disease.MeasureFilter{}
	req.Measure = disease.SpecificPrefix
	set, err := s.source.Series(ctx, req)
	if err != nil {
		return AgeGroups{}, err
	}
	return BuildAgeGroups(req.Category, set), nil
}

// TrendsHTML renders Trends.
func (s *Service) TrendsHTML(ctx context.Context, req disease.SeriesRequest) ([]byte, error) {
	t, err := s.Trends(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.render(func(buf *bytes.Buffer) error {
		return RenderTrends(buf, title(req, "rates over time"), t)
	})
}

// AgeGroupsHTML renders AgeGroups.
func (s *Service) AgeGroupsHTML(ctx context.Context, req disease.SeriesRequest) ([]byte, error) {
	g, err := s.AgeGroups(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.render(func(buf *bytes.Buffer) error {
		return RenderAgeGroups(buf, title(req, "rates by age group"), g)
	})
}

// TopRegionsHTML renders the top regions of the latest year.
func (s *Service) TopRegionsHTML(ctx context.Context, req disease.SeriesRequest, limit int) ([]byte, error) {
	regions, err := s.source.TopRegions(ctx, req, limit)
	if err != nil {
		return nil, err
	}
	heading := title(req, "top regions")
	if len(regions) > 0 {
		heading = fmt.Sprintf("%s, %d", heading, regions[0].Year)
	}
	return s.render(func(buf *bytes.Buffer) error {
		return RenderTopRegions(buf, heading, regions)
	})
}

func (s *Service) render(draw func(*bytes.Buffer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		s.logger.Error().Err(err).Msg("chart render failed")
		return nil, errors.Internal(err)
	}
	return buf.Bytes(), nil
}

func title(req disease.SeriesRequest, what string) string {
	t := fmt.Sprintf("%s %s: %s", req.Category, req.Condition, what)
	if req.Region != "" {
		t += " in " + req.Region
	}
	return t
}
