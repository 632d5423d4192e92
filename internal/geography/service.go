package geography

import (
	"context"
	"sync"

	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/geoname"
	"github.com/ontario-health/healthmap/internal/shared/errors"
	"github.com/ontario-health/healthmap/internal/shared/metrics"
	"github.com/rs/zerolog"
)

// BoundaryProvider serves the cached boundary layer.
type BoundaryProvider interface {
	Get(ctx context.Context) (*Snapshot, error)
	Refresh(ctx context.Context) (*Snapshot, error)
	Invalidate(ctx context.Context) error
}

// SeriesSource runs disease series requests.
type SeriesSource interface {
	Series(ctx context.Context, req disease.SeriesRequest) (*disease.SeriesSet, error)
}

// LatLng is a JSON-friendly coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RegionSummary names a feature and where to place its label.
type RegionSummary struct {
	Name     string  `json:"name"`
	Centroid *LatLng `json:"centroid"`
}

// Joined pairs a feature with its joined view.
type Joined struct {
	Feature Feature
	View    RegionView
}

// Service answers region queries over the boundary layer.
type Service struct {
	boundaries   BoundaryProvider
	demographics DemographicsStore
	series       SeriesSource
	property     string
	logger       zerolog.Logger

	mu         sync.Mutex
	locator    *Locator
	locatorFor *FeatureCollection
}

// NewService creates a geography service. property names the feature
// property holding the region name.
func NewService(boundaries BoundaryProvider, demographics DemographicsStore, series SeriesSource, property string, logger zerolog.Logger) *Service {
	if property == "" {
		property = DefaultNameProperty
	}
	return &Service{
		boundaries:   boundaries,
		demographics: demographics,
		series:       series,
		property:     property,
		logger:       logger,
	}
}

// NameProperty returns the feature property used for names.
func (s *Service) NameProperty() string {
	return s.property
}

// Boundaries returns the cached boundary layer.
func (s *Service) Boundaries(ctx context.Context) (*Snapshot, error) {
	return s.boundaries.Get(ctx)
}

// RefreshBoundaries reloads the boundary layer from upstream.
func (s *Service) RefreshBoundaries(ctx context.Context) (*Snapshot, error) {
	return s.boundaries.Refresh(ctx)
}

// InvalidateBoundaries drops the cached boundary layer so the next read
// fetches it from upstream.
func (s *Service) InvalidateBoundaries(ctx context.Context) error {
	if err := s.boundaries.Invalidate(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to invalidate boundaries")
		return err
	}
	s.logger.Info().Msg("boundary cache invalidated")
	return nil
}

// Demographics lists every public health unit.
func (s *Service) Demographics(ctx context.Context) ([]GeographyRecord, error) {
	records, err := s.demographics.ListDemographics(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error().Err(err).Msg("failed to list demographics")
		return nil, errors.QueryError(err)
	}
	return records, nil
}

// Regions lists the boundary features with their centroids.
func (s *Service) Regions(ctx context.Context) ([]RegionSummary, error) {
	snap, err := s.boundaries.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RegionSummary, 0, len(snap.Collection.Features))
	for _, f := range snap.Collection.Features {
		summary := RegionSummary{Name: f.Name(s.property)}
		if c, ok := Centroid(f); ok {
			summary.Centroid = &LatLng{Lat: c.Lat.Degrees(), Lng: c.Lng.Degrees()}
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *Service) records(ctx context.Context, req *disease.SeriesRequest) ([]disease.DiseaseRecord, error) {
	if req == nil {
		return nil, nil
	}
	set, err := s.series.Series(ctx, *req)
	if err != nil {
		return nil, err
	}
	return set.All(), nil
}

// JoinAll joins every feature with demographics and, when req is set,
// with the records of that series request.
func (s *Service) JoinAll(ctx context.Context, req *disease.SeriesRequest) ([]Joined, error) {
	snap, err := s.boundaries.Get(ctx)
	if err != nil {
		return nil, err
	}
	geos, err := s.Demographics(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx, req)
	if err != nil {
		return nil, err
	}

	j := NewJoiner(geos, records)
	out := make([]Joined, 0, len(snap.Collection.Features))
	for _, f := range snap.Collection.Features {
		out = append(out, Joined{Feature: f, View: j.Join(f.Name(s.property))})
	}
	return out, nil
}

// Join returns the view of the feature named name.
func (s *Service) Join(ctx context.Context, name string, req *disease.SeriesRequest) (RegionView, error) {
	snap, err := s.boundaries.Get(ctx)
	if err != nil {
		return RegionView{}, err
	}
	feature := ""
	for _, f := range snap.Collection.Features {
		if n := f.Name(s.property); geoname.Equal(n, name) {
			feature = n
			break
		}
	}
	if feature == "" {
		return RegionView{}, errors.NotFound("region", name)
	}

	geos, err := s.Demographics(ctx)
	if err != nil {
		return RegionView{}, err
	}
	records, err := s.records(ctx, req)
	if err != nil {
		return RegionView{}, err
	}
	return Join(feature, geos, records), nil
}

// Locate returns the name of the feature containing the point.
func (s *Service) Locate(ctx context.Context, lat, lng float64) (string, bool, error) {
	snap, err := s.boundaries.Get(ctx)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	if s.locatorFor != snap.Collection {
		s.locator = NewLocator(snap.Collection, s.property)
		s.locatorFor = snap.Collection
	}
	locator := s.locator
	s.mu.Unlock()

	name, ok := locator.Locate(lat, lng)
	return name, ok, nil
}

// Reconcile reports how boundary names line up with demographics and,
// when req is set, with the primary geographies of that condition.
func (s *Service) Reconcile(ctx context.Context, req *disease.SeriesRequest) (*Report, error) {
	snap, err := s.boundaries.Get(ctx)
	if err != nil {
		return nil, err
	}
	geos, err := s.Demographics(ctx)
	if err != nil {
		return nil, err
	}

	var dataset []string
	if req != nil {
		set, err := s.series.Series(ctx, *req)
		if err != nil {
			return nil, err
		}
		for _, r := range set.Primary {
			dataset = append(dataset, r.Geography)
		}
	}

	demoNames := make([]string, 0, len(geos))
	for _, g := range geos {
		demoNames = append(demoNames, g.Name)
	}

	report := Reconcile(snap.Collection.Names(s.property), demoNames, dataset)
	metrics.RecordUnmatchedRegions(len(report.UnmatchedFeatures))
	s.logger.Info().
		Str("report_id", report.ID.String()).
		Int("matched", len(report.Matched)).
		Int("unmatched_features", len(report.UnmatchedFeatures)).
		Int("ambiguous", len(report.Ambiguous)).
		Msg("reconciliation complete")
	return report, nil
}
