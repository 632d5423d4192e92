package geography

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/rs/zerolog"
)

// square returns a closed counter-clockwise ring around (lat, lng).
func square(lat, lng, half float64) Ring {
	return Ring{
		{lng - half, lat - half},
		{lng + half, lat - half},
		{lng + half, lat + half},
		{lng - half, lat + half},
		{lng - half, lat - half},
	}
}

func polygonFeature(name string, rings ...Ring) Feature {
	coords, err := json.Marshal(Polygon(rings))
	if err != nil {
		panic(err)
	}
	return Feature{
		Type:       "Feature",
		Properties: map[string]any{DefaultNameProperty: name},
		Geometry:   &Geometry{Type: "Polygon", Coordinates: coords},
	}
}

func collection(features ...Feature) *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: features}
}

func encode(fc *FeatureCollection) []byte {
	data, err := json.Marshal(fc)
	if err != nil {
		panic(err)
	}
	return data
}

// ontario is a toy layer with three non-overlapping units.
func ontario() *FeatureCollection {
	return collection(
		polygonFeature("City of Toronto Health Unit", square(43.7, -79.4, 0.2)),
		polygonFeature("Ottawa Public Health", square(45.4, -75.7, 0.2)),
		polygonFeature("Middlesex-London Health Unit", square(43.0, -81.2, 0.2)),
	)
}

type fakeSource struct {
	mu    sync.Mutex
	data  []byte
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (s *fakeSource) FetchBoundaries(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.err
}

func (s *fakeSource) set(data []byte, err error) {
	s.mu.Lock()
	s.data, s.err = data, err
	s.mu.Unlock()
}

type fakeDemographics struct {
	records []GeographyRecord
	err     error
}

func (f fakeDemographics) ListDemographics(ctx context.Context) ([]GeographyRecord, error) {
	return f.records, f.err
}

func int64p(v int64) *int64 { return &v }

func ontarioDemographics() fakeDemographics {
	return fakeDemographics{records: []GeographyRecord{
		{Name: "Toronto", Region: "Toronto", Population: int64p(2794356)},
		{Name: "Ottawa", Region: "East", Population: int64p(1017449)},
		{Name: "Middlesex-London", Region: "South West", Population: int64p(500563)},
	}}
}

type fakeSeries struct {
	set *disease.SeriesSet
	err error
	got []disease.SeriesRequest
}

func (f *fakeSeries) Series(ctx context.Context, req disease.SeriesRequest) (*disease.SeriesSet, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

func diseaseRec(geography string, year int, rate float64) disease.DiseaseRecord {
	return disease.DiseaseRecord{
		Category:   disease.CategoryCancer,
		Condition:  "lung",
		SeriesRole: disease.RolePrimary,
		Measure:    disease.BothSexesLabel,
		Geography:  geography,
		Year:       year,
		Rate:       &rate,
	}
}

func newTestGeoService(src *fakeSource, demo DemographicsStore, series SeriesSource) *Service {
	cache := NewBoundaryCache(src, 0, nil, "test:", zerolog.Nop())
	return NewService(cache, demo, series, DefaultNameProperty, zerolog.Nop())
}

func mustSource(fc *FeatureCollection) *fakeSource {
	return &fakeSource{data: encode(fc)}
}

var errUpstream = fmt.Errorf("connection reset by peer")
