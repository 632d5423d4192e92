package choropleth

import (
	"context"

	"github.com/ontario-health/healthmap/internal/disease"
	"github.com/ontario-health/healthmap/internal/geography"
	"github.com/ontario-health/healthmap/internal/shared/config"
	"github.com/rs/zerolog"
)

// Regions joins boundary features with demographics and series rows.
type Regions interface {
	JoinAll(ctx context.Context, req *disease.SeriesRequest) ([]geography.Joined, error)
}

// Request selects the series and classification of one map.
type Request struct {
	Series disease.SeriesRequest
	Role   disease.Role
	Bins   int
	Method Method
}

// RegionValue is one feature's rate and fill.
type RegionValue struct {
	Name       string   `json:"name"`
	Geography  string   `json:"geography,omitempty"`
	Year       *int     `json:"year"`
	Rate       *float64 `json:"rate"`
	Population *int64   `json:"population"`
	Color      string   `json:"color"`
	// Bin is the class index, -1 without a rate, -2 when out of range.
	Bin int `json:"bin"`
}

// Result is a classified map.
type Result struct {
	Measure string        `json:"measure"`
	Role    disease.Role  `json:"role"`
	Method  Method        `json:"method"`
	Bins    []Bin         `json:"bins"`
	Regions []RegionValue `json:"regions"`
	NoData  bool          `json:"noData"`

	features []geography.Feature
}

// Service builds choropleth classifications.
type Service struct {
	regions  Regions
	defaults config.ChoroplethConfig
	logger   zerolog.Logger
}

// NewService creates a choropleth service
func NewService(regions Regions, defaults config.ChoroplethConfig, logger zerolog.Logger) *Service {
	return &Service{regions: regions, defaults: defaults, logger: logger}
}

// Defaults returns the configured bin count and method.
func (s *Service) Defaults() (int, Method) {
	m, err := ParseMethod(s.defaults.Method, EqualInterval)
	if err != nil {
		m = EqualInterval
	}
	bins := s.defaults.Bins
	if bins < 1 {
		bins = 5
	}
	return bins, m
}

// Build classifies one role's rates across every feature. Rates default
// to the primary table's latest year unless a year is requested.
func (s *Service) Build(ctx context.Context, req Request) (*Result, error) {
	bins, method := s.Defaults()
	if req.Bins > 0 {
		bins = req.Bins
	}
	if req.Method != "" {
		method = req.Method
	}
	role := req.Role
	if role == "" {
		role = disease.RolePrimary
	}

	series := req.Series
	series.Region = ""
	if series.Year == nil {
		series.Latest = true
	}

	joined, err := s.regions.JoinAll(ctx, &series)
	if err != nil {
		return nil, err
	}

	res := &Result{Role: role, Method: method, Regions: make([]RegionValue, 0, len(joined))}
	var rates []float64
	for _, j := range joined {
		v := valueFor(j.View, role)
		if v.Rate != nil {
			rates = append(rates, *v.Rate)
		}
		if rec := firstRecord(j.View, role); rec != nil && res.Measure == "" {
			res.Measure = rec.Measure
		}
		res.Regions = append(res.Regions, v)
		res.features = append(res.features, j.Feature)
	}

	res.Bins = Classify(rates, bins, method)
	for i := range res.Regions {
		res.Regions[i].Bin = BinIndex(res.Regions[i].Rate, res.Bins)
		res.Regions[i].Color = ColorFor(res.Regions[i].Rate, res.Bins)
	}
	res.NoData = len(rates) == 0
	if res.NoData {
		s.logger.Debug().
			Str("category", string(req.Series.Category)).
			Str("condition", req.Series.Condition).
			Msg("no rates joined to any region")
	}
	return res, nil
}

func firstRecord(view geography.RegionView, role disease.Role) *disease.DiseaseRecord {
	for i := range view.Records {
		if view.Records[i].SeriesRole == role && view.Records[i].Rate != nil {
			return &view.Records[i]
		}
	}
	return nil
}

func valueFor(view geography.RegionView, role disease.Role) RegionValue {
	v := RegionValue{Name: view.Name, Geography: view.Geography}
	rec := firstRecord(view, role)
	if rec != nil {
		rate, year := *rec.Rate, rec.Year
		v.Rate, v.Year = &rate, &year
		v.Population = rec.Population
	}
	if view.Demographics != nil && view.Demographics.Population != nil {
		v.Population = view.Demographics.Population
	}
	return v
}
