package disease

import (
	"context"

	"github.com/ontario-health/healthmap/internal/shared/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Resolver maps a (category, condition) pair to its tables.
type Resolver interface {
	Resolve(category Category, condition string) (ResolvedTables, error)
	Conditions(category Category) []string
	Tables() []TableRef
}

// SeriesRequest describes one engine request.
type SeriesRequest struct {
	Category  Category
	Condition string
	Filter    MeasureFilter
	Region    string
	// Year pins every series to one year. When nil and Latest is set, the
	// primary table's latest year is used; otherwise all years are returned.
	Year   *int
	Latest bool
	// Measure, when set, replaces the label derived from Filter. It is
	// matched as a substring, so a shared prefix selects several strata.
	Measure string
}

// SeriesSet holds the raw rows of the three series.
type SeriesSet struct {
	Tables    ResolvedTables  `json:"-"`
	Measure   string          `json:"measure"`
	Year      *int            `json:"year,omitempty"`
	Primary   []DiseaseRecord `json:"primary"`
	Secondary []DiseaseRecord `json:"secondary"`
	Tertiary  []DiseaseRecord `json:"tertiary"`
	// Degraded names the roles whose fetch failed and were left empty.
	Degraded []Role `json:"degraded,omitempty"`
	NoData   bool   `json:"noData"`
}

// Records returns the rows of one role.
func (s *SeriesSet) Records(role Role) []DiseaseRecord {
	switch role {
	case RoleSecondary:
		return s.Secondary
	case RoleTertiary:
		return s.Tertiary
	default:
		return s.Primary
	}
}

// All returns every row, primary first.
func (s *SeriesSet) All() []DiseaseRecord {
	all := make([]DiseaseRecord, 0, len(s.Primary)+len(s.Secondary)+len(s.Tertiary))
	all = append(all, s.Primary...)
	all = append(all, s.Secondary...)
	return append(all, s.Tertiary...)
}

// Align aligns the set on its measure label.
func (s *SeriesSet) Align() AlignedSeriesSet {
	return Align(s.Measure, s.Primary, s.Secondary, s.Tertiary)
}

// Service resolves, selects and fetches disease series.
type Service struct {
	resolver Resolver
	fetcher  *Fetcher
	logger   zerolog.Logger
}

// NewService creates a disease service
func NewService(resolver Resolver, fetcher *Fetcher, logger zerolog.Logger) *Service {
	return &Service{resolver: resolver, fetcher: fetcher, logger: logger}
}

// Resolve exposes table resolution.
func (s *Service) Resolve(category Category, condition string) (ResolvedTables, error) {
	return s.resolver.Resolve(category, condition)
}

// Conditions lists the registered conditions of a category.
func (s *Service) Conditions(category Category) []string {
	return s.resolver.Conditions(category)
}

// Tables lists every registered table.
func (s *Service) Tables() []TableRef {
	return s.resolver.Tables()
}

// Series runs the full pipeline for req. The three fetches run
// concurrently; a primary failure fails the request, while secondary or
// tertiary failures leave that slot empty and are listed in Degraded.
func (s *Service) Series(ctx context.Context, req SeriesRequest) (*SeriesSet, error) {
	tables, err := s.resolver.Resolve(req.Category, req.Condition)
	if err != nil {
		return nil, err
	}
	label, err := MeasureFor(req.Category, req.Filter)
	if err != nil {
		return nil, err
	}
	strata := false
	if req.Measure != "" && req.Category.Stratified() {
		label, strata = req.Measure, true
	}

	year := req.Year
	if year == nil && req.Latest {
		year, err = s.fetcher.AnchorYear(ctx, tables.Primary)
		if err != nil {
			return nil, err
		}
		if year == nil {
			return s.empty(tables, label), nil
		}
	}

	q := Query{Year: year, Measure: label, Region: req.Region, Strata: strata}
	set := s.empty(tables, label)
	set.Year = year

	results := make([][]DiseaseRecord, len(Roles))
	failed := make([]bool, len(Roles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range Roles {
		ref := tables.Ref(role)
		if ref == nil {
			continue
		}
		g.Go(func() error {
			rows, err := s.fetcher.Fetch(gctx, *ref, q)
			if err == nil {
				results[i] = rows
				outcome := "ok"
				if len(rows) == 0 {
					outcome = "empty"
				}
				metrics.RecordSeriesFetch(string(req.Category), string(role), outcome)
				return nil
			}
			if role == RolePrimary {
				metrics.RecordSeriesFetch(string(req.Category), string(role), "failed")
				return err
			}
			failed[i] = true
			metrics.RecordSeriesFetch(string(req.Category), string(role), "degraded")
			s.logger.Warn().Err(err).
				Str("table", ref.Name).
				Str("role", string(role)).
				Msg("series fetch failed, returning empty slot")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, role := range Roles {
		if failed[i] {
			set.Degraded = append(set.Degraded, role)
		}
		if results[i] == nil {
			continue
		}
		switch role {
		case RolePrimary:
			set.Primary = results[i]
		case RoleSecondary:
			set.Secondary = results[i]
		case RoleTertiary:
			set.Tertiary = results[i]
		}
	}
	set.NoData = len(set.Primary) == 0 && len(set.Secondary) == 0 && len(set.Tertiary) == 0
	return set, nil
}

func (s *Service) empty(tables ResolvedTables, label string) *SeriesSet {
	return &SeriesSet{
		Tables:    tables,
		Measure:   label,
		Primary:   []DiseaseRecord{},
		Secondary: []DiseaseRecord{},
		Tertiary:  []DiseaseRecord{},
		NoData:    true,
	}
}

// Years lists the primary table years of a condition, newest first.
func (s *Service) Years(ctx context.Context, category Category, condition string) ([]int, error) {
	tables, err := s.resolver.Resolve(category, condition)
	if err != nil {
		return nil, err
	}
	return s.fetcher.Years(ctx, tables.Primary)
}

// FilterOptions lists the age bands and genders of a condition's primary table.
func (s *Service) FilterOptions(ctx context.Context, category Category, condition string) (FilterOptions, error) {
	tables, err := s.resolver.Resolve(category, condition)
	if err != nil {
		return FilterOptions{}, err
	}
	if !category.Stratified() {
		return FilterOptionsFrom(nil), nil
	}
	measures, err := s.fetcher.Measures(ctx, tables.Primary)
	if err != nil {
		return FilterOptions{}, err
	}
	return FilterOptionsFrom(measures), nil
}

// TopRegions ranks regions of a condition's primary series for the latest year.
func (s *Service) TopRegions(ctx context.Context, req SeriesRequest, limit int) ([]RegionRate, error) {
	req.Latest = true
	set, err := s.Series(ctx, req)
	if err != nil {
		return nil, err
	}
	return TopRegions(set.Primary, limit), nil
}
