package disease

import (
	"context"
	"strings"

	"github.com/ontario-health/healthmap/internal/geoname"
	"github.com/ontario-health/healthmap/internal/shared/config"
	"github.com/ontario-health/healthmap/internal/shared/database"
	"github.com/ontario-health/healthmap/internal/shared/errors"
	"github.com/ontario-health/healthmap/internal/shared/metrics"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Fetcher runs queries against a Store with bounded retries on transient
// failures. Exhausted or permanent failures surface as QueryError.
type Fetcher struct {
	store     Store
	retry     config.RetryConfig
	transient func(error) bool
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher. Postgres error classification decides
// which failures are retried.
func NewFetcher(store Store, cfg config.RetryConfig, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		store:     store,
		retry:     cfg,
		transient: database.IsTransient,
		logger:    logger,
	}
}

func (f *Fetcher) backoff() retry.Backoff {
	base := f.retry.BaseDelay
	if base <= 0 {
		base = 1
	}
	b := retry.NewExponential(base)
	if f.retry.MaxDelay > 0 {
		b = retry.WithCappedDuration(f.retry.MaxDelay, b)
	}
	return retry.WithMaxRetries(uint64(f.retry.MaxRetries), b)
}

// do runs fn under the retry policy. Context errors pass through
// unchanged so callers can tell cancellation apart from storage failure.
func (f *Fetcher) do(ctx context.Context, table TableRef, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, f.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RecordFetchRetry(table.Name)
		}
		err := fn(ctx)
		if err != nil && f.transient(err) {
			f.logger.Debug().Err(err).Str("table", table.Name).Str("op", op).Int("attempt", attempt).Msg("transient storage error")
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.logger.Error().Err(err).Str("table", table.Name).Str("op", op).Int("attempts", attempt).Msg("query failed")
	return errors.QueryError(err)
}

// Fetch returns the rows of table matching q. A table without matching
// rows yields an empty slice. Slots matched by several stored labels are
// logged and counted unless q.Strata is set.
func (f *Fetcher) Fetch(ctx context.Context, table TableRef, q Query) ([]DiseaseRecord, error) {
	var records []DiseaseRecord
	err := f.do(ctx, table, "select", func(ctx context.Context) error {
		var err error
		records, err = f.store.Select(ctx, table, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []DiseaseRecord{}
	}

	if q.Measure != "" && !q.Strata {
		for _, a := range DetectAmbiguity(records) {
			metrics.RecordAmbiguousMeasure(table.Name)
			f.logger.Warn().
				Str("table", table.Name).
				Str("label", q.Measure).
				Str("geography", a.Geography).
				Int("year", a.Year).
				Strs("measures", a.Measures).
				Msg("measure label matches several stored measures")
		}
	}
	return records, nil
}

// AnchorYear returns the latest year of table, or nil when it is empty.
// Callers compute it once from the primary table and pass it to every
// series so all three describe the same year.
func (f *Fetcher) AnchorYear(ctx context.Context, table TableRef) (*int, error) {
	var year int
	var ok bool
	err := f.do(ctx, table, "max_year", func(ctx context.Context) error {
		var err error
		year, ok, err = f.store.MaxYear(ctx, table)
		return err
	})
	if err != nil || !ok {
		return nil, err
	}
	return &year, nil
}

// Years lists the years of table, newest first.
func (f *Fetcher) Years(ctx context.Context, table TableRef) ([]int, error) {
	var years []int
	err := f.do(ctx, table, "years", func(ctx context.Context) error {
		var err error
		years, err = f.store.Years(ctx, table)
		return err
	})
	if years == nil && err == nil {
		years = []int{}
	}
	return years, err
}

// Measures lists the measure labels of table.
func (f *Fetcher) Measures(ctx context.Context, table TableRef) ([]string, error) {
	var measures []string
	err := f.do(ctx, table, "measures", func(ctx context.Context) error {
		var err error
		measures, err = f.store.Measures(ctx, table)
		return err
	})
	return measures, err
}

// Ambiguity is a (geography, year) slot matched by several distinct
// stored measures.
type Ambiguity struct {
	Geography string
	Year      int
	Measures  []string
}

// DetectAmbiguity reports slots where rows carry more than one distinct
// measure label. Substring matching makes this possible whenever one
// stored label extends another.
func DetectAmbiguity(records []DiseaseRecord) []Ambiguity {
	type slot struct {
		geography string
		year      int
	}
	measures := map[slot][]string{}
	var order []slot
	for _, r := range canonicalOrder(records) {
		s := slot{geoname.Normalize(r.Geography), r.Year}
		existing, seen := measures[s]
		if !seen {
			order = append(order, s)
		}
		dup := false
		for _, m := range existing {
			if strings.EqualFold(m, r.Measure) {
				dup = true
				break
			}
		}
		if !dup {
			measures[s] = append(existing, r.Measure)
		}
	}

	var out []Ambiguity
	for _, s := range order {
		if ms := measures[s]; len(ms) > 1 {
			out = append(out, Ambiguity{Geography: s.geography, Year: s.year, Measures: ms})
		}
	}
	return out
}
