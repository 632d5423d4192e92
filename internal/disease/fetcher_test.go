package disease

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ontario-health/healthmap/internal/shared/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lungIncidence = "cancer_incidence_lung"

func TestFetchRetriesTransientErrors(t *testing.T) {
	store := newMemoryStore().
		add(lungIncidence, rec("Toronto", 2020, BothSexesLabel, 55.1)).
		failNext(lungIncidence, &pgconn.PgError{Code: "08006"}, &pgconn.PgError{Code: "57P01"})

	f := NewFetcher(store, testRetry(), zerolog.Nop())
	rows, err := f.Fetch(context.Background(), ref(lungIncidence), Query{})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, store.callCount(lungIncidence))
	assert.Equal(t, RolePrimary, rows[0].SeriesRole)
}

func TestFetchExhaustedRetriesIsQueryError(t *testing.T) {
	transient := &pgconn.PgError{Code: "08006"}
	store := newMemoryStore().
		add(lungIncidence).
		failNext(lungIncidence, transient, transient, transient, transient)

	f := NewFetcher(store, testRetry(), zerolog.Nop())
	_, err := f.Fetch(context.Background(), ref(lungIncidence), Query{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrQuery)
	assert.Equal(t, "QUERY_ERROR", errors.As(err).Code)
	assert.Equal(t, 3, store.callCount(lungIncidence))
}

func TestFetchPermanentErrorIsNotRetried(t *testing.T) {
	store := newMemoryStore().
		add(lungIncidence).
		failNext(lungIncidence, &pgconn.PgError{Code: "42P01"})

	f := NewFetcher(store, testRetry(), zerolog.Nop())
	_, err := f.Fetch(context.Background(), ref(lungIncidence), Query{})

	assert.ErrorIs(t, err, errors.ErrQuery)
	assert.Equal(t, 1, store.callCount(lungIncidence))
}

func TestFetchUsesInjectedClassifier(t *testing.T) {
	store := newMemoryStore().
		add(lungIncidence, rec("Toronto", 2020, BothSexesLabel, 55.1)).
		failNext(lungIncidence, fmt.Errorf("flaky"))

	f := NewFetcher(store, testRetry(), zerolog.Nop())
	f.transient = func(error) bool { return true }

	rows, err := f.Fetch(context.Background(), ref(lungIncidence), Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFetchCancelledContext(t *testing.T) {
	store := newMemoryStore().add(lungIncidence)
	f := NewFetcher(store, testRetry(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, ref(lungIncidence), Query{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, errors.ErrQuery)
}

func TestFetchNoMatchesIsEmptySlice(t *testing.T) {
	store := newMemoryStore().add(lungIncidence, rec("Ottawa", 2020, BothSexesLabel, 40))
	f := NewFetcher(store, testRetry(), zerolog.Nop())

	rows, err := f.Fetch(context.Background(), ref(lungIncidence), Query{Region: "Toronto"})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestFetchFiltersByQuery(t *testing.T) {
	year := 2019
	store := newMemoryStore().add(lungIncidence,
		rec("City of Toronto", 2019, BothSexesLabel, 50),
		rec("City of Toronto", 2020, BothSexesLabel, 52),
		rec("City of Toronto", 2019, "Age-standardized rate (males)", 61),
		rec("Ottawa", 2019, BothSexesLabel, 44),
	)
	f := NewFetcher(store, testRetry(), zerolog.Nop())

	rows, err := f.Fetch(context.Background(), ref(lungIncidence), Query{
		Year:    &year,
		Measure: "age-standardized rate (both sexes)",
		Region:  "toronto",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 50.0, *rows[0].Rate)
}

func TestAnchorYear(t *testing.T) {
	t.Run("latest year", func(t *testing.T) {
		store := newMemoryStore().add(lungIncidence,
			rec("Toronto", 2017, BothSexesLabel, 1),
			rec("Toronto", 2021, BothSexesLabel, 2),
			rec("Toronto", 2019, BothSexesLabel, 3),
		)
		f := NewFetcher(store, testRetry(), zerolog.Nop())

		year, err := f.AnchorYear(context.Background(), ref(lungIncidence))
		require.NoError(t, err)
		require.NotNil(t, year)
		assert.Equal(t, 2021, *year)
	})

	t.Run("empty table", func(t *testing.T) {
		store := newMemoryStore().add(lungIncidence)
		f := NewFetcher(store, testRetry(), zerolog.Nop())

		year, err := f.AnchorYear(context.Background(), ref(lungIncidence))
		require.NoError(t, err)
		assert.Nil(t, year)
	})
}

func TestDetectAmbiguity(t *testing.T) {
	records := []DiseaseRecord{
		rec("Toronto", 2020, "Age-specific rate (50 to 64)", 10),
		rec("Toronto", 2020, "Age-specific rate (50 to 64) adjusted", 11),
		rec("Toronto", 2021, "Age-specific rate (50 to 64)", 12),
		rec("toronto ", 2021, "age-specific rate (50 to 64)", 12),
	}

	got := DetectAmbiguity(records)
	require.Len(t, got, 1)
	assert.Equal(t, "toronto", got[0].Geography)
	assert.Equal(t, 2020, got[0].Year)
	assert.Len(t, got[0].Measures, 2)
}

func TestFetchAmbiguityReporting(t *testing.T) {
	const warning = "measure label matches several stored measures"

	strata := []DiseaseRecord{
		rec("Toronto", 2020, BothSexesLabel, 50),
		rec("Toronto", 2020, StandardizedPrefix+" (males)", 55),
		rec("Toronto", 2020, StandardizedPrefix+" (females)", 45),
		rec("Toronto", 2021, BothSexesLabel, 51),
		rec("Toronto", 2021, StandardizedPrefix+" (males)", 56),
		rec("Toronto", 2021, StandardizedPrefix+" (females)", 46),
	}
	revised := []DiseaseRecord{
		rec("Toronto", 2020, BothSexesLabel, 50),
		rec("Toronto", 2020, BothSexesLabel+" revised", 52),
	}

	tests := []struct {
		name  string
		rows  []DiseaseRecord
		query Query
		want  int
	}{
		{"prefix over strata", strata, Query{Measure: StandardizedPrefix, Strata: true}, 0},
		{"prefix without strata flag", strata, Query{Measure: StandardizedPrefix}, 2},
		{"exact label with revised variant", revised, Query{Measure: BothSexesLabel}, 1},
		{"exact label single stratum", strata, Query{Measure: BothSexesLabel}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			store := newMemoryStore().add(lungIncidence, tt.rows...)
			f := NewFetcher(store, testRetry(), zerolog.New(&buf))

			_, err := f.Fetch(context.Background(), ref(lungIncidence), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.Count(buf.String(), warning))
		})
	}
}
