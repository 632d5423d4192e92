package disease

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ontario-health/healthmap/internal/geoname"
)

// AlignedSeriesSet is a year-ordered, gap-filled view of up to three
// series. Every value slice has len(Years); nil means no record for that
// year, never a zero rate.
type AlignedSeriesSet struct {
	Measure   string     `json:"measure"`
	Years     []int      `json:"years"`
	Primary   []*float64 `json:"primary"`
	Secondary []*float64 `json:"secondary"`
	Tertiary  []*float64 `json:"tertiary"`
	NoData    bool       `json:"noData"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// Series returns the values for role.
func (s AlignedSeriesSet) Series(role Role) []*float64 {
	switch role {
	case RoleSecondary:
		return s.Secondary
	case RoleTertiary:
		return s.Tertiary
	default:
		return s.Primary
	}
}

// Align merges the three series for measure label. Years is the sorted
// union of every input year. For each year the first row whose measure
// contains label (case-insensitive) wins; rows are put in a canonical
// order first so the outcome does not depend on input order. An empty
// label matches every measure.
func Align(label string, primary, secondary, tertiary []DiseaseRecord) AlignedSeriesSet {
	yearSet := map[int]struct{}{}
	for _, rows := range [][]DiseaseRecord{primary, secondary, tertiary} {
		for _, r := range rows {
			yearSet[r.Year] = struct{}{}
		}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	set := AlignedSeriesSet{Measure: label, Years: years, NoData: len(years) == 0}
	var warnings []string
	set.Primary, warnings = alignSeries(RolePrimary, label, years, primary, warnings)
	set.Secondary, warnings = alignSeries(RoleSecondary, label, years, secondary, warnings)
	set.Tertiary, warnings = alignSeries(RoleTertiary, label, years, tertiary, warnings)
	set.Warnings = warnings
	return set
}

func alignSeries(role Role, label string, years []int, rows []DiseaseRecord, warnings []string) ([]*float64, []string) {
	values := make([]*float64, len(years))
	index := make(map[int]int, len(years))
	for i, y := range years {
		index[y] = i
	}

	candidates := make(map[int]int, len(years))
	for _, r := range canonicalOrder(rows) {
		if label != "" && !containsFold(r.Measure, label) {
			continue
		}
		i := index[r.Year]
		candidates[r.Year]++
		if candidates[r.Year] == 1 && r.Rate != nil {
			v := *r.Rate
			values[i] = &v
		}
	}

	for _, y := range years {
		if n := candidates[y]; n > 1 {
			warnings = append(warnings, fmt.Sprintf("%s %d: %d rows match %q", role, y, n, label))
		}
	}
	return values, warnings
}

// canonicalOrder returns a copy of rows sorted by normalized geography,
// year, measure and rate (missing rates last), so any permutation of the
// same rows yields the same sequence.
func canonicalOrder(rows []DiseaseRecord) []DiseaseRecord {
	sorted := make([]DiseaseRecord, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ga, gb := geoname.Normalize(a.Geography), geoname.Normalize(b.Geography); ga != gb {
			return ga < gb
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if ma, mb := strings.ToLower(a.Measure), strings.ToLower(b.Measure); ma != mb {
			return ma < mb
		}
		return lessRate(a.Rate, b.Rate)
	})
	return sorted
}

func lessRate(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}
