package disease

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ontario-health/healthmap/internal/geoname"
)

var intervalPattern = regexp.MustCompile(`^\(?\s*(-?\d*\.?\d+)\s*[-,]\s*(-?\d*\.?\d+)\s*\)?$`)

// ParseCI parses a confidence interval string such as "(12.1-15.3)".
func ParseCI(s string) (low, high float64, ok bool) {
	m := intervalPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	low, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	high, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	return low, high, true
}

func withInterval(rec *DiseaseRecord) {
	if rec.ConfidenceInterval == nil {
		return
	}
	if low, high, ok := ParseCI(*rec.ConfidenceInterval); ok {
		rec.CILow, rec.CIHigh = &low, &high
	}
}

// RegionRate is one entry of a ranking.
type RegionRate struct {
	Geography string  `json:"geography"`
	Year      int     `json:"year"`
	Rate      float64 `json:"rate"`
}

// TopRegions ranks regions by rate for the latest year present in
// records. Rows without a rate are ignored; each region appears once.
func TopRegions(records []DiseaseRecord, limit int) []RegionRate {
	latest, found := 0, false
	for _, r := range records {
		if r.Rate != nil && (!found || r.Year > latest) {
			latest, found = r.Year, true
		}
	}
	ranked := []RegionRate{}
	if !found {
		return ranked
	}

	seen := map[string]bool{}
	for _, r := range canonicalOrder(records) {
		if r.Year != latest || r.Rate == nil {
			continue
		}
		key := geoname.Normalize(r.Geography)
		if seen[key] {
			continue
		}
		seen[key] = true
		ranked = append(ranked, RegionRate{Geography: r.Geography, Year: r.Year, Rate: *r.Rate})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rate > ranked[j].Rate
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// FilterOptions lists the demographic strata a table offers.
type FilterOptions struct {
	AgeFilters    []string `json:"ageFilters"`
	GenderFilters []string `json:"genderFilters"`
}

// FilterOptionsFrom derives age bands and genders from stored measures.
func FilterOptionsFrom(measures []string) FilterOptions {
	opts := FilterOptions{AgeFilters: []string{}, GenderFilters: []string{}}
	ages := map[string]bool{}
	genders := map[Gender]bool{}
	for _, m := range measures {
		f, ok := ParseMeasure(m)
		if !ok {
			continue
		}
		if a := f.Age(); a != "" && !ages[a] {
			ages[a] = true
			opts.AgeFilters = append(opts.AgeFilters, a)
		}
		if g := f.Gender(); g != "" && !genders[g] {
			genders[g] = true
			opts.GenderFilters = append(opts.GenderFilters, string(g))
		}
	}
	sort.Slice(opts.AgeFilters, func(i, j int) bool {
		return ageLowerBound(opts.AgeFilters[i]) < ageLowerBound(opts.AgeFilters[j])
	})
	sort.Strings(opts.GenderFilters)
	return opts
}

func ageLowerBound(band string) int {
	end := strings.IndexAny(band, "-+")
	if end < 0 {
		end = len(band)
	}
	n, _ := strconv.Atoi(band[:end])
	return n
}
