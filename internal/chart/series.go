// Package chart shapes disease series into chart data and renders them as
// interactive HTML with go-echarts.
package chart

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ontario-health/healthmap/internal/disease"
)

// Line is one plotted series. Values align with the chart's year axis; a
// nil value is a gap.
type Line struct {
	Name    string       `json:"name"`
	Role    disease.Role `json:"role"`
	Measure string       `json:"measure"`
	Values  []*float64   `json:"values"`
}

// Trends is a line chart over a shared year axis.
type Trends struct {
	Years []int  `json:"years"`
	Lines []Line `json:"lines"`
}

// Group is one bar series of an age-group chart: a role in one year.
type Group struct {
	Name   string       `json:"name"`
	Role   disease.Role `json:"role"`
	Year   int          `json:"year"`
	Values []*float64   `json:"values"`
}

// AgeGroups is a grouped bar chart over age bands.
type AgeGroups struct {
	Bands  []string `json:"bands"`
	Groups []Group  `json:"groups"`
}

var roleTitles = map[disease.Category]map[disease.Role]string{
	disease.CategoryCancer:       {disease.RolePrimary: "Incidence", disease.RoleSecondary: "Mortality"},
	disease.CategoryChronic:      {disease.RolePrimary: "Incidence", disease.RoleSecondary: "Mortality", disease.RoleTertiary: "Prevalence"},
	disease.CategorySmoking:      {disease.RolePrimary: "Smoking", disease.RoleSecondary: "Smoking-attributable disease"},
	disease.CategoryReproductive: {disease.RolePrimary: "Rate"},
	disease.CategoryRespiratory:  {disease.RolePrimary: "Incidence", disease.RoleSecondary: "Mortality"},
}

// RoleTitle names a role for display.
func RoleTitle(c disease.Category, role disease.Role) string {
	if t, ok := roleTitles[c][role]; ok {
		return t
	}
	s := string(role)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type stratum struct {
	suffix string
	label  string
}

func strata() []stratum {
	var none disease.MeasureFilter
	return []stratum{
		{"both sexes", disease.BothSexesLabel},
		{"males", disease.SelectMeasure(none.WithGender(disease.GenderMale))},
		{"females", disease.SelectMeasure(none.WithGender(disease.GenderFemale))},
	}
}

// BuildTrends lays out one line per role and sex stratum. Categories
// without strata get a single line per role. Roles without rows and
// lines without any value are omitted.
func BuildTrends(category disease.Category, set *disease.SeriesSet) Trends {
	type labelled struct {
		suffix  string
		label   string
		aligned disease.AlignedSeriesSet
	}

	var views []labelled
	if category.Stratified() {
		for _, s := range strata() {
			views = append(views, labelled{s.suffix, s.label, disease.Align(s.label, set.Primary, set.Secondary, set.Tertiary)})
		}
	} else {
		views = append(views, labelled{aligned: disease.Align("", set.Primary, set.Secondary, set.Tertiary)})
	}

	trends := Trends{Years: views[0].aligned.Years, Lines: []Line{}}
	for _, role := range disease.Roles {
		if len(set.Records(role)) == 0 {
			continue
		}
		for _, v := range views {
			values := v.aligned.Series(role)
			if !anyValue(values) {
				continue
			}
			name := RoleTitle(category, role)
			if v.suffix != "" {
				name += " (" + v.suffix + ")"
			}
			trends.Lines = append(trends.Lines, Line{Name: name, Role: role, Measure: v.label, Values: values})
		}
	}
	return trends
}

// BuildAgeGroups lays out one bar group per role and year across the
// age bands present in set.
func BuildAgeGroups(category disease.Category, set *disease.SeriesSet) AgeGroups {
	bands := ageBands(set.All())
	aligned := make([]disease.AlignedSeriesSet, len(bands))
	for i, band := range bands {
		var none disease.MeasureFilter
		aligned[i] = disease.Align(disease.SelectMeasure(none.WithAge(band)), set.Primary, set.Secondary, set.Tertiary)
	}

	out := AgeGroups{Bands: bands, Groups: []Group{}}
	if len(bands) == 0 {
		return out
	}
	years := aligned[0].Years
	for _, role := range disease.Roles {
		for yi, year := range years {
			values := make([]*float64, len(bands))
			for bi := range bands {
				values[bi] = aligned[bi].Series(role)[yi]
			}
			if !anyValue(values) {
				continue
			}
			out.Groups = append(out.Groups, Group{
				Name:   RoleTitle(category, role) + " " + strconv.Itoa(year),
				Role:   role,
				Year:   year,
				Values: values,
			})
		}
	}
	return out
}

// ageBands lists the distinct age-specific bands, youngest first.
func ageBands(records []disease.DiseaseRecord) []string {
	seen := map[string]bool{}
	var bands []string
	for _, r := range records {
		f, ok := disease.ParseMeasure(r.Measure)
		if !ok || f.Age() == "" || seen[f.Age()] {
			continue
		}
		seen[f.Age()] = true
		bands = append(bands, f.Age())
	}
	sort.Slice(bands, func(i, j int) bool {
		if li, lj := lowerBound(bands[i]), lowerBound(bands[j]); li != lj {
			return li < lj
		}
		return bands[i] < bands[j]
	})
	return bands
}

func lowerBound(band string) int {
	end := strings.IndexAny(band, "-+")
	if end < 0 {
		end = len(band)
	}
	n, _ := strconv.Atoi(band[:end])
	return n
}

func anyValue(values []*float64) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}
