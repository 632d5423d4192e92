package disease

import (
	"regexp"
	"strings"

	"github.com/ontario-health/healthmap/internal/shared/errors"
)

// Gender is the gender stratum of a measure.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts "male"/"female" in any case, singular or plural.
func ParseGender(s string) (Gender, error) {
	g := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	switch Gender(g) {
	case GenderMale, GenderFemale:
		return Gender(g), nil
	}
	return "", errors.Validation("invalid gender", map[string]string{"gender": s})
}

const (
	// StandardizedPrefix is shared by the both-sexes and gender labels.
	StandardizedPrefix = "Age-standardized rate"
	// SpecificPrefix is shared by every age-band label.
	SpecificPrefix = "Age-specific rate"
	// BothSexesLabel is selected when no demographic filter is set.
	BothSexesLabel = StandardizedPrefix + " (both sexes)"
)

var agePattern = regexp.MustCompile(`^\d{1,3}(-\d{1,3}|\+)?$`)

// MeasureFilter selects a demographic stratum. Age and gender are
// mutually exclusive: setting one clears the other.
type MeasureFilter struct {
	age    string
	gender Gender
}

// WithAge returns a copy filtered to an age band such as "50-64" or "80+".
func (f MeasureFilter) WithAge(age string) MeasureFilter {
	f.age = strings.TrimSpace(age)
	f.gender = ""
	return f
}

// WithGender returns a copy filtered to a gender.
func (f MeasureFilter) WithGender(g Gender) MeasureFilter {
	f.gender = g
	f.age = ""
	return f
}

func (f MeasureFilter) Age() string    { return f.age }
func (f MeasureFilter) Gender() Gender { return f.gender }

// IsZero reports whether neither age nor gender is set.
func (f MeasureFilter) IsZero() bool {
	return f.age == "" && f.gender == ""
}

// ParseMeasureFilter builds a filter from raw query values. When both are
// supplied, age takes precedence.
func ParseMeasureFilter(age, gender string) (MeasureFilter, error) {
	var f MeasureFilter
	age = strings.TrimSpace(age)
	gender = strings.TrimSpace(gender)

	switch {
	case age != "":
		if !agePattern.MatchString(age) {
			return f, errors.Validation("invalid age band", map[string]string{"age": age})
		}
		return f.WithAge(age), nil
	case gender != "":
		g, err := ParseGender(gender)
		if err != nil {
			return f, err
		}
		return f.WithGender(g), nil
	}
	return f, nil
}

// SelectMeasure derives the measure label matched against stored measures.
func SelectMeasure(f MeasureFilter) string {
	switch {
	case f.age != "":
		return SpecificPrefix + " (" + strings.Replace(f.age, "-", " to ", 1) + ")"
	case f.gender != "":
		return StandardizedPrefix + " (" + strings.ToLower(string(f.gender)) + "s)"
	}
	return BothSexesLabel
}

// MeasureFor returns the label for a category, or "" when the category's
// tables are not stratified. Demographic filters on such a category are
// rejected.
func MeasureFor(c Category, f MeasureFilter) (string, error) {
	if c.Stratified() {
		return SelectMeasure(f), nil
	}
	if !f.IsZero() {
		return "", errors.Validation("age and gender filters are not available for this category",
			map[string]string{"diseaseType": string(c)})
	}
	return "", nil
}

// ParseMeasure is the inverse of SelectMeasure for stored labels. ok is
// false for labels that are neither age-specific nor gender-standardized.
func ParseMeasure(label string) (f MeasureFilter, ok bool) {
	l := strings.TrimSpace(label)
	open := strings.LastIndex(l, "(")
	if open < 0 || !strings.HasSuffix(l, ")") {
		return f, false
	}
	prefix := strings.TrimSpace(l[:open])
	inner := strings.TrimSpace(l[open+1 : len(l)-1])

	switch {
	case strings.EqualFold(prefix, SpecificPrefix):
		age := strings.Replace(inner, " to ", "-", 1)
		if !agePattern.MatchString(age) {
			return f, false
		}
		return f.WithAge(age), true
	case strings.EqualFold(prefix, StandardizedPrefix):
		if strings.EqualFold(inner, "both sexes") {
			return f, true
		}
		g, err := ParseGender(inner)
		if err != nil {
			return f, false
		}
		return f.WithGender(g), true
	}
	return f, false
}
