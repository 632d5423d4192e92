package disease

import (
	"strings"

	"github.com/ontario-health/healthmap/internal/shared/errors"
)

// Category is a top-level disease grouping.
type Category string

const (
	CategoryCancer       Category = "Cancer"
	CategoryChronic      Category = "Chronic"
	CategorySmoking      Category = "Smoking"
	CategoryReproductive Category = "Reproductive"
	CategoryRespiratory  Category = "Respiratory"
)

// Categories lists every supported category in display order.
var Categories = []Category{
	CategoryCancer,
	CategoryChronic,
	CategorySmoking,
	CategoryReproductive,
	CategoryRespiratory,
}

// ParseCategory accepts a category name in any case, including the
// lower-case forms used in route paths ("cancer", "reproductive-health").
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimSuffix(key, "-health")
	for _, c := range Categories {
		if strings.ToLower(string(c)) == key {
			return c, nil
		}
	}
	return "", errors.UnsupportedCategory(s)
}

// Slug is the lower-case form used in routes and table names.
func (c Category) Slug() string {
	return strings.ToLower(string(c))
}

// Stratified reports whether the category's tables carry age and gender
// measures. Reproductive and respiratory tables do not.
func (c Category) Stratified() bool {
	switch c {
	case CategoryReproductive, CategoryRespiratory:
		return false
	default:
		return true
	}
}

// Role is one of the three parallel statistic tracks per condition.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
	RoleTertiary  Role = "tertiary"
)

// Roles lists the series roles in fetch order.
var Roles = []Role{RolePrimary, RoleSecondary, RoleTertiary}

// Columns records which optional columns a table carries. Empty means
// the column is absent and selected as NULL.
type Columns struct {
	Cases              string `json:"cases,omitempty"`
	ConfidenceInterval string `json:"confidenceInterval,omitempty"`
	Population         string `json:"population,omitempty"`
}

// TableRef identifies one validated data table.
type TableRef struct {
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Condition string   `json:"condition"`
	Role      Role     `json:"role"`
	Columns   Columns  `json:"columns"`
}

// ResolvedTables is the outcome of resolving a (category, condition) pair.
// Secondary and Tertiary are nil when the condition has no such table.
type ResolvedTables struct {
	Primary   TableRef  `json:"primary"`
	Secondary *TableRef `json:"secondary"`
	Tertiary  *TableRef `json:"tertiary"`
}

// Ref returns the table for role, or nil.
func (r ResolvedTables) Ref(role Role) *TableRef {
	switch role {
	case RolePrimary:
		p := r.Primary
		return &p
	case RoleSecondary:
		return r.Secondary
	case RoleTertiary:
		return r.Tertiary
	}
	return nil
}

// DiseaseRecord is one observed statistic.
type DiseaseRecord struct {
	Category           Category `json:"category"`
	Condition          string   `json:"condition"`
	SeriesRole         Role     `json:"seriesRole"`
	Measure            string   `json:"measure"`
	Geography          string   `json:"geography"`
	Year               int      `json:"year"`
	Rate               *float64 `json:"rate"`
	Cases              *int64   `json:"cases"`
	ConfidenceInterval *string  `json:"confidenceInterval"`
	CILow              *float64 `json:"ciLow,omitempty"`
	CIHigh             *float64 `json:"ciHigh,omitempty"`
	Population         *int64   `json:"population"`
}

// Query narrows a fetch. A nil Year selects every year. Empty Measure or
// Region strings drop that predicate.
type Query struct {
	Year    *int
	Measure string
	Region  string
	// Strata marks Measure as a prefix shared by several stored strata.
	// Several labels per slot are then expected and not reported.
	Strata bool
}

// Matches applies the query to a record with the same case-insensitive
// substring semantics as the SQL store.
func (q Query) Matches(rec DiseaseRecord) bool {
	if q.Year != nil && rec.Year != *q.Year {
		return false
	}
	if q.Measure != "" && !containsFold(rec.Measure, q.Measure) {
		return false
	}
	if q.Region != "" && !containsFold(rec.Geography, q.Region) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
