package disease

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ontario-health/healthmap/internal/shared/errors"
)

// tablePrefixes is the naming rule per (category, role). A table is named
// prefix + lower-cased condition.
var tablePrefixes = map[Category]map[Role]string{
	CategoryCancer: {
		RolePrimary:   "cancer_incidence_",
		RoleSecondary: "cancer_mortality_",
	},
	CategoryChronic: {
		RolePrimary:   "chronic_incidence_",
		RoleSecondary: "chronic_mortality_",
		RoleTertiary:  "chronic_prevalence_",
	},
	CategorySmoking: {
		RolePrimary:   "smoking_",
		RoleSecondary: "smoking_disease_",
	},
	CategoryReproductive: {
		RolePrimary: "reproductive_health_",
	},
	CategoryRespiratory: {
		RolePrimary:   "respiratory_incidence_",
		RoleSecondary: "respiratory_mortality_",
	},
}

var conditionPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// NormalizeCondition lower-cases a condition and turns spaces into
// underscores. Anything else outside [a-z0-9_] is rejected so the result
// is always safe to splice into a table name.
func NormalizeCondition(category Category, condition string) (string, error) {
	c := strings.Join(strings.Fields(strings.ToLower(condition)), "_")
	if !conditionPattern.MatchString(c) {
		return "", errors.UnknownCondition(string(category), condition)
	}
	return c, nil
}

// TableName builds the conventional table name. ok is false when the
// category has no table for role.
func TableName(category Category, role Role, condition string) (string, bool) {
	prefix, ok := tablePrefixes[category][role]
	if !ok {
		return "", false
	}
	return prefix + condition, true
}

// ClassifyTable maps a physical table name back to its (category, role,
// condition). The longest matching prefix wins, so smoking_disease_active
// is the secondary smoking table for "active", not a primary table for
// "disease_active".
func ClassifyTable(name string) (TableRef, bool) {
	var best TableRef
	bestLen := 0
	for category, roles := range tablePrefixes {
		for role, prefix := range roles {
			if len(prefix) <= bestLen || !strings.HasPrefix(name, prefix) {
				continue
			}
			condition := strings.TrimPrefix(name, prefix)
			if !conditionPattern.MatchString(condition) {
				continue
			}
			best = TableRef{Name: name, Category: category, Condition: condition, Role: role}
			bestLen = len(prefix)
		}
	}
	return best, bestLen > 0
}

type registryKey struct {
	category  Category
	condition string
	role      Role
}

// Registry is the explicit map of validated tables. It is built once at
// startup and read concurrently afterwards.
type Registry struct {
	tables map[registryKey]TableRef
}

// NewRegistry indexes refs. Refs whose name does not follow the naming
// rule for their (category, role, condition) are skipped.
func NewRegistry(refs []TableRef) *Registry {
	r := &Registry{tables: make(map[registryKey]TableRef, len(refs))}
	for _, ref := range refs {
		want, ok := TableName(ref.Category, ref.Role, ref.Condition)
		if !ok || want != ref.Name {
			continue
		}
		r.tables[registryKey{ref.Category, ref.Condition, ref.Role}] = ref
	}
	return r
}

// Resolve maps (category, condition) to its tables. A missing primary
// table is UnknownCondition; missing secondary or tertiary tables leave
// the slot nil.
func (r *Registry) Resolve(category Category, condition string) (ResolvedTables, error) {
	if _, ok := tablePrefixes[category]; !ok {
		return ResolvedTables{}, errors.UnsupportedCategory(string(category))
	}
	c, err := NormalizeCondition(category, condition)
	if err != nil {
		return ResolvedTables{}, err
	}

	primary, ok := r.tables[registryKey{category, c, RolePrimary}]
	if !ok {
		return ResolvedTables{}, errors.UnknownCondition(string(category), condition)
	}

	resolved := ResolvedTables{Primary: primary}
	if ref, ok := r.tables[registryKey{category, c, RoleSecondary}]; ok {
		resolved.Secondary = &ref
	}
	if ref, ok := r.tables[registryKey{category, c, RoleTertiary}]; ok {
		resolved.Tertiary = &ref
	}
	return resolved, nil
}

// Conditions lists the conditions of a category that have a primary table.
func (r *Registry) Conditions(category Category) []string {
	conditions := []string{}
	for key := range r.tables {
		if key.category == category && key.role == RolePrimary {
			conditions = append(conditions, key.condition)
		}
	}
	sort.Strings(conditions)
	return conditions
}

// Tables returns every registered table ordered by name.
func (r *Registry) Tables() []TableRef {
	refs := make([]TableRef, 0, len(r.tables))
	for _, ref := range r.tables {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	return len(r.tables)
}
