package disease

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var requiredColumns = []string{"geography", "year", "measure", "rate"}

// optional column name candidates, in preference order
var (
	casesColumns      = []string{"cases", "case_count"}
	intervalColumns   = []string{"ci", "confidence_interval"}
	populationColumns = []string{"population"}
)

// Rejection explains why a table that looks like a disease table was not
// registered.
type Rejection struct {
	Table  string `json:"table"`
	Reason string `json:"reason"`
}

// ValidateTable classifies a physical table and checks its columns.
// ok is false for tables that do not follow any naming rule; those are
// silently ignored. A table that follows a rule but lacks required
// columns is returned as a Rejection.
func ValidateTable(schema TableSchema) (ref TableRef, rejection *Rejection, ok bool) {
	ref, ok = ClassifyTable(schema.Name)
	if !ok {
		return TableRef{}, nil, false
	}

	have := make(map[string]bool, len(schema.Columns))
	for _, c := range schema.Columns {
		have[strings.ToLower(c)] = true
	}

	var missing []string
	for _, c := range requiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return ref, &Rejection{
			Table:  schema.Name,
			Reason: fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")),
		}, true
	}

	ref.Columns = Columns{
		Cases:              firstPresent(have, casesColumns),
		ConfidenceInterval: firstPresent(have, intervalColumns),
		Population:         firstPresent(have, populationColumns),
	}
	return ref, nil, true
}

func firstPresent(have map[string]bool, candidates []string) string {
	for _, c := range candidates {
		if have[c] {
			return c
		}
	}
	return ""
}

// BuildRegistry discovers tables through catalog and registers those that
// pass validation. Rejected tables are logged and returned so they can be
// reported; they never reach query time.
func BuildRegistry(ctx context.Context, catalog Catalog, logger zerolog.Logger) (*Registry, []Rejection, error) {
	schemas, err := catalog.ListTables(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("discover disease tables: %w", err)
	}

	var refs []TableRef
	var rejected []Rejection
	for _, schema := range schemas {
		ref, rejection, ok := ValidateTable(schema)
		if !ok {
			continue
		}
		if rejection != nil {
			logger.Warn().Str("table", rejection.Table).Str("reason", rejection.Reason).Msg("disease table rejected")
			rejected = append(rejected, *rejection)
			continue
		}
		refs = append(refs, ref)
	}

	registry := NewRegistry(refs)
	logger.Info().Int("tables", registry.Len()).Int("rejected", len(rejected)).Msg("disease registry built")
	return registry, rejected, nil
}
