package disease

import "context"

// Store reads disease tables. Implementations must treat a valid table
// with no matching rows as an empty result, not an error.
type Store interface {
	// MaxYear returns the latest year in table; ok is false when the table is empty.
	MaxYear(ctx context.Context, table TableRef) (year int, ok bool, err error)
	// Select returns rows matching q ordered by geography, year and measure.
	Select(ctx context.Context, table TableRef, q Query) ([]DiseaseRecord, error)
	// Years returns the distinct years in table, newest first.
	Years(ctx context.Context, table TableRef) ([]int, error)
	// Measures returns the distinct measure labels in table.
	Measures(ctx context.Context, table TableRef) ([]string, error)
}

// Catalog lists the physical tables available to the registry.
type Catalog interface {
	ListTables(ctx context.Context) ([]TableSchema, error)
}

// TableSchema is a physical table and its column names.
type TableSchema struct {
	Name    string
	Columns []string
}
