package disease

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ontario-health/healthmap/internal/shared/metrics"
)

// Repository provides read access to the disease tables in Postgres.
type Repository struct {
	pool   *pgxpool.Pool
	schema string
}

// NewRepository creates a repository over the public schema.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, schema: "public"}
}

// ListTables returns every table in the schema with its columns.
func (r *Repository) ListTables(ctx context.Context) ([]TableSchema, error) {
	defer observe("list_tables", time.Now())

	query := `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`

	rows, err := r.pool.Query(ctx, query, r.schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []TableSchema
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("scan table column: %w", err)
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, TableSchema{Name: table})
		}
		tables[len(tables)-1].Columns = append(tables[len(tables)-1].Columns, column)
	}
	return tables, rows.Err()
}

// MaxYear returns the latest year in table.
func (r *Repository) MaxYear(ctx context.Context, table TableRef) (int, bool, error) {
	defer observe("max_year", time.Now())

	query := fmt.Sprintf("SELECT MAX(year)::int FROM %s", quoteTable(table))

	var year *int
	if err := r.pool.QueryRow(ctx, query).Scan(&year); err != nil {
		return 0, false, fmt.Errorf("max year of %s: %w", table.Name, err)
	}
	if year == nil {
		return 0, false, nil
	}
	return *year, true, nil
}

// Select returns rows of table matching q.
func (r *Repository) Select(ctx context.Context, table TableRef, q Query) ([]DiseaseRecord, error) {
	defer observe("select", time.Now())

	conditions := []string{"year IS NOT NULL"}
	var args []any
	argNum := 1

	if q.Year != nil {
		conditions = append(conditions, fmt.Sprintf("year = $%d", argNum))
		args = append(args, *q.Year)
		argNum++
	}

	if q.Measure != "" {
		conditions = append(conditions, fmt.Sprintf("measure ILIKE $%d", argNum))
		args = append(args, likePattern(q.Measure))
		argNum++
	}

	if q.Region != "" {
		conditions = append(conditions, fmt.Sprintf("geography ILIKE $%d", argNum))
		args = append(args, likePattern(q.Region))
		argNum++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT COALESCE(geography, ''), year::int, COALESCE(measure, ''), rate::float8, %s, %s, %s
		FROM %s
		%s
		ORDER BY geography, year, measure`,
		integerColumn(table.Columns.Cases),
		textColumn(table.Columns.ConfidenceInterval),
		integerColumn(table.Columns.Population),
		quoteTable(table), whereClause)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table.Name, err)
	}
	defer rows.Close()

	records := []DiseaseRecord{}
	for rows.Next() {
		rec := DiseaseRecord{
			Category:   table.Category,
			Condition:  table.Condition,
			SeriesRole: table.Role,
		}
		if err := rows.Scan(
			&rec.Geography, &rec.Year, &rec.Measure, &rec.Rate,
			&rec.Cases, &rec.ConfidenceInterval, &rec.Population,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table.Name, err)
		}
		withInterval(&rec)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Years returns distinct years, newest first.
func (r *Repository) Years(ctx context.Context, table TableRef) ([]int, error) {
	defer observe("years", time.Now())

	query := fmt.Sprintf("SELECT DISTINCT year::int FROM %s WHERE year IS NOT NULL ORDER BY 1 DESC", quoteTable(table))
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("years of %s: %w", table.Name, err)
	}
	years, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("years of %s: %w", table.Name, err)
	}
	return years, nil
}

// Measures returns distinct measure labels.
func (r *Repository) Measures(ctx context.Context, table TableRef) ([]string, error) {
	defer observe("measures", time.Now())

	query := fmt.Sprintf("SELECT DISTINCT measure FROM %s WHERE measure IS NOT NULL ORDER BY 1", quoteTable(table))
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("measures of %s: %w", table.Name, err)
	}
	measures, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("measures of %s: %w", table.Name, err)
	}
	return measures, nil
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}

// quoteTable renders a registry table name as a quoted identifier. Names
// are already constrained by the registry; quoting keeps them literal.
func quoteTable(table TableRef) string {
	return pgx.Identifier{table.Name}.Sanitize()
}

// integerColumn accepts values like "1,204"; suppressed counts such as
// "<5" become NULL.
func integerColumn(column string) string {
	if column == "" {
		return "NULL::bigint"
	}
	ident := pgx.Identifier{column}.Sanitize()
	return fmt.Sprintf("CASE WHEN %[1]s::text ~ '^[0-9][0-9,]*$' THEN replace(%[1]s::text, ',', '')::bigint END", ident)
}

func textColumn(column string) string {
	if column == "" {
		return "NULL::text"
	}
	return pgx.Identifier{column}.Sanitize() + "::text"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s for a substring ILIKE with wildcards in s escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
