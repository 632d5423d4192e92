package disease

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ontario-health/healthmap/internal/shared/config"
	"github.com/rs/zerolog"
)

// memoryStore is an in-memory Store keyed by table name.
type memoryStore struct {
	mu       sync.Mutex
	rows     map[string][]DiseaseRecord
	failures map[string][]error
	calls    map[string]int
	queries  []Query
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows:     map[string][]DiseaseRecord{},
		failures: map[string][]error{},
		calls:    map[string]int{},
	}
}

func (m *memoryStore) add(table string, recs ...DiseaseRecord) *memoryStore {
	m.rows[table] = append(m.rows[table], recs...)
	return m
}

// failNext queues errors returned by the next calls touching table.
func (m *memoryStore) failNext(table string, errs ...error) *memoryStore {
	m.failures[table] = append(m.failures[table], errs...)
	return m
}

func (m *memoryStore) next(table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[table]++
	if errs := m.failures[table]; len(errs) > 0 {
		m.failures[table] = errs[1:]
		return errs[0]
	}
	return nil
}

func (m *memoryStore) callCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[table]
}

func (m *memoryStore) MaxYear(ctx context.Context, table TableRef) (int, bool, error) {
	if err := m.next(table.Name); err != nil {
		return 0, false, err
	}
	max, ok := 0, false
	for _, r := range m.rows[table.Name] {
		if !ok || r.Year > max {
			max, ok = r.Year, true
		}
	}
	return max, ok, nil
}

func (m *memoryStore) Select(ctx context.Context, table TableRef, q Query) ([]DiseaseRecord, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if err := m.next(table.Name); err != nil {
		return nil, err
	}
	out := []DiseaseRecord{}
	for _, r := range m.rows[table.Name] {
		if !q.Matches(r) {
			continue
		}
		r.Category, r.Condition, r.SeriesRole = table.Category, table.Condition, table.Role
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Geography != out[j].Geography {
			return out[i].Geography < out[j].Geography
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Measure < out[j].Measure
	})
	return out, nil
}

func (m *memoryStore) Years(ctx context.Context, table TableRef) ([]int, error) {
	if err := m.next(table.Name); err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	years := []int{}
	for _, r := range m.rows[table.Name] {
		if !seen[r.Year] {
			seen[r.Year] = true
			years = append(years, r.Year)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func (m *memoryStore) Measures(ctx context.Context, table TableRef) ([]string, error) {
	if err := m.next(table.Name); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var measures []string
	for _, r := range m.rows[table.Name] {
		if !seen[r.Measure] {
			seen[r.Measure] = true
			measures = append(measures, r.Measure)
		}
	}
	sort.Strings(measures)
	return measures, nil
}

func rec(geography string, year int, measure string, rate float64) DiseaseRecord {
	return DiseaseRecord{Geography: geography, Year: year, Measure: measure, Rate: &rate}
}

func ref(name string) TableRef {
	r, ok := ClassifyTable(name)
	if !ok {
		panic("unclassifiable test table " + name)
	}
	return r
}

func registryOf(store *memoryStore) *Registry {
	var refs []TableRef
	for name := range store.rows {
		refs = append(refs, ref(name))
	}
	return NewRegistry(refs)
}

func testRetry() config.RetryConfig {
	return config.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestService(store *memoryStore) *Service {
	fetcher := NewFetcher(store, testRetry(), zerolog.Nop())
	return NewService(registryOf(store), fetcher, zerolog.Nop())
}
