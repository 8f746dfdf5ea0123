// Package store provides Repository implementations that need no database.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fund-returns/fund"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================
// Mirrors the SQLite store's observable behavior: numerics round-trip
// through float64 like a REAL column, aggregates ignore absent values, and
// orderings (including absent-last on descending sorts) match the SQL.

type Memory struct {
	mu      sync.RWMutex
	rows    []fund.Record
	nextID  int64
	now     func() time.Time
	failing error
}

func NewMemory() *Memory {
	return &Memory{nextID: 1, now: time.Now}
}

// FailWrites makes every subsequent Write fail with err (nil clears it).
// Lets callers exercise the rollback path without a broken database.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = err
}

func (m *Memory) EnsureSchema(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// Write appends the batch atomically.
func (m *Memory) Write(_ context.Context, records []fund.Record) (int, error) {
	if len(records) == 0 {
		return 0, fund.ErrEmptyBatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing != nil {
		return 0, &fund.WriteError{Count: len(records), Err: m.failing}
	}

	created := m.now().UTC().Truncate(time.Second)
	for _, r := range records {
		r.ID = m.nextID
		m.nextID++
		r.CreatedAt = created
		for _, p := range fund.Periods {
			r.SetReturn(p, asReal(r.Return(p)))
		}
		r.TotalAmount = asReal(r.TotalAmount)
		m.rows = append(m.rows, r)
	}
	return len(records), nil
}

func (m *Memory) PurgeAll(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.rows)
	m.rows = nil
	return n, nil
}

func (m *Memory) CountByDate(_ context.Context, date fund.Date) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.rows {
		if r.AsOfDate.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (m *Memory) RangeFetch(_ context.Context, r fund.DateRange) ([]fund.Record, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := m.filter(func(rec fund.Record) bool { return r.Contains(rec.AsOfDate) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].AsOfDate.After(out[j].AsOfDate) })
	return out, nil
}

func (m *Memory) ManagerRollup(_ context.Context, q fund.ManagerRollupQuery) ([]fund.ManagerRollupRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	rows := m.filter(func(rec fund.Record) bool {
		return rec.Manager != nil && (q.Range == nil || q.Range.Contains(rec.AsOfDate))
	})

	groups := make(map[string][]fund.Record)
	var names []string
	for _, r := range rows {
		if _, ok := groups[*r.Manager]; !ok {
			names = append(names, *r.Manager)
		}
		groups[*r.Manager] = append(groups[*r.Manager], r)
	}

	out := make([]fund.ManagerRollupRow, 0, len(names))
	for _, name := range names {
		g := groups[name]
		out = append(out, fund.ManagerRollupRow{
			Manager:      name,
			ProductCount: len(g),
			Averages:     averages(g, q.Periods),
			TotalAssets:  sumTotal(g),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		var c int
		switch q.SortBy {
		case fund.SortProductCount:
			c = out[j].ProductCount - out[i].ProductCount
		case fund.SortAvg1YReturn:
			c = compareDesc(out[i].Average(fund.Period1Y), out[j].Average(fund.Period1Y))
		default:
			c = compareDesc(out[i].TotalAssets, out[j].TotalAssets)
		}
		if c != 0 {
			return c < 0
		}
		return out[i].Manager < out[j].Manager
	})
	return out, nil
}

func (m *Memory) DistinctManagers(_ context.Context, r *fund.DateRange) ([]string, error) {
	if r != nil {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	rows := m.filter(func(rec fund.Record) bool {
		return rec.Manager != nil && (r == nil || r.Contains(rec.AsOfDate))
	})
	return distinctSorted(rows, func(rec fund.Record) string { return *rec.Manager }), nil
}

func (m *Memory) ProductFetch(_ context.Context, q fund.ProductQuery) ([]fund.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	out := m.filter(func(rec fund.Record) bool {
		return rec.ManagerName() == q.Manager && rec.Manager != nil &&
			(q.Range == nil || q.Range.Contains(rec.AsOfDate))
	})
	sort.SliceStable(out, func(i, j int) bool {
		return compareDesc(out[i].TotalAmount, out[j].TotalAmount) < 0
	})
	return out, nil
}

func (m *Memory) DistinctProducts(_ context.Context, manager string, r *fund.DateRange) ([]string, error) {
	if err := (fund.ProductQuery{Manager: manager, Range: r}).Validate(); err != nil {
		return nil, err
	}
	rows := m.filter(func(rec fund.Record) bool {
		return rec.Manager != nil && *rec.Manager == manager && rec.ProductName != nil &&
			(r == nil || r.Contains(rec.AsOfDate))
	})
	return distinctSorted(rows, func(rec fund.Record) string { return *rec.ProductName }), nil
}

func (m *Memory) PeriodRollup(_ context.Context, q fund.PeriodRollupQuery) ([]fund.PeriodRollupRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	rows := m.filter(func(rec fund.Record) bool { return q.Range.Contains(rec.AsOfDate) })

	groups := make(map[string][]fund.Record)
	var dates []fund.Date
	for _, r := range rows {
		key := r.AsOfDate.String()
		if _, ok := groups[key]; !ok {
			dates = append(dates, r.AsOfDate)
		}
		groups[key] = append(groups[key], r)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]fund.PeriodRollupRow, 0, len(dates))
	for _, d := range dates {
		g := groups[d.String()]
		out = append(out, fund.PeriodRollupRow{
			AsOfDate:     d,
			ProductCount: len(g),
			Averages:     averages(g, q.Periods),
			TotalAssets:  sumTotal(g),
		})
	}
	return out, nil
}

func (m *Memory) TimeSeries(_ context.Context, q fund.TimeSeriesQuery) ([]fund.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(q.Products))
	for _, p := range q.Products {
		wanted[p] = true
	}
	out := m.filter(func(rec fund.Record) bool {
		return rec.Manager != nil && *rec.Manager == q.Manager &&
			rec.ProductName != nil && wanted[*rec.ProductName] &&
			q.Range.Contains(rec.AsOfDate)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].AsOfDate.Compare(out[j].AsOfDate); c != 0 {
			return c < 0
		}
		return out[i].Product() < out[j].Product()
	})
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// filter returns copies of matching rows in insertion (id) order.
func (m *Memory) filter(keep func(fund.Record) bool) []fund.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []fund.Record{}
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func asReal(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(d.Decimal.InexactFloat64()))
}

func averages(rows []fund.Record, periods []fund.Period) map[fund.Period]decimal.NullDecimal {
	out := make(map[fund.Period]decimal.NullDecimal, len(periods))
	for _, p := range periods {
		var sum float64
		var n int
		for _, r := range rows {
			if v, ok := fund.Float(r.Return(p)); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			out[p] = decimal.NullDecimal{}
			continue
		}
		out[p] = decimal.NewNullDecimal(decimal.NewFromFloat(sum / float64(n)))
	}
	return out
}

func sumTotal(rows []fund.Record) decimal.NullDecimal {
	var sum float64
	var n int
	for _, r := range rows {
		if v, ok := fund.Float(r.TotalAmount); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(sum))
}

// compareDesc orders present values descending with absent values last.
// Returns <0 when a sorts before b.
func compareDesc(a, b decimal.NullDecimal) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}
	return b.Decimal.Cmp(a.Decimal)
}

func distinctSorted(rows []fund.Record, key func(fund.Record) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range rows {
		k := key(r)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
