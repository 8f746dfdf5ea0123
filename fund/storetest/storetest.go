/*
Package storetest is a behavioral test suite shared by every fund.Repository.

PURPOSE:
  The memory store and the SQLite store must be interchangeable: same
  orderings, same null handling, same aggregate results. Each
  implementation's tests call Run with a constructor and get the whole suite.

USAGE:
  func TestConformance(t *testing.T) {
      storetest.Run(t, func(t *testing.T) fund.Repository {
          s, err := sqlite.New(sqlite.Config{Path: ":memory:"})
          require.NoError(t, err)
          return s
      })
  }
*/
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-returns/fund"
)

// Factory returns a fresh, empty repository. Run closes it on cleanup.
type Factory func(t *testing.T) fund.Repository

// Run executes every conformance test against repositories from newRepo.
func Run(t *testing.T, newRepo Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo fund.Repository)
	}{
		{"EnsureSchemaIdempotent", testEnsureSchemaIdempotent},
		{"WriteEmptyBatch", testWriteEmptyBatch},
		{"ReadYourWrite", testReadYourWrite},
		{"PurgeThenWrite", testPurgeThenWrite},
		{"DuplicatesAppend", testDuplicatesAppend},
		{"AbsentValuesRoundTrip", testAbsentValuesRoundTrip},
		{"RangeFetchOrdering", testRangeFetchOrdering},
		{"RangeFetchInvalidRange", testRangeFetchInvalidRange},
		{"ManagerRollupSumMatchesProductFetch", testManagerRollupCrossCheck},
		{"ManagerRollupSortKeys", testManagerRollupSortKeys},
		{"DistinctLookups", testDistinctLookups},
		{"ProductFetchNullsLast", testProductFetchNullsLast},
		{"PeriodRollup", testPeriodRollup},
		{"TimeSeries", testTimeSeries},
		{"EmptyResultsAreNotErrors", testEmptyResults},
		{"EndToEndScenario", testEndToEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t)
			t.Cleanup(func() { repo.Close() })
			tt.fn(t, repo)
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

var (
	jan1 = fund.NewDate(2024, 1, 1)
	feb1 = fund.NewDate(2024, 2, 1)
	mar1 = fund.NewDate(2024, 3, 1)
)

func rec(date fund.Date, manager, product string, r1y float64, total float64) fund.Record {
	r := fund.Record{AsOfDate: date, TotalAmount: fund.Num(total), R1Y: fund.Num(r1y)}
	if manager != "" {
		r.Manager = fund.StringPtr(manager)
	}
	if product != "" {
		r.ProductName = fund.StringPtr(product)
	}
	return r
}

func write(t *testing.T, repo fund.Repository, records ...fund.Record) {
	t.Helper()
	n, err := repo.Write(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, len(records), n)
}

func year2024() fund.DateRange {
	return fund.DateRange{Start: jan1, End: fund.NewDate(2024, 12, 31)}
}

// =============================================================================
// SCHEMA & WRITER
// =============================================================================

func testEnsureSchemaIdempotent(t *testing.T, repo fund.Repository) {
	// GIVEN: A store with rows
	// WHEN: EnsureSchema runs twice more
	// THEN: Rows are untouched and writes still work
	ctx := context.Background()
	write(t, repo, rec(jan1, "A", "p1", 1, 100))

	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	write(t, repo, rec(jan1, "A", "p2", 2, 200))
	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testWriteEmptyBatch(t *testing.T, repo fund.Repository) {
	n, err := repo.Write(context.Background(), nil)
	assert.ErrorIs(t, err, fund.ErrEmptyBatch)
	assert.Zero(t, n)
}

func testReadYourWrite(t *testing.T, repo fund.Repository) {
	// GIVEN: A batch of 25 rows for one date plus unrelated rows
	// WHEN: Range fetch covers exactly that date
	// THEN: Exactly the written rows come back
	ctx := context.Background()
	write(t, repo, rec(feb1, "B", "other", 0, 0))

	batch := make([]fund.Record, 25)
	for i := range batch {
		batch[i] = rec(jan1, "A", "p", float64(i), float64(i*10))
	}
	write(t, repo, batch...)

	got, err := repo.RangeFetch(ctx, fund.DateRange{Start: jan1, End: jan1})
	require.NoError(t, err)
	assert.Len(t, got, 25)

	count, err := repo.CountByDate(ctx, jan1)
	require.NoError(t, err)
	assert.Equal(t, 25, count)

	for _, r := range got {
		assert.NotZero(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}
}

func testPurgeThenWrite(t *testing.T, repo fund.Repository) {
	// GIVEN: A populated store
	// WHEN: PurgeAll runs
	// THEN: Every range fetch is empty and a later write succeeds
	ctx := context.Background()
	write(t, repo, rec(jan1, "A", "p1", 1, 1), rec(feb1, "B", "p2", 2, 2))

	deleted, err := repo.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	got, err := repo.RangeFetch(ctx, year2024())
	require.NoError(t, err)
	assert.Empty(t, got)

	write(t, repo, rec(mar1, "C", "p3", 3, 3))
	got, err = repo.RangeFetch(ctx, year2024())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func testDuplicatesAppend(t *testing.T, repo fund.Repository) {
	// GIVEN: The same sheet uploaded twice for one date
	// THEN: Both copies are kept
	ctx := context.Background()
	write(t, repo, rec(jan1, "A", "p1", 1, 1))
	write(t, repo, rec(jan1, "A", "p1", 1, 1))

	count, err := repo.CountByDate(ctx, jan1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testAbsentValuesRoundTrip(t *testing.T, repo fund.Repository) {
	// GIVEN: A record with absent text, absent returns and an explicit zero
	// THEN: Absent stays absent and zero stays zero
	ctx := context.Background()
	r := fund.Record{AsOfDate: jan1, R1M: fund.Num(0), R3Y: fund.Num(-4.25)}
	write(t, repo, r)

	got, err := repo.RangeFetch(ctx, fund.DateRange{Start: jan1, End: jan1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Nil(t, got[0].Manager)
	assert.Nil(t, got[0].ProductName)
	assert.True(t, got[0].R1M.Valid)
	assert.True(t, got[0].R1M.Decimal.IsZero())
	assert.False(t, got[0].R1Y.Valid)
	assert.False(t, got[0].TotalAmount.Valid)
	v, ok := fund.Float(got[0].R3Y)
	require.True(t, ok)
	assert.InDelta(t, -4.25, v, 1e-9)
}

// =============================================================================
// QUERIES
// =============================================================================

func testRangeFetchOrdering(t *testing.T, repo fund.Repository) {
	ctx := context.Background()
	write(t, repo,
		rec(jan1, "A", "first", 1, 1),
		rec(mar1, "A", "newest", 1, 1),
		rec(jan1, "A", "second", 1, 1),
		rec(feb1, "A", "middle", 1, 1),
		rec(fund.NewDate(2023, 6, 1), "A", "outside", 1, 1),
	)

	got, err := repo.RangeFetch(ctx, year2024())
	require.NoError(t, err)
	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.Product()
	}
	assert.Equal(t, []string{"newest", "middle", "first", "second"}, names)
}

func testRangeFetchInvalidRange(t *testing.T, repo fund.Repository) {
	_, err := repo.RangeFetch(context.Background(), fund.DateRange{Start: mar1, End: jan1})
	assert.ErrorIs(t, err, fund.ErrInvalidRange)

	_, err = repo.RangeFetch(context.Background(), fund.DateRange{End: jan1})
	assert.ErrorIs(t, err, fund.ErrInvalidRange)
}

func testManagerRollupCrossCheck(t *testing.T, repo fund.Repository) {
	// GIVEN: Several managers with mixed present/absent totals
	// WHEN: Rolling up by manager
	// THEN: Each manager's total equals the sum of its fetched rows
	ctx := context.Background()
	absentTotal := rec(feb1, "B", "b3", 3, 0)
	absentTotal.TotalAmount.Valid = false
	write(t, repo,
		rec(jan1, "A", "a1", 1.5, 1000.25),
		rec(feb1, "A", "a2", 2.5, 2500.5),
		rec(jan1, "B", "b1", -1, 300),
		rec(jan1, "B", "b2", 4, 700.75),
		absentTotal,
		rec(jan1, "", "orphan", 9, 99999),
	)

	rows, err := repo.ManagerRollup(ctx, fund.ManagerRollupQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2, "rows without a manager are excluded")

	for _, row := range rows {
		products, err := repo.ProductFetch(ctx, fund.ProductQuery{Manager: row.Manager})
		require.NoError(t, err)
		var sum float64
		for _, v := range fund.TotalAmounts(products) {
			sum += v
		}
		total, ok := fund.Float(row.TotalAssets)
		require.True(t, ok)
		assert.InDelta(t, sum, total, 1e-6, "manager %s", row.Manager)
		assert.Equal(t, len(products), row.ProductCount)
	}
}

func testManagerRollupSortKeys(t *testing.T, repo fund.Repository) {
	ctx := context.Background()
	noReturn := rec(jan1, "C", "c2", 0, 10)
	noReturn.R1Y.Valid = false
	write(t, repo,
		rec(jan1, "A", "a1", 1, 500),
		rec(jan1, "B", "b1", 10, 100),
		rec(jan1, "B", "b2", 8, 100),
		rec(jan1, "C", "c1", 5, 50),
		noReturn,
		rec(jan1, "C", "c3", 7, 10),
	)

	managers := func(rows []fund.ManagerRollupRow) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Manager
		}
		return out
	}

	byAssets, err := repo.ManagerRollup(ctx, fund.ManagerRollupQuery{SortBy: fund.SortTotalAssets})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, managers(byAssets))

	byCount, err := repo.ManagerRollup(ctx, fund.ManagerRollupQuery{SortBy: fund.SortProductCount})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, managers(byCount))

	byReturn, err := repo.ManagerRollup(ctx, fund.ManagerRollupQuery{
		SortBy:  fund.SortAvg1YReturn,
		Periods: []fund.Period{fund.Period3Y},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, managers(byReturn))

	// C averages over its two present values only: (5+7)/2
	avg, ok := fund.Float(byReturn[1].Average(fund.Period1Y))
	require.True(t, ok)
	assert.InDelta(t, 6.0, avg, 1e-9)

	// 3Y was never written, so its average is absent rather than zero
	assert.False(t, byReturn[0].Average(fund.Period3Y).Valid)

	_, err = repo.ManagerRollup(ctx, fund.ManagerRollupQuery{SortBy: "bogus"})
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
}

func testDistinctLookups(t *testing.T, repo fund.Repository) {
	ctx := context.Background()
	write(t, repo,
		rec(jan1, "Zeta", "z1", 1, 1),
		rec(jan1, "Alpha", "beta fund", 1, 1),
		rec(feb1, "Alpha", "alpha fund", 1, 1),
		rec(feb1, "Alpha", "alpha fund", 1, 1),
		rec(mar1, "Mid", "m1", 1, 1),
		rec(mar1, "", "orphan", 1, 1),
		rec(mar1, "Alpha", "", 1, 1),
	)

	all, err := repo.DistinctManagers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Mid", "Zeta"}, all)

	janOnly := fund.DateRange{Start: jan1, End: jan1}
	inJan, err := repo.DistinctManagers(ctx, &janOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Zeta"}, inJan)

	products, err := repo.DistinctProducts(ctx, "Alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha fund", "beta fund"}, products)

	febOnly := fund.DateRange{Start: feb1, End: feb1}
	products, err = repo.DistinctProducts(ctx, "Alpha", &febOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha fund"}, products)

	_, err = repo.DistinctProducts(ctx, " ", nil)
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
}

func testProductFetchNullsLast(t *testing.T, repo fund.Repository) {
	ctx := context.Background()
	unknown := rec(jan1, "A", "unknown size", 1, 0)
	unknown.TotalAmount.Valid = false
	write(t, repo,
		unknown,
		rec(jan1, "A", "small", 1, 10),
		rec(jan1, "A", "large", 1, 1000),
		rec(jan1, "B", "other", 1, 5000),
	)

	got, err := repo.ProductFetch(ctx, fund.ProductQuery{Manager: "A"})
	require.NoError(t, err)
	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.Product()
	}
	assert.Equal(t, []string{"large", "small", "unknown size"}, names)
}

func testPeriodRollup(t *testing.T, repo fund.Repository) {
	ctx := context.Background()
	a := rec(feb1, "A", "a", 2, 100)
	a.R1M = fund.Num(1)
	b := rec(feb1, "B", "b", 4, 300)
	c := rec(jan1, "A", "a", 6, 50)
	write(t, repo, a, b, c)

	rows, err := repo.PeriodRollup(ctx, fund.PeriodRollupQuery{Range: year2024()})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].AsOfDate.Equal(jan1), "oldest date first")
	assert.True(t, rows[1].AsOfDate.Equal(feb1))
	assert.Equal(t, 1, rows[0].ProductCount)
	assert.Equal(t, 2, rows[1].ProductCount)

	avg1y, ok := fund.Float(rows[1].Average(fund.Period1Y))
	require.True(t, ok)
	assert.InDelta(t, 3.0, avg1y, 1e-9)

	avg1m, ok := fund.Float(rows[1].Average(fund.Period1M))
	require.True(t, ok)
	assert.InDelta(t, 1.0, avg1m, 1e-9, "absent 1M on b is ignored")
	assert.False(t, rows[0].Average(fund.Period1M).Valid)

	total, ok := fund.Float(rows[1].TotalAssets)
	require.True(t, ok)
	assert.InDelta(t, 400.0, total, 1e-9)

	_, err = repo.PeriodRollup(ctx, fund.PeriodRollupQuery{
		Range:   year2024(),
		Periods: []fund.Period{"10Y"},
	})
	assert.ErrorIs(t, err, fund.ErrUnknownPeriod)
}

func testTimeSeries(t *testing.T, repo fund.Repository) {
	ctx := context.Background()
	write(t, repo,
		rec(feb1, "A", "zulu", 1, 1),
		rec(feb1, "A", "alpha", 2, 1),
		rec(jan1, "A", "zulu", 3, 1),
		rec(jan1, "A", "skipped", 4, 1),
		rec(jan1, "B", "alpha", 5, 1),
		rec(fund.NewDate(2025, 1, 1), "A", "alpha", 6, 1),
	)

	got, err := repo.TimeSeries(ctx, fund.TimeSeriesQuery{
		Manager:  "A",
		Products: []string{"zulu", "alpha"},
		Range:    year2024(),
	})
	require.NoError(t, err)

	type point struct {
		date    string
		product string
	}
	var points []point
	for _, r := range got {
		points = append(points, point{r.AsOfDate.String(), r.Product()})
	}
	assert.Equal(t, []point{
		{"2024-01-01", "zulu"},
		{"2024-02-01", "alpha"},
		{"2024-02-01", "zulu"},
	}, points)

	_, err = repo.TimeSeries(ctx, fund.TimeSeriesQuery{Manager: "A", Range: year2024()})
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
}

func testEmptyResults(t *testing.T, repo fund.Repository) {
	ctx := context.Background()

	records, err := repo.RangeFetch(ctx, year2024())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	rollup, err := repo.ManagerRollup(ctx, fund.ManagerRollupQuery{})
	require.NoError(t, err)
	assert.Empty(t, rollup)

	periods, err := repo.PeriodRollup(ctx, fund.PeriodRollupQuery{Range: year2024()})
	require.NoError(t, err)
	assert.Empty(t, periods)

	managers, err := repo.DistinctManagers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, managers)
}

func testEndToEnd(t *testing.T, repo fund.Repository) {
	// GIVEN: A 3-row sheet for manager A with r_1y = [1.5, blank, -2.0]
	// WHEN: Normalized, written, fetched and rolled up
	// THEN: The blank is excluded from the mean: (1.5 + -2.0) / 2 = -0.25
	ctx := context.Background()
	rows := []fund.RawRow{
		{"운용사": "A", "상품명": "p1", "1Y": "1.5"},
		{"운용사": "A", "상품명": "p2", "1Y": ""},
		{"운용사": "A", "상품명": "p3", "1Y": -2.0},
	}
	records, rowErrs, err := fund.NewNormalizer(fund.SourceColumns{}).Prepare(rows, jan1)
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, records, 3)
	assert.Len(t, fund.Values(records, fund.Period1Y), 2)

	written, err := repo.Write(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	fetched, err := repo.RangeFetch(ctx, fund.DateRange{Start: jan1, End: jan1})
	require.NoError(t, err)
	assert.Len(t, fetched, 3)

	rollup, err := repo.ManagerRollup(ctx, fund.ManagerRollupQuery{SortBy: fund.SortAvg1YReturn})
	require.NoError(t, err)
	require.Len(t, rollup, 1)
	assert.Equal(t, "A", rollup[0].Manager)
	assert.Equal(t, 3, rollup[0].ProductCount)
	avg, ok := fund.Float(rollup[0].Average(fund.Period1Y))
	require.True(t, ok)
	assert.InDelta(t, -0.25, avg, 1e-9)
}
