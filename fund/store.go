/*
store.go - Persistence and query contracts for fund return records

PURPOSE:
  Defines the interface between the dashboard and the database. The
  Repository is split by concern so callers depend only on what they use:
  report views need a Querier, the ingest command needs a Writer.

KEY INTERFACES:
  SchemaStore: Additive-only table creation
  Writer:      Batch insert, counts, full-table purge
  Querier:     Parameterized reads (range, rollups, distinct lookups, series)
  Repository:  All of the above plus Close

APPEND-ONLY CONTRACT:
  Rows are never updated. The only deletion is PurgeAll, which removes
  every row and must only run after an explicit, confirmed request.

ATOMIC BATCHES:
  Write() is all-or-nothing. On any failure the batch is rolled back and a
  *WriteError is returned; no partial batch is ever visible.

EMPTY RESULTS:
  Queries that match nothing return an empty slice and a nil error. Only an
  execution failure yields *QueryError.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite file store (mattn or modernc driver)
  - fund/store/memory.go:   In-memory store for tests and dry runs

SEE ALSO:
  - errors.go: Error taxonomy
  - rank.go, stats.go: In-memory post-processing of query results
*/
package fund

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TableName is the single persisted table.
const TableName = "fund_returns"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// SchemaStore owns table creation.
type SchemaStore interface {
	// EnsureSchema creates the table and indexes if absent. Never drops or
	// alters; safe to run any number of times.
	EnsureSchema(ctx context.Context) error
}

// Writer persists normalized records.
type Writer interface {
	// Write inserts all records as a single unit and returns the number
	// written. Returns ErrEmptyBatch for an empty slice.
	Write(ctx context.Context, records []Record) (int, error)

	// PurgeAll deletes every row and returns the number deleted.
	PurgeAll(ctx context.Context) (int, error)

	// CountByDate counts rows tagged with date (read-your-write check).
	CountByDate(ctx context.Context, date Date) (int, error)

	// Count counts all rows.
	Count(ctx context.Context) (int, error)
}

// Querier is the stateless read side.
type Querier interface {
	// RangeFetch returns rows with asof_date in r, newest first.
	RangeFetch(ctx context.Context, r DateRange) ([]Record, error)

	// ManagerRollup aggregates rows with a manager, grouped by manager.
	ManagerRollup(ctx context.Context, q ManagerRollupQuery) ([]ManagerRollupRow, error)

	// DistinctManagers lists managers, optionally limited to a date range.
	DistinctManagers(ctx context.Context, r *DateRange) ([]string, error)

	// ProductFetch returns one manager's rows, largest total_amount first.
	ProductFetch(ctx context.Context, q ProductQuery) ([]Record, error)

	// DistinctProducts lists one manager's product names.
	DistinctProducts(ctx context.Context, manager string, r *DateRange) ([]string, error)

	// PeriodRollup aggregates rows grouped by as-of date, oldest first.
	PeriodRollup(ctx context.Context, q PeriodRollupQuery) ([]PeriodRollupRow, error)

	// TimeSeries returns selected products of one manager, by date then name.
	TimeSeries(ctx context.Context, q TimeSeriesQuery) ([]Record, error)
}

// Repository is a complete store.
type Repository interface {
	SchemaStore
	Writer
	Querier
	Close() error
}

// =============================================================================
// QUERY PARAMETERS
// =============================================================================

// ManagerSortKey selects the manager rollup ordering (always descending).
type ManagerSortKey string

const (
	SortTotalAssets  ManagerSortKey = "total_assets"
	SortProductCount ManagerSortKey = "product_count"
	SortAvg1YReturn  ManagerSortKey = "avg_1y_return"
)

// ParseManagerSortKey accepts the key or its dashboard label.
func ParseManagerSortKey(s string) (ManagerSortKey, error) {
	switch strings.TrimSpace(s) {
	case "", string(SortTotalAssets), "총 자산":
		return SortTotalAssets, nil
	case string(SortProductCount), "상품 수":
		return SortProductCount, nil
	case string(SortAvg1YReturn), "평균 수익률":
		return SortAvg1YReturn, nil
	}
	return "", fmt.Errorf("%w: unknown manager sort key %q", ErrInvalidQuery, s)
}

// DefaultManagerPeriods are the averages shown by the manager view.
var DefaultManagerPeriods = []Period{Period1Y, Period3Y}

// DefaultPeriodRollupPeriods are the averages shown by the period view.
var DefaultPeriodRollupPeriods = []Period{Period1M, Period3M, Period6M, Period1Y}

// ManagerRollupQuery parameterizes ManagerRollup.
type ManagerRollupQuery struct {
	SortBy  ManagerSortKey `json:"sort_by"`
	Periods []Period       `json:"periods"`
	Range   *DateRange     `json:"range,omitempty"`
}

// Normalize applies defaults and validates. Sorting by average 1Y return
// requires the 1Y column, so it is added when missing.
func (q ManagerRollupQuery) Normalize() (ManagerRollupQuery, error) {
	if q.SortBy == "" {
		q.SortBy = SortTotalAssets
	}
	if _, err := ParseManagerSortKey(string(q.SortBy)); err != nil {
		return q, err
	}
	periods, err := validPeriods(q.Periods, DefaultManagerPeriods)
	if err != nil {
		return q, err
	}
	if q.SortBy == SortAvg1YReturn && !containsPeriod(periods, Period1Y) {
		periods = append([]Period{Period1Y}, periods...)
	}
	q.Periods = periods
	if q.Range != nil {
		if err := q.Range.Validate(); err != nil {
			return q, err
		}
	}
	return q, nil
}

// ProductQuery parameterizes ProductFetch.
type ProductQuery struct {
	Manager string     `json:"manager"`
	Range   *DateRange `json:"range,omitempty"`
}

// Validate requires a manager.
func (q ProductQuery) Validate() error {
	if strings.TrimSpace(q.Manager) == "" {
		return fmt.Errorf("%w: manager is required", ErrInvalidQuery)
	}
	if q.Range != nil {
		return q.Range.Validate()
	}
	return nil
}

// PeriodRollupQuery parameterizes PeriodRollup.
type PeriodRollupQuery struct {
	Range   DateRange `json:"range"`
	Periods []Period  `json:"periods"`
}

// Normalize applies default periods and validates the range.
func (q PeriodRollupQuery) Normalize() (PeriodRollupQuery, error) {
	periods, err := validPeriods(q.Periods, DefaultPeriodRollupPeriods)
	if err != nil {
		return q, err
	}
	q.Periods = periods
	return q, q.Range.Validate()
}

// TimeSeriesQuery parameterizes TimeSeries.
type TimeSeriesQuery struct {
	Manager  string    `json:"manager"`
	Products []string  `json:"products"`
	Range    DateRange `json:"range"`
}

// Validate requires a manager, at least one product and a valid range.
func (q TimeSeriesQuery) Validate() error {
	if strings.TrimSpace(q.Manager) == "" {
		return fmt.Errorf("%w: manager is required", ErrInvalidQuery)
	}
	if len(q.Products) == 0 {
		return fmt.Errorf("%w: at least one product is required", ErrInvalidQuery)
	}
	return q.Range.Validate()
}

func validPeriods(periods, defaults []Period) ([]Period, error) {
	if len(periods) == 0 {
		return append([]Period(nil), defaults...), nil
	}
	out := make([]Period, 0, len(periods))
	for _, p := range periods {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, p)
		}
		if !containsPeriod(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func containsPeriod(periods []Period, p Period) bool {
	for _, x := range periods {
		if x == p {
			return true
		}
	}
	return false
}

// =============================================================================
// ROLLUP RESULTS
// =============================================================================
// Averages ignore absent values and are absent when every value is absent.
// TotalAssets sums present total_amount values, absent when none are present.

// ManagerRollupRow is one manager's aggregate.
type ManagerRollupRow struct {
	Manager      string                         `json:"manager"`
	ProductCount int                            `json:"product_count"`
	Averages     map[Period]decimal.NullDecimal `json:"averages"`
	TotalAssets  decimal.NullDecimal            `json:"total_assets"`
}

// Average returns the mean for p (absent when not requested).
func (r ManagerRollupRow) Average(p Period) decimal.NullDecimal { return r.Averages[p] }

// PeriodRollupRow is one as-of date's aggregate.
type PeriodRollupRow struct {
	AsOfDate     Date                           `json:"asof_date"`
	ProductCount int                            `json:"product_count"`
	Averages     map[Period]decimal.NullDecimal `json:"averages"`
	TotalAssets  decimal.NullDecimal            `json:"total_assets"`
}

// Average returns the mean for p (absent when not requested).
func (r PeriodRollupRow) Average(p Period) decimal.NullDecimal { return r.Averages[p] }
