/*
Package sqlite provides a SQLite-backed implementation of fund.Repository.

PURPOSE:
  Persists fund return records in a single local file and answers every
  report query with parameterized SQL.

INTERFACES IMPLEMENTED:
  fund.SchemaStore: Additive table/index creation
  fund.Writer:      Atomic batch insert, counts, full purge
  fund.Querier:     Range fetch, rollups, distinct lookups, time series

DRIVERS:
  "sqlite3" (default) - github.com/mattn/go-sqlite3, cgo
  "sqlite"            - modernc.org/sqlite, pure Go (for CGO_ENABLED=0 builds)
  Both accept the same SQL; only the DSN pragma syntax differs.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on fund_returns
  - DELETE only in PurgeAll, which removes every row
  - Re-uploading a date appends duplicates (no uniqueness constraint)

KEY TABLE:
  fund_returns: One row per (upload, spreadsheet row)

INDEXES:
  - idx_fund_returns_asof_date:    Range fetch, period rollup
  - idx_fund_returns_manager_date: Product fetch, distinct products, time series

SQL DISCIPLINE:
  Query text only ever interpolates the table name constant and period
  column names from fund.Period. Every user-supplied value is a bind
  parameter.

CONCURRENCY:
  No application-level lock. The pool is capped at one connection, so the
  single local writer and the readers serialize on SQLite itself. Write
  atomicity comes from one SQL transaction per batch.

USAGE:
  store, err := sqlite.New(sqlite.Config{Path: "./fund_returns.db"})
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is created on New() with CREATE ... IF NOT EXISTS. There is no
  migration system; the schema is additive only.

SEE ALSO:
  - fund/store.go: Interface definitions
  - fund/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/warp/fund-returns/fund"
)

const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"

	// insertChunkRows keeps each multi-row INSERT under SQLite's historical
	// 999 bind-variable limit (11 columns per row).
	insertChunkRows = 80
)

// Config selects the driver and database file.
type Config struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// Store implements fund.Repository using SQLite.
type Store struct {
	db *sql.DB
}

var _ fund.Repository = (*Store)(nil)

// New opens the database and ensures the schema.
// Use Path ":memory:" for an in-memory database.
func New(cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverCGO
	}
	if driver != DriverCGO && driver != DriverPureGo {
		return nil, &fund.StorageError{Op: "open", Err: fmt.Errorf("unknown driver %q", driver)}
	}
	if cfg.Path == "" {
		return nil, &fund.StorageError{Op: "open", Err: fmt.Errorf("database path is required")}
	}

	db, err := sql.Open(driver, dsn(driver, cfg.Path))
	if err != nil {
		return nil, &fund.StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &fund.StorageError{Op: "ping", Err: err}
	}

	store := &Store{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func dsn(driver, path string) string {
	if path == ":memory:" {
		return path
	}
	if driver == DriverPureGo {
		return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the table and indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	returns := make([]string, 0, len(fund.Periods))
	for _, p := range fund.Periods {
		returns = append(returns, "\t\t"+p.Column()+" REAL,")
	}

	schema := `
	CREATE TABLE IF NOT EXISTS ` + fund.TableName + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asof_date TEXT,
		manager TEXT,
		product_name TEXT,
` + strings.Join(returns, "\n") + `
		total_amount REAL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_fund_returns_asof_date
		ON ` + fund.TableName + `(asof_date);

	CREATE INDEX IF NOT EXISTS idx_fund_returns_manager_date
		ON ` + fund.TableName + `(manager, asof_date);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &fund.StorageError{Op: "ensure schema", Err: err}
	}
	return nil
}

// Connection runs fn with a dedicated connection that is released on every
// exit path, including a panic inside fn.
func (s *Store) Connection(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &fund.StorageError{Op: "connect", Err: err}
	}
	defer conn.Close()
	return fn(conn)
}

// =============================================================================
// WRITER (fund.Writer interface)
// =============================================================================

// insertColumns is the column order of every INSERT.
func insertColumns() []string {
	cols := []string{"asof_date", "manager", "product_name"}
	for _, p := range fund.Periods {
		cols = append(cols, p.Column())
	}
	return append(cols, "total_amount")
}

// Write inserts all records in one transaction.
func (s *Store) Write(ctx context.Context, records []fund.Record) (int, error) {
	if len(records) == 0 {
		return 0, fund.ErrEmptyBatch
	}
	fail := func(err error) (int, error) {
		return 0, &fund.WriteError{Count: len(records), Err: err}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("begin: %w", err))
	}
	defer sqlTx.Rollback()

	cols := insertColumns()
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	for start := 0; start < len(records); start += insertChunkRows {
		end := min(start+insertChunkRows, len(records))
		chunk := records[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, r := range chunk {
			placeholders[i] = rowPlaceholder
			args = append(args, insertArgs(r)...)
		}

		query := "INSERT INTO " + fund.TableName +
			" (" + strings.Join(cols, ", ") + ") VALUES " + strings.Join(placeholders, ", ")
		if _, err := sqlTx.ExecContext(ctx, query, args...); err != nil {
			return fail(fmt.Errorf("insert rows %d-%d: %w", start, end-1, err))
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}
	return len(records), nil
}

func insertArgs(r fund.Record) []any {
	args := []any{nullDate(r.AsOfDate), nullText(r.Manager), nullText(r.ProductName)}
	for _, p := range fund.Periods {
		args = append(args, nullReal(r.Return(p)))
	}
	return append(args, nullReal(r.TotalAmount))
}

// PurgeAll deletes every row.
func (s *Store) PurgeAll(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+fund.TableName)
	if err != nil {
		return 0, &fund.QueryError{Op: "purge", Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, &fund.QueryError{Op: "purge", Err: err}
	}
	return int(n), nil
}

// CountByDate counts rows tagged with date.
func (s *Store) CountByDate(ctx context.Context, date fund.Date) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+fund.TableName+" WHERE asof_date = ?",
		date.String(),
	).Scan(&count)
	if err != nil {
		return 0, &fund.QueryError{Op: "count by date", Err: err}
	}
	return count, nil
}

// Count counts all rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+fund.TableName).Scan(&count); err != nil {
		return 0, &fund.QueryError{Op: "count", Err: err}
	}
	return count, nil
}

// =============================================================================
// QUERIER (fund.Querier interface)
// =============================================================================

// selectColumns matches scanRecord.
func selectColumns() string {
	cols := []string{"id", "asof_date", "manager", "product_name"}
	for _, p := range fund.Periods {
		cols = append(cols, p.Column())
	}
	cols = append(cols, "total_amount", "strftime('%Y-%m-%dT%H:%M:%SZ', created_at)")
	return strings.Join(cols, ", ")
}

// RangeFetch returns rows with asof_date in r, newest first.
func (s *Store) RangeFetch(ctx context.Context, r fund.DateRange) ([]fund.Record, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	query := `
		SELECT ` + selectColumns() + `
		FROM ` + fund.TableName + `
		WHERE asof_date BETWEEN ? AND ?
		ORDER BY asof_date DESC, id ASC
	`
	return s.queryRecords(ctx, "range fetch", query, r.Start.String(), r.End.String())
}

// ManagerRollup aggregates rows with a manager.
func (s *Store) ManagerRollup(ctx context.Context, q fund.ManagerRollupQuery) ([]fund.ManagerRollupRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	where := "WHERE manager IS NOT NULL"
	var args []any
	if q.Range != nil {
		where += " AND asof_date BETWEEN ? AND ?"
		args = append(args, q.Range.Start.String(), q.Range.End.String())
	}

	var orderBy string
	switch q.SortBy {
	case fund.SortProductCount:
		orderBy = "product_count"
	case fund.SortAvg1YReturn:
		orderBy = avgAlias(fund.Period1Y)
	default:
		orderBy = "total_assets"
	}

	query := `
		SELECT manager, COUNT(*) AS product_count, ` + avgColumns(q.Periods) + `
		       SUM(total_amount) AS total_assets
		FROM ` + fund.TableName + `
		` + where + `
		GROUP BY manager
		ORDER BY ` + orderBy + ` DESC, manager ASC
	`

	out := []fund.ManagerRollupRow{}
	err = s.query(ctx, "manager rollup", query, args, func(rows *sql.Rows) error {
		var row fund.ManagerRollupRow
		avgs := make([]decimal.NullDecimal, len(q.Periods))
		dest := []any{&row.Manager, &row.ProductCount}
		for i := range avgs {
			dest = append(dest, &avgs[i])
		}
		dest = append(dest, &row.TotalAssets)
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		row.Averages = averagesMap(q.Periods, avgs)
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DistinctManagers lists managers in ascending order.
func (s *Store) DistinctManagers(ctx context.Context, r *fund.DateRange) ([]string, error) {
	query := "SELECT DISTINCT manager FROM " + fund.TableName + " WHERE manager IS NOT NULL"
	var args []any
	if r != nil {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		query += " AND asof_date BETWEEN ? AND ?"
		args = append(args, r.Start.String(), r.End.String())
	}
	query += " ORDER BY manager ASC"
	return s.queryStrings(ctx, "distinct managers", query, args)
}

// ProductFetch returns one manager's rows, largest total_amount first.
func (s *Store) ProductFetch(ctx context.Context, q fund.ProductQuery) ([]fund.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query := "SELECT " + selectColumns() + " FROM " + fund.TableName + " WHERE manager = ?"
	args := []any{q.Manager}
	if q.Range != nil {
		query += " AND asof_date BETWEEN ? AND ?"
		args = append(args, q.Range.Start.String(), q.Range.End.String())
	}
	query += " ORDER BY total_amount DESC, id ASC"
	return s.queryRecords(ctx, "product fetch", query, args...)
}

// DistinctProducts lists one manager's product names in ascending order.
func (s *Store) DistinctProducts(ctx context.Context, manager string, r *fund.DateRange) ([]string, error) {
	if err := (fund.ProductQuery{Manager: manager, Range: r}).Validate(); err != nil {
		return nil, err
	}
	query := "SELECT DISTINCT product_name FROM " + fund.TableName +
		" WHERE manager = ? AND product_name IS NOT NULL"
	args := []any{manager}
	if r != nil {
		query += " AND asof_date BETWEEN ? AND ?"
		args = append(args, r.Start.String(), r.End.String())
	}
	query += " ORDER BY product_name ASC"
	return s.queryStrings(ctx, "distinct products", query, args)
}

// PeriodRollup aggregates rows by as-of date, oldest first.
func (s *Store) PeriodRollup(ctx context.Context, q fund.PeriodRollupQuery) ([]fund.PeriodRollupRow, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	query := `
		SELECT asof_date, COUNT(*) AS product_count, ` + avgColumns(q.Periods) + `
		       SUM(total_amount) AS total_assets
		FROM ` + fund.TableName + `
		WHERE asof_date BETWEEN ? AND ?
		GROUP BY asof_date
		ORDER BY asof_date ASC
	`
	args := []any{q.Range.Start.String(), q.Range.End.String()}

	out := []fund.PeriodRollupRow{}
	err = s.query(ctx, "period rollup", query, args, func(rows *sql.Rows) error {
		var (
			row  fund.PeriodRollupRow
			date string
		)
		avgs := make([]decimal.NullDecimal, len(q.Periods))
		dest := []any{&date, &row.ProductCount}
		for i := range avgs {
			dest = append(dest, &avgs[i])
		}
		dest = append(dest, &row.TotalAssets)
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		asOf, err := fund.ParseDate(date)
		if err != nil {
			return err
		}
		row.AsOfDate = asOf
		row.Averages = averagesMap(q.Periods, avgs)
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TimeSeries returns the selected products of one manager.
func (s *Store) TimeSeries(ctx context.Context, q fund.TimeSeriesQuery) ([]fund.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	in := strings.TrimSuffix(strings.Repeat("?, ", len(q.Products)), ", ")
	query := `
		SELECT ` + selectColumns() + `
		FROM ` + fund.TableName + `
		WHERE manager = ?
		  AND product_name IN (` + in + `)
		  AND asof_date BETWEEN ? AND ?
		ORDER BY asof_date ASC, product_name ASC, id ASC
	`
	args := []any{q.Manager}
	for _, p := range q.Products {
		args = append(args, p)
	}
	args = append(args, q.Range.Start.String(), q.Range.End.String())
	return s.queryRecords(ctx, "time series", query, args...)
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// query runs a read on a scoped connection and hands each row to scan.
func (s *Store) query(ctx context.Context, op, query string, args []any, scan func(*sql.Rows) error) error {
	err := s.Connection(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	if err != nil {
		if fund.IsStorageError(err) {
			return err
		}
		return &fund.QueryError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]fund.Record, error) {
	records := []fund.Record{}
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		r, err := scanRecord(rows)
		if err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) queryStrings(ctx context.Context, op, query string, args []any) ([]string, error) {
	out := []string{}
	err := s.query(ctx, op, query, args, func(rows *sql.Rows) error {
		var v string
		if err := rows.Scan(&v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (fund.Record, error) {
	var (
		r           fund.Record
		asOf        sql.NullString
		manager     sql.NullString
		productName sql.NullString
		createdAt   sql.NullString
	)
	returns := make([]decimal.NullDecimal, len(fund.Periods))

	dest := []any{&r.ID, &asOf, &manager, &productName}
	for i := range returns {
		dest = append(dest, &returns[i])
	}
	dest = append(dest, &r.TotalAmount, &createdAt)

	if err := rows.Scan(dest...); err != nil {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}

	if asOf.Valid && asOf.String != "" {
		d, err := fund.ParseDate(asOf.String)
		if err != nil {
			return r, fmt.Errorf("record %d: %w", r.ID, err)
		}
		r.AsOfDate = d
	}
	if manager.Valid {
		r.Manager = &manager.String
	}
	if productName.Valid {
		r.ProductName = &productName.String
	}
	for i, p := range fund.Periods {
		r.SetReturn(p, returns[i])
	}
	if createdAt.Valid {
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt.String)
	}
	return r, nil
}

func avgAlias(p fund.Period) string { return "avg_" + p.Column() }

// avgColumns renders "AVG(col) AS avg_col, " for each period.
func avgColumns(periods []fund.Period) string {
	var b strings.Builder
	for _, p := range periods {
		fmt.Fprintf(&b, "AVG(%s) AS %s, ", p.Column(), avgAlias(p))
	}
	return b.String()
}

func averagesMap(periods []fund.Period, values []decimal.NullDecimal) map[fund.Period]decimal.NullDecimal {
	out := make(map[fund.Period]decimal.NullDecimal, len(periods))
	for i, p := range periods {
		out[p] = values[i]
	}
	return out
}

// Helper functions

func nullDate(d fund.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullText(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullReal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}
