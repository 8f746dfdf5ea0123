package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/fund/storetest"
	"github.com/warp/fund-returns/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(sqlite.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite_Conformance(t *testing.T) {
	for _, driver := range []string{sqlite.DriverCGO, sqlite.DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			storetest.Run(t, func(t *testing.T) fund.Repository {
				store, err := sqlite.New(sqlite.Config{Driver: driver, Path: ":memory:"})
				require.NoError(t, err)
				return store
			})
		})
	}
}

// =============================================================================
// SCHEMA STORE
// =============================================================================

func TestNew_CorruptFile_IsStorageUnavailable(t *testing.T) {
	// GIVEN: A file that is not a SQLite database
	// WHEN: Opening it
	// THEN: StorageUnavailable, not a panic or a silent empty store
	path := filepath.Join(t.TempDir(), "corrupt.db")
	garbage := make([]byte, 8192)
	for i := range garbage {
		garbage[i] = byte('x' + i%3)
	}
	require.NoError(t, os.WriteFile(path, garbage, 0o600))

	_, err := sqlite.New(sqlite.Config{Path: path})

	require.Error(t, err)
	assert.ErrorIs(t, err, fund.ErrStorageUnavailable)
	var serr *fund.StorageError
	assert.ErrorAs(t, err, &serr)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := sqlite.New(sqlite.Config{Driver: "postgres", Path: ":memory:"})
	assert.ErrorIs(t, err, fund.ErrStorageUnavailable)
}

func TestNew_FileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fund_returns.db")
	day := fund.NewDate(2024, 1, 1)

	store, err := sqlite.New(sqlite.Config{Path: path})
	require.NoError(t, err)
	_, err = store.Write(ctx, []fund.Record{{AsOfDate: day, Manager: fund.StringPtr("A")}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs EnsureSchema again and must keep the row
	store, err = sqlite.New(sqlite.Config{Path: path})
	require.NoError(t, err)
	defer store.Close()

	n, err := store.CountByDate(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConnection_ReleasedOnError(t *testing.T) {
	// GIVEN: A pool of exactly one connection
	// WHEN: A scoped callback fails
	// THEN: The connection is returned and the next operation proceeds
	store := newTestStore(t)
	ctx := context.Background()
	boom := fmt.Errorf("callback failed")

	err := store.Connection(ctx, func(conn *sql.Conn) error { return boom })
	assert.ErrorIs(t, err, boom)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConnection_ReleasedOnPanic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = store.Connection(ctx, func(conn *sql.Conn) error { panic("boom") })
	})

	_, err := store.Count(ctx)
	assert.NoError(t, err)
}

// =============================================================================
// WRITER
// =============================================================================

func TestWrite_FailureRollsBackWholeBatch(t *testing.T) {
	// GIVEN: A trigger that rejects one row deep in a multi-chunk batch
	// WHEN: Writing the batch
	// THEN: WriteError and not a single row from the batch is visible
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Connection(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			CREATE TRIGGER reject_poison BEFORE INSERT ON fund_returns
			WHEN NEW.product_name = 'poison'
			BEGIN SELECT RAISE(ABORT, 'poisoned row'); END;
		`)
		return err
	})
	require.NoError(t, err)

	day := fund.NewDate(2024, 1, 1)
	batch := make([]fund.Record, 200)
	for i := range batch {
		batch[i] = fund.Record{AsOfDate: day, ProductName: fund.StringPtr(fmt.Sprintf("p%d", i))}
	}
	batch[150].ProductName = fund.StringPtr("poison")

	n, err := store.Write(ctx, batch)

	assert.Zero(t, n)
	var werr *fund.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, 200, werr.Count)
	assert.ErrorIs(t, err, fund.ErrWriteFailed)
	assert.Contains(t, err.Error(), "poisoned row")

	count, err := store.CountByDate(ctx, day)
	require.NoError(t, err)
	assert.Zero(t, count, "no partial batch may be committed")
}

func TestWrite_LargeBatchAcrossChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := fund.NewDate(2024, 6, 30)

	batch := make([]fund.Record, 1001)
	for i := range batch {
		batch[i] = fund.Record{AsOfDate: day, R1Y: fund.Num(float64(i))}
	}

	n, err := store.Write(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1001, n)

	count, err := store.CountByDate(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1001, count)
}

func TestWrite_RowWithoutDate_IsStoredButNotInRanges(t *testing.T) {
	// Absent asof_date degrades range filters silently
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, []fund.Record{{Manager: fund.StringPtr("A")}})
	require.NoError(t, err)

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	got, err := store.RangeFetch(ctx, fund.DateRange{
		Start: fund.NewDate(1900, 1, 1),
		End:   fund.NewDate(2999, 12, 31),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// QUERIER
// =============================================================================

func TestQueries_ClosedStore(t *testing.T) {
	store, err := sqlite.New(sqlite.Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ctx := context.Background()
	r := fund.DateRange{Start: fund.NewDate(2024, 1, 1), End: fund.NewDate(2024, 12, 31)}

	_, err = store.RangeFetch(ctx, r)
	assert.ErrorIs(t, err, fund.ErrStorageUnavailable, "no connection can be acquired")

	_, err = store.CountByDate(ctx, r.Start)
	assert.ErrorIs(t, err, fund.ErrQueryFailed)
}

func TestQueries_UserValuesAreBound(t *testing.T) {
	// A manager name that would break interpolated SQL is just a value
	store := newTestStore(t)
	ctx := context.Background()
	day := fund.NewDate(2024, 1, 1)
	evil := "x'); DROP TABLE fund_returns; --"

	_, err := store.Write(ctx, []fund.Record{{
		AsOfDate:    day,
		Manager:     fund.StringPtr(evil),
		ProductName: fund.StringPtr("p"),
	}})
	require.NoError(t, err)

	products, err := store.DistinctProducts(ctx, evil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, products)

	series, err := store.TimeSeries(ctx, fund.TimeSeriesQuery{
		Manager:  evil,
		Products: []string{"p", "' OR 1=1 --"},
		Range:    fund.DateRange{Start: day, End: day},
	})
	require.NoError(t, err)
	assert.Len(t, series, 1)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
