package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/fund/store"
	"github.com/warp/fund-returns/fund/storetest"
)

func TestMemory_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) fund.Repository {
		return store.NewMemory()
	})
}

func TestMemory_FailedWrite_LeavesNothingBehind(t *testing.T) {
	// GIVEN: A store whose writes fail
	// WHEN: Writing a batch
	// THEN: WriteError carries the batch size and no row is visible
	ctx := context.Background()
	m := store.NewMemory()
	cause := errors.New("disk full")
	m.FailWrites(cause)

	batch := []fund.Record{
		{AsOfDate: fund.NewDate(2024, 1, 1)},
		{AsOfDate: fund.NewDate(2024, 1, 1)},
	}
	_, err := m.Write(ctx, batch)

	var werr *fund.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, 2, werr.Count)
	assert.ErrorIs(t, err, fund.ErrWriteFailed)
	assert.ErrorIs(t, err, cause)

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	m.FailWrites(nil)
	written, err := m.Write(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
}

func TestMemory_FetchReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	day := fund.NewDate(2024, 1, 1)
	_, err := m.Write(ctx, []fund.Record{{AsOfDate: day, Manager: fund.StringPtr("A")}})
	require.NoError(t, err)

	got, err := m.RangeFetch(ctx, fund.DateRange{Start: day, End: day})
	require.NoError(t, err)
	got[0].AsOfDate = fund.NewDate(1999, 1, 1)

	again, err := m.RangeFetch(ctx, fund.DateRange{Start: day, End: day})
	require.NoError(t, err)
	assert.Len(t, again, 1)
}
