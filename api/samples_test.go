package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-returns/api"
	"github.com/warp/fund-returns/fund"
)

func TestSampleDates_MonthEnds(t *testing.T) {
	dates := api.SampleDates(fund.NewDate(2024, 3, 15), 3)

	require.Len(t, dates, 3)
	assert.Equal(t, "2023-12-31", dates[0].String())
	assert.Equal(t, "2024-01-31", dates[1].String())
	assert.Equal(t, "2024-02-29", dates[2].String())
}

func TestSampleRecords_Deterministic(t *testing.T) {
	// GIVEN: The same end date and month count
	end := fund.NewDate(2024, 12, 31)

	// WHEN: Generating twice
	a := api.SampleRecords(end, 6)
	b := api.SampleRecords(end, 6)

	// THEN: The datasets are identical
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Product(), b[i].Product())
		assert.True(t, a[i].R1Y.Decimal.Equal(b[i].R1Y.Decimal))
		assert.Equal(t, a[i].TotalAmount.Valid, b[i].TotalAmount.Valid)
	}
}

func TestSampleRecords_AbsentValues(t *testing.T) {
	records := api.SampleRecords(fund.NewDate(2024, 12, 31), 1)

	byName := make(map[string]fund.Record)
	for _, r := range records {
		byName[r.Product()] = r
	}
	require.Len(t, byName, 13)

	young := byName["누리 중소형 포커스"]
	assert.True(t, young.R1Y.Valid)
	assert.False(t, young.R3Y.Valid, "a one-year-old product has no 3Y return")
	assert.False(t, byName["누리 ESG 리더스"].TotalAmount.Valid)
	assert.True(t, byName["누리 단기 국공채"].SinceInception.Valid)
}
