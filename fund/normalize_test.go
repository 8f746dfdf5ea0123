package fund_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/warp/fund-returns/fund"
)

var asOf = fund.NewDate(2024, 1, 1)

func fullRow(manager, product string) fund.RawRow {
	return fund.RawRow{
		"운용사":   manager,
		"상품명":   product,
		"1M":    "0.5",
		"3M":    1.25,
		"6M":    "2",
		"1Y":    "3.5%",
		"2Y":    int64(4),
		"3Y":    "-1.75",
		"설정일이후": "12.0",
		"총액":    "1,234,567",
	}
}

// =============================================================================
// ROW COUNTS
// =============================================================================

func TestNormalize_ValidSheet_ProducesOneRecordPerRow(t *testing.T) {
	// GIVEN: N rows each with a parseable manager and product
	// WHEN: Normalizing
	// THEN: Exactly N records and no row errors
	rows := make([]fund.RawRow, 40)
	for i := range rows {
		rows[i] = fullRow(fmt.Sprintf("mgr-%d", i%4), fmt.Sprintf("fund-%d", i))
	}

	records, rowErrs := fund.NewNormalizer(fund.SourceColumns{}).Normalize(rows, asOf)

	assert.Len(t, records, 40)
	assert.Empty(t, rowErrs)
	for _, r := range records {
		assert.True(t, r.AsOfDate.Equal(asOf))
	}
}

func TestNormalize_ParsesEveryField(t *testing.T) {
	records, rowErrs := fund.NewNormalizer(fund.SourceColumns{}).Normalize(
		[]fund.RawRow{fullRow("  Acme AM ", "\tGrowth Fund ")}, asOf)
	require.Empty(t, rowErrs)
	require.Len(t, records, 1)
	r := records[0]

	assert.Equal(t, "Acme AM", r.ManagerName())
	assert.Equal(t, "Growth Fund", r.Product())

	want := map[fund.Period]float64{
		fund.Period1M:             0.5,
		fund.Period3M:             1.25,
		fund.Period6M:             2,
		fund.Period1Y:             3.5,
		fund.Period2Y:             4,
		fund.Period3Y:             -1.75,
		fund.PeriodSinceInception: 12,
	}
	for p, v := range want {
		got, ok := fund.Float(r.Return(p))
		require.True(t, ok, "period %s", p)
		assert.InDelta(t, v, got, 1e-12, "period %s", p)
	}
	total, ok := fund.Float(r.TotalAmount)
	require.True(t, ok)
	assert.InDelta(t, 1234567.0, total, 1e-9)
}

func TestNormalize_RowMissingEveryField_KeepsRow(t *testing.T) {
	// GIVEN: A row with none of the nine source columns
	// WHEN: Normalizing
	// THEN: One record with only asof_date set
	rows := []fund.RawRow{{"비고": "memo only"}, {}}

	records, rowErrs := fund.NewNormalizer(fund.SourceColumns{}).Normalize(rows, asOf)

	require.Empty(t, rowErrs)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.True(t, r.AsOfDate.Equal(asOf))
		assert.Nil(t, r.Manager)
		assert.Nil(t, r.ProductName)
		for _, p := range fund.Periods {
			assert.False(t, r.Return(p).Valid, "period %s", p)
		}
		assert.False(t, r.TotalAmount.Valid)
	}
}

// =============================================================================
// ABSENCE RULE
// =============================================================================

func TestNormalize_BlankAndNaN_AreAbsentNotZero(t *testing.T) {
	cases := map[string]any{
		"empty":      "",
		"whitespace": "   \t ",
		"nan float":  math.NaN(),
		"nan text":   "NaN",
		"inf":        math.Inf(1),
		"dash":       "-",
		"garbage":    "n/a",
		"nil":        nil,
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			row := fund.RawRow{"운용사": "A", "상품명": "p", "1Y": value, "총액": value}
			records, rowErrs := fund.NewNormalizer(fund.SourceColumns{}).Normalize([]fund.RawRow{row}, asOf)
			require.Empty(t, rowErrs)
			require.Len(t, records, 1)
			assert.False(t, records[0].R1Y.Valid)
			assert.False(t, records[0].TotalAmount.Valid)
		})
	}
}

func TestNormalize_ZeroStaysZero(t *testing.T) {
	row := fund.RawRow{"1Y": "0", "3Y": 0.0}
	records, _ := fund.NewNormalizer(fund.SourceColumns{}).Normalize([]fund.RawRow{row}, asOf)
	require.Len(t, records, 1)
	assert.True(t, records[0].R1Y.Valid)
	assert.True(t, records[0].R1Y.Decimal.IsZero())
	assert.True(t, records[0].R3Y.Valid)
}

func TestNormalize_BlankText_IsAbsent(t *testing.T) {
	row := fund.RawRow{"운용사": "  ", "상품명": ""}
	records, _ := fund.NewNormalizer(fund.SourceColumns{}).Normalize([]fund.RawRow{row}, asOf)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Manager)
	assert.Nil(t, records[0].ProductName)
}

func TestNormalize_NumericTextFields_AreFormatted(t *testing.T) {
	row := fund.RawRow{"운용사": 1234, "상품명": 7.5}
	records, _ := fund.NewNormalizer(fund.SourceColumns{}).Normalize([]fund.RawRow{row}, asOf)
	require.Len(t, records, 1)
	assert.Equal(t, "1234", records[0].ManagerName())
	assert.Equal(t, "7.5", records[0].Product())
}

// =============================================================================
// ROW ISOLATION
// =============================================================================

func TestNormalize_BadRow_IsIsolated(t *testing.T) {
	// GIVEN: Three rows, the middle one with a non-scalar manager
	// WHEN: Normalizing
	// THEN: Two records, one row error at index 1
	rows := []fund.RawRow{
		fullRow("A", "p1"),
		{"운용사": []string{"not", "a", "name"}, "상품명": "p2"},
		fullRow("B", "p3"),
	}

	records, rowErrs := fund.NewNormalizer(fund.SourceColumns{}).Normalize(rows, asOf)

	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].ManagerName())
	assert.Equal(t, "B", records[1].ManagerName())

	require.Len(t, rowErrs, 1)
	assert.Equal(t, 1, rowErrs[0].Index)
	assert.Equal(t, "운용사", rowErrs[0].Column)
	assert.ErrorIs(t, &rowErrs[0], fund.ErrParseFailure)
}

type panicky struct{}

func (panicky) String() string { panic("boom") }

func TestNormalize_PanickingValue_IsIsolated(t *testing.T) {
	rows := []fund.RawRow{{"상품명": panicky{}}, fullRow("A", "p")}

	records, rowErrs := fund.NewNormalizer(fund.SourceColumns{}).Normalize(rows, asOf)

	assert.Len(t, records, 1)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 0, rowErrs[0].Index)
	assert.Contains(t, rowErrs[0].Error(), "boom")
}

func TestPrepare_AllRowsFailed_IsEmptyBatch(t *testing.T) {
	rows := []fund.RawRow{{"운용사": map[string]int{"x": 1}}}

	_, rowErrs, err := fund.NewNormalizer(fund.SourceColumns{}).Prepare(rows, asOf)

	assert.ErrorIs(t, err, fund.ErrEmptyBatch)
	assert.Len(t, rowErrs, 1)
}

func TestPrepare_EmptyInput_IsEmptyBatch(t *testing.T) {
	_, _, err := fund.NewNormalizer(fund.SourceColumns{}).Prepare(nil, asOf)
	assert.ErrorIs(t, err, fund.ErrEmptyBatch)
}

func TestPrepare_RequiresAsOfDate(t *testing.T) {
	_, _, err := fund.NewNormalizer(fund.SourceColumns{}).Prepare([]fund.RawRow{fullRow("A", "p")}, fund.Date{})
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
}

// =============================================================================
// COLUMN MAPPING
// =============================================================================

func TestNormalize_DecomposedHangulHeader_Matches(t *testing.T) {
	// Decomposed jamo, as saved by some macOS spreadsheet tools
	nfd := norm.NFD.String("운용사")
	require.NotEqual(t, "운용사", nfd)
	row := fund.RawRow{" " + nfd + " ": "Acme"}

	records, _ := fund.NewNormalizer(fund.SourceColumns{}).Normalize([]fund.RawRow{row}, asOf)

	require.Len(t, records, 1)
	assert.Equal(t, "Acme", records[0].ManagerName())
}

func TestNormalize_CustomColumns(t *testing.T) {
	cols := fund.SourceColumns{
		Manager: "Manager",
		Returns: map[fund.Period]string{fund.Period1Y: "Return 1Y"},
	}
	row := fund.RawRow{"Manager": "Acme", "상품명": "kept default", "Return 1Y": "9.5"}

	records, _ := fund.NewNormalizer(cols).Normalize([]fund.RawRow{row}, asOf)

	require.Len(t, records, 1)
	assert.Equal(t, "Acme", records[0].ManagerName())
	assert.Equal(t, "kept default", records[0].Product())
	v, ok := fund.Float(records[0].R1Y)
	require.True(t, ok)
	assert.InDelta(t, 9.5, v, 1e-12)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"1,234.5", 1234.5, true},
		{" -2.0 ", -2, true},
		{"3.1%", 3.1, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"12abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := fund.ParseNumber(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				v, _ := fund.Float(got)
				assert.InDelta(t, tt.want, v, 1e-12)
			}
		})
	}
}
