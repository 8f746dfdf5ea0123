package report_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/fund/store"
	"github.com/warp/fund-returns/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	today   = fund.NewDate(2024, 12, 31)
	quarter = fund.NewDate(2024, 3, 31)
	half    = fund.NewDate(2024, 6, 30)
)

type product struct {
	manager, name string
	r1y, r3y      *float64
	total         *float64
}

func f(v float64) *float64 { return &v }

// catalog is two managers with five products, written once per date.
var catalog = []product{
	{"Alpha", "A1", f(5), f(12), f(3e10)},
	{"Alpha", "A2", f(-2), f(4), f(1e10)},
	{"Alpha", "A3", f(8), nil, f(5e9)},
	{"Alpha", "A4", f(1), f(2), nil},
	{"Beta", "B1", f(3), f(9), f(2e10)},
}

func newTestViews(t *testing.T) *report.Views {
	t.Helper()
	m := store.NewMemory()
	var batch []fund.Record
	for _, day := range []fund.Date{quarter, half} {
		for _, p := range catalog {
			rec := fund.Record{AsOfDate: day, Manager: fund.StringPtr(p.manager), ProductName: fund.StringPtr(p.name)}
			if p.r1y != nil {
				rec.R1Y = fund.Num(*p.r1y)
			}
			if p.r3y != nil {
				rec.R3Y = fund.Num(*p.r3y)
			}
			if p.total != nil {
				rec.TotalAmount = fund.Num(*p.total)
			}
			batch = append(batch, rec)
		}
	}
	_, err := m.Write(context.Background(), batch)
	require.NoError(t, err)
	return report.NewViews(m, newTestRenderer(t))
}

func emptyViews(t *testing.T) *report.Views {
	return report.NewViews(store.NewMemory(), newTestRenderer(t))
}

// =============================================================================
// RUN / STATE
// =============================================================================

func TestRun_UnknownView(t *testing.T) {
	_, err := emptyViews(t).Run(context.Background(), "pie", nil, today)
	assert.ErrorIs(t, err, report.ErrUnknownView)
}

func TestRun_UnknownStateField(t *testing.T) {
	views := newTestViews(t)
	_, err := views.Run(context.Background(), report.ViewReturns, []byte(`{"colour":"red"}`), today)
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
	assert.True(t, fund.IsClientError(err))
}

func TestRun_EmptyStoreIsNoData(t *testing.T) {
	views := emptyViews(t)
	for _, name := range report.ViewNames {
		t.Run(name, func(t *testing.T) {
			_, err := views.Run(context.Background(), name, nil, today)
			assert.ErrorIs(t, err, report.ErrNoData)
		})
	}
}

func TestRun_PartialStateKeepsDefaults(t *testing.T) {
	// GIVEN: A state that only changes the periods and one toggle
	views := newTestViews(t)
	raw := []byte(`{"periods":["1M","설정일이후"],"show_boxplot":false}`)

	// WHEN: Running the returns view
	res, err := views.Run(context.Background(), report.ViewReturns, raw, today)

	// THEN: Labels parse, dependent selections fall back to the first period
	// and untouched toggles keep their defaults
	require.NoError(t, err)
	returns := res.(*report.ReturnsResult)
	assert.Equal(t, []fund.Period{fund.Period1M, fund.PeriodSinceInception}, returns.State.Periods)
	assert.Equal(t, fund.Period1M, returns.State.HistogramPeriod)
	assert.Equal(t, fund.Period1M, returns.State.RankPeriod)
	assert.True(t, returns.State.ShowHistogram)
	_, err = res.Chart("boxplot")
	assert.ErrorIs(t, err, report.ErrUnknownChart)
}

func TestState_JSONRoundTrip(t *testing.T) {
	// The normalized state in a result can be sent back unchanged
	views := newTestViews(t)
	ctx := context.Background()

	first, err := views.Run(ctx, report.ViewTimeSeries, nil, today)
	require.NoError(t, err)
	state, err := json.Marshal(first.(*report.TimeSeriesResult).State)
	require.NoError(t, err)

	second, err := views.Run(ctx, report.ViewTimeSeries, state, today)
	require.NoError(t, err)
	assert.Equal(t, first.(*report.TimeSeriesResult).State, second.(*report.TimeSeriesResult).State)
}

func TestRun_InvalidRange(t *testing.T) {
	views := newTestViews(t)
	raw := []byte(`{"range":{"start":"2024-12-31","end":"2024-01-01"}}`)
	_, err := views.Run(context.Background(), report.ViewPeriods, raw, today)
	assert.ErrorIs(t, err, fund.ErrInvalidRange)
}

// =============================================================================
// RETURNS
// =============================================================================

func TestReturns_Defaults(t *testing.T) {
	views := newTestViews(t)

	res, err := views.Returns(context.Background(), report.DefaultReturnsState(today))

	require.NoError(t, err)
	assert.Equal(t, 10, res.RecordCount)
	assert.Equal(t, 10, res.Statistics[fund.Period1Y].Count)
	assert.Equal(t, 8, res.Statistics[fund.Period3Y].Count, "absent 3Y values are not counted")
	require.NotNil(t, res.Statistics[fund.Period1Y].Mean)
	assert.InDelta(t, 3.0, *res.Statistics[fund.Period1Y].Mean, 1e-9)

	require.NotEmpty(t, res.Top)
	assert.Equal(t, "A3", res.Top[0].Product)
	assert.InDelta(t, 8.0, *res.Top[0].Value, 1e-9)
	assert.Equal(t, "A2", res.Bottom[0].Product)
	assert.Equal(t, []string{"boxplot", "histogram"}, res.ChartNames())
	assert.Len(t, res.Tables["statistics"].Rows, 2)
}

func TestReturns_TogglesOff(t *testing.T) {
	views := newTestViews(t)
	state := report.DefaultReturnsState(today)
	state.ShowHistogram, state.ShowBoxplot, state.ShowStatistics = false, false, false
	state.TopN = 2

	res, err := views.Returns(context.Background(), state)

	require.NoError(t, err)
	assert.Empty(t, res.ChartNames())
	assert.Nil(t, res.Statistics)
	assert.Len(t, res.Top, 2)
	assert.Len(t, res.Bottom, 2)
}

func TestReturns_EmptyPeriodSelection(t *testing.T) {
	views := newTestViews(t)
	state := report.DefaultReturnsState(today)
	state.Periods = []fund.Period{}

	_, err := views.Returns(context.Background(), state)
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
}

func TestReturns_StoreFailurePropagates(t *testing.T) {
	boom := &fund.QueryError{Op: "range fetch", Err: assert.AnError}
	views := report.NewViews(failingQuerier{err: boom}, newTestRenderer(t))

	_, err := views.Returns(context.Background(), report.DefaultReturnsState(today))
	assert.ErrorIs(t, err, fund.ErrQueryFailed)
}

type failingQuerier struct {
	fund.Querier
	err error
}

func (q failingQuerier) RangeFetch(context.Context, fund.DateRange) ([]fund.Record, error) {
	return nil, q.err
}

// =============================================================================
// MANAGERS
// =============================================================================

func TestManagers_Defaults(t *testing.T) {
	views := newTestViews(t)

	res, err := views.Managers(context.Background(), report.DefaultManagerState())

	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Alpha", res.Rows[0].Manager, "largest total assets first")
	assert.Equal(t, 8, res.Rows[0].ProductCount)
	assert.Equal(t, 2, res.Summary.ManagerCount)
	assert.InDelta(t, 5.0, res.Summary.MeanProductCount, 1e-9)
	require.NotNil(t, res.Summary.TotalAssets)
	assert.InDelta(t, 1.3e11, *res.Summary.TotalAssets, 1)
	assert.Equal(t, []string{"product_count", "returns", "total_assets"}, res.ChartNames())

	chart, err := res.Chart("product_count")
	require.NoError(t, err)
	assert.Equal(t, "운용사별 상품 수 (상위 2개)", chart.Title)
}

func TestManagers_TopNIsClamped(t *testing.T) {
	views := newTestViews(t)
	state := report.DefaultManagerState()
	state.TopN = 50
	state.SortBy = "상품 수"

	res, err := views.Managers(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, report.MaxManagerTopN, res.State.TopN)
	assert.Equal(t, fund.SortProductCount, res.State.SortBy)

	state.TopN = 1
	res, err = views.Managers(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, report.MinManagerTopN, res.State.TopN)
}

func TestManagers_DropImages(t *testing.T) {
	views := newTestViews(t)
	res, err := views.Managers(context.Background(), report.DefaultManagerState())
	require.NoError(t, err)

	res.DropImages()

	chart, err := res.Chart("returns")
	require.NoError(t, err)
	assert.Nil(t, chart.PNG)
	assert.NotEmpty(t, chart.Table.Rows, "the data table survives")
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestProducts_DefaultManagerAndSummary(t *testing.T) {
	views := newTestViews(t)

	res, err := views.Products(context.Background(), report.DefaultProductState())

	require.NoError(t, err)
	assert.Equal(t, "Alpha", res.State.Manager)
	assert.Equal(t, []string{"Alpha", "Beta"}, res.Managers)
	assert.Equal(t, 8, res.Summary.ProductCount)
	require.NotNil(t, res.Summary.AvgReturn1Y)
	assert.InDelta(t, 3.0, *res.Summary.AvgReturn1Y, 1e-9)
	require.NotNil(t, res.Summary.TotalAssets)
	assert.InDelta(t, 9e10, *res.Summary.TotalAssets, 1)
	assert.Equal(t, "A1", res.Records[0].Product(), "largest asset first")
	assert.Equal(t, "A4", res.Records[len(res.Records)-1].Product(), "absent total last")
	assert.Equal(t, []string{"assets", "heatmap"}, res.ChartNames())
}

func TestProducts_SortOrders(t *testing.T) {
	views := newTestViews(t)
	ctx := context.Background()

	state := report.DefaultProductState()
	state.SortBy = "수익률"
	res, err := views.Products(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "A3", res.Records[0].Product())

	state.SortBy = report.ProductSortName
	state.Manager = "Alpha"
	res, err = views.Products(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "A1", res.Records[0].Product())
	assert.Equal(t, "A4", res.Records[len(res.Records)-1].Product())

	state.SortBy = "volume"
	_, err = views.Products(ctx, state)
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
}

func TestProducts_UnknownManagerIsNoData(t *testing.T) {
	views := newTestViews(t)
	state := report.DefaultProductState()
	state.Manager = "Gamma"

	_, err := views.Products(context.Background(), state)
	assert.ErrorIs(t, err, report.ErrNoData)
}

// =============================================================================
// PERIODS
// =============================================================================

func TestPeriods_Defaults(t *testing.T) {
	views := newTestViews(t)

	res, err := views.Periods(context.Background(), report.DefaultPeriodState(today))

	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, quarter, res.Rows[0].AsOfDate, "oldest first")
	assert.Equal(t, 2, res.Summary.PeriodCount)
	assert.InDelta(t, 5.0, res.Summary.MeanProductCount, 1e-9)
	assert.Equal(t, []string{"product_count", "returns", "total_assets"}, res.ChartNames())
	assert.Len(t, res.Tables["details"].Rows, 2)
}

func TestPeriods_MetricSelection(t *testing.T) {
	views := newTestViews(t)
	state := report.DefaultPeriodState(today)
	state.Metrics = []report.PeriodMetric{"상품 수"}
	state.ShowDetails = false

	res, err := views.Periods(context.Background(), state)

	require.NoError(t, err)
	assert.Equal(t, []string{"product_count"}, res.ChartNames())
	assert.NotContains(t, res.Tables, "details")
}

// =============================================================================
// TIME SERIES
// =============================================================================

func TestTimeSeries_Defaults(t *testing.T) {
	views := newTestViews(t)

	res, err := views.TimeSeries(context.Background(), report.DefaultTimeSeriesState(today))

	require.NoError(t, err)
	assert.Equal(t, "Alpha", res.State.Manager)
	assert.Equal(t, []string{"A1", "A2", "A3"}, res.State.Products)
	assert.Equal(t, []string{"A1", "A2", "A3", "A4"}, res.Available)
	assert.Len(t, res.Records, 6)
	assert.Len(t, res.Summary, 6)
	assert.Equal(t, []string{"returns_1Y", "returns_3Y"}, res.ChartNames())

	chart, err := res.Chart("returns_1Y")
	require.NoError(t, err)
	assert.Equal(t, "Alpha - 1년 수익률 시계열", chart.Title)
	assert.Len(t, chart.Table.Rows, 6)
}

func TestTimeSeries_ExplicitEmptyProducts(t *testing.T) {
	views := newTestViews(t)
	_, err := views.Run(context.Background(), report.ViewTimeSeries, []byte(`{"products":[]}`), today)
	assert.ErrorIs(t, err, fund.ErrInvalidQuery)
}

func TestTimeSeries_NoLinesNoCharts(t *testing.T) {
	views := newTestViews(t)
	state := report.DefaultTimeSeriesState(today)
	state.ShowLines, state.ShowAverage = false, false

	res, err := views.TimeSeries(context.Background(), state)

	require.NoError(t, err)
	assert.Empty(t, res.ChartNames())
	assert.NotEmpty(t, res.Tables["summary"].Rows)
}
