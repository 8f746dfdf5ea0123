package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/fund-returns/fund"
)

// PeriodMetric is one trend shown by the period view.
type PeriodMetric string

const (
	MetricProductCount PeriodMetric = "product_count"
	MetricReturns      PeriodMetric = "returns"
	MetricTotalAssets  PeriodMetric = "total_assets"
)

// ParsePeriodMetric accepts the key or its dashboard label.
func ParsePeriodMetric(s string) (PeriodMetric, error) {
	switch strings.TrimSpace(s) {
	case string(MetricProductCount), "상품 수":
		return MetricProductCount, nil
	case string(MetricReturns), "평균 수익률":
		return MetricReturns, nil
	case string(MetricTotalAssets), "총 자산":
		return MetricTotalAssets, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", fund.ErrInvalidQuery, s)
}

// PeriodState drives the per-date rollup view. A trend is drawn only when its
// metric is selected and its toggle is on.
type PeriodState struct {
	Range            fund.DateRange `json:"range"`
	Metrics          []PeriodMetric `json:"metrics"`
	Periods          []fund.Period  `json:"periods"`
	ShowProductTrend bool           `json:"show_product_trend"`
	ShowReturnTrend  bool           `json:"show_return_trend"`
	ShowAssetTrend   bool           `json:"show_asset_trend"`
	ShowDetails      bool           `json:"show_details"`
}

// DefaultPeriodState selects every metric over the trailing year.
func DefaultPeriodState(today fund.Date) PeriodState {
	return PeriodState{
		Range:            fund.TrailingYear(today),
		Metrics:          []PeriodMetric{MetricProductCount, MetricReturns, MetricTotalAssets},
		Periods:          append([]fund.Period(nil), fund.DefaultPeriodRollupPeriods...),
		ShowProductTrend: true,
		ShowReturnTrend:  true,
		ShowAssetTrend:   true,
		ShowDetails:      true,
	}
}

// Normalize validates the range, metrics and periods.
func (s PeriodState) Normalize() (PeriodState, error) {
	if err := s.Range.Validate(); err != nil {
		return s, err
	}
	metrics := make([]PeriodMetric, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		parsed, err := ParsePeriodMetric(string(m))
		if err != nil {
			return s, err
		}
		if !hasMetric(metrics, parsed) {
			metrics = append(metrics, parsed)
		}
	}
	s.Metrics = metrics
	periods, err := parsePeriods(s.Periods)
	if err != nil {
		return s, err
	}
	s.Periods = periods
	return s, nil
}

func hasMetric(metrics []PeriodMetric, m PeriodMetric) bool {
	for _, x := range metrics {
		if x == m {
			return true
		}
	}
	return false
}

// PeriodSummary aggregates across the as-of dates in range.
type PeriodSummary struct {
	PeriodCount      int      `json:"period_count"`
	MeanProductCount float64  `json:"mean_product_count"`
	TotalAssets      *float64 `json:"total_assets"`
}

// PeriodResult is the output of the period view.
type PeriodResult struct {
	Output
	State   PeriodState            `json:"state"`
	Rows    []fund.PeriodRollupRow `json:"rows"`
	Summary PeriodSummary          `json:"summary"`
}

// Periods shows how counts, average returns and assets move across dates.
func (v *Views) Periods(ctx context.Context, state PeriodState) (*PeriodResult, error) {
	state, err := state.Normalize()
	if err != nil {
		return nil, err
	}
	rows, err := v.store.PeriodRollup(ctx, fund.PeriodRollupQuery{Range: state.Range, Periods: state.Periods})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	res := &PeriodResult{Output: newOutput(), State: state, Rows: rows, Summary: summarizePeriods(rows)}

	columns := []string{"기준일", "상품 수"}
	for _, p := range state.Periods {
		columns = append(columns, "평균 "+p.Label()+" 수익률")
	}
	details := newTable(append(columns, "총 자산")...)

	var counts, assets []fund.DatePoint
	returns := make([][]fund.DatePoint, len(state.Periods))
	for _, r := range rows {
		row := []any{r.AsOfDate.String(), r.ProductCount}
		counts = append(counts, fund.DatePoint{Date: r.AsOfDate, Value: float64(r.ProductCount)})
		for i, p := range state.Periods {
			avg := r.Average(p)
			row = append(row, num(avg))
			if f, ok := fund.Float(avg); ok {
				returns[i] = append(returns[i], fund.DatePoint{Date: r.AsOfDate, Value: f})
			}
		}
		if f, ok := fund.Float(r.TotalAssets); ok {
			assets = append(assets, fund.DatePoint{Date: r.AsOfDate, Value: f / eok})
		}
		details.add(append(row, num(r.TotalAssets))...)
	}
	if state.ShowDetails {
		res.Tables["details"] = details
	}

	returnLines := make([]Line, len(state.Periods))
	for i, p := range state.Periods {
		returnLines[i] = Line{Name: p.Label(), Points: returns[i]}
	}
	charts := []struct {
		show bool
		name string
		plot LinePlot
	}{
		{
			state.ShowProductTrend && hasMetric(state.Metrics, MetricProductCount),
			"product_count",
			LinePlot{Title: "기간별 상품 수 변화", YLabel: "상품 수", Lines: []Line{{Name: "상품 수", Points: counts}}},
		},
		{
			state.ShowReturnTrend && hasMetric(state.Metrics, MetricReturns),
			"returns",
			LinePlot{Title: "기간별 평균 수익률 변화", YLabel: "평균 수익률 (%)", Lines: returnLines, Legend: true},
		},
		{
			state.ShowAssetTrend && hasMetric(state.Metrics, MetricTotalAssets),
			"total_assets",
			LinePlot{Title: "기간별 총 자산 변화", YLabel: "총 자산 (억원)", Lines: []Line{{Name: "총 자산", Points: assets}}},
		},
	}
	for _, c := range charts {
		if !c.show {
			continue
		}
		plot := c.plot
		if err := res.addChart(c.name, plot.Title, details, func() ([]byte, error) {
			return v.renderer.Lines(plot)
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func summarizePeriods(rows []fund.PeriodRollupRow) PeriodSummary {
	s := PeriodSummary{PeriodCount: len(rows)}
	counts := make([]int, len(rows))
	var total float64
	var anyTotal bool
	for i, r := range rows {
		counts[i] = r.ProductCount
		if v, ok := fund.Float(r.TotalAssets); ok {
			total += v
			anyTotal = true
		}
	}
	s.MeanProductCount = meanInt(counts)
	if anyTotal {
		s.TotalAssets = floatPtr(total)
	}
	return s
}
