package report

import (
	"context"
	"fmt"

	"github.com/warp/fund-returns/fund"
)

// Bounds of the manager view's top N.
const (
	MinManagerTopN     = 5
	MaxManagerTopN     = 20
	DefaultManagerTopN = 10
)

// ManagerState drives the manager rollup view.
type ManagerState struct {
	SortBy           fund.ManagerSortKey `json:"sort_by"`
	TopN             int                 `json:"top_n"`
	Range            *fund.DateRange     `json:"range,omitempty"`
	ShowProductCount bool                `json:"show_product_count"`
	ShowReturns      bool                `json:"show_returns"`
	ShowAssets       bool                `json:"show_assets"`
	ShowDetails      bool                `json:"show_details"`
}

// DefaultManagerState ranks the top 10 managers by total assets over all dates.
func DefaultManagerState() ManagerState {
	return ManagerState{
		SortBy:           fund.SortTotalAssets,
		TopN:             DefaultManagerTopN,
		ShowProductCount: true,
		ShowReturns:      true,
		ShowAssets:       true,
		ShowDetails:      true,
	}
}

// Normalize parses the sort key and clamps TopN into [5, 20].
func (s ManagerState) Normalize() (ManagerState, error) {
	key, err := fund.ParseManagerSortKey(string(s.SortBy))
	if err != nil {
		return s, err
	}
	s.SortBy = key
	if s.TopN == 0 {
		s.TopN = DefaultManagerTopN
	}
	s.TopN = clampInt(s.TopN, MinManagerTopN, MaxManagerTopN)
	return s, validateRange(s.Range)
}

// ManagerSummary aggregates across every manager, not only the top N.
type ManagerSummary struct {
	ManagerCount     int      `json:"manager_count"`
	MeanProductCount float64  `json:"mean_product_count"`
	TotalAssets      *float64 `json:"total_assets"`
}

// ManagerResult is the output of the manager view.
type ManagerResult struct {
	Output
	State   ManagerState            `json:"state"`
	Rows    []fund.ManagerRollupRow `json:"rows"`
	Summary ManagerSummary          `json:"summary"`
}

// Managers ranks managers by the state's sort key.
func (v *Views) Managers(ctx context.Context, state ManagerState) (*ManagerResult, error) {
	state, err := state.Normalize()
	if err != nil {
		return nil, err
	}
	rows, err := v.store.ManagerRollup(ctx, fund.ManagerRollupQuery{
		SortBy:  state.SortBy,
		Periods: fund.DefaultManagerPeriods,
		Range:   state.Range,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	res := &ManagerResult{Output: newOutput(), State: state, Summary: summarizeManagers(rows)}
	top := rows[:min(state.TopN, len(rows))]
	res.Rows = top

	details := newTable("운용사", "상품 수", "평균 1년 수익률", "평균 3년 수익률", "총 자산")
	labels := make([]string, len(top))
	counts := make([]float64, len(top))
	avg1Y := make([]float64, len(top))
	avg3Y := make([]float64, len(top))
	assets := make([]float64, len(top))
	for i, r := range top {
		total := num(r.TotalAssets)
		details.add(r.Manager, r.ProductCount, num(r.Average(fund.Period1Y)), num(r.Average(fund.Period3Y)), total)
		labels[i] = r.Manager
		counts[i] = float64(r.ProductCount)
		avg1Y[i] = orNaN(r.Average(fund.Period1Y))
		avg3Y[i] = orNaN(r.Average(fund.Period3Y))
		assets[i] = inEok(total)
	}
	if state.ShowDetails {
		res.Tables["details"] = details
	}

	n := len(top)
	charts := []struct {
		show  bool
		name  string
		title string
		plot  BarPlot
	}{
		{state.ShowProductCount, "product_count", fmt.Sprintf("운용사별 상품 수 (상위 %d개)", n), BarPlot{
			YLabel: "상품 수",
			Series: []Series{{Name: "상품 수", Values: counts}},
		}},
		{state.ShowReturns, "returns", fmt.Sprintf("운용사별 평균 수익률 (상위 %d개)", n), BarPlot{
			YLabel: "평균 수익률 (%)",
			Series: []Series{{Name: "평균 1년 수익률", Values: avg1Y}, {Name: "평균 3년 수익률", Values: avg3Y}},
		}},
		{state.ShowAssets, "total_assets", fmt.Sprintf("운용사별 총 자산 (상위 %d개)", n), BarPlot{
			YLabel: "총 자산 (억원)",
			Series: []Series{{Name: "총 자산", Values: assets}},
		}},
	}
	for _, c := range charts {
		if !c.show {
			continue
		}
		plot := c.plot
		plot.Title = c.title
		plot.Labels = labels
		if err := res.addChart(c.name, c.title, details, func() ([]byte, error) {
			return v.renderer.Bars(plot)
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func summarizeManagers(rows []fund.ManagerRollupRow) ManagerSummary {
	s := ManagerSummary{ManagerCount: len(rows)}
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
