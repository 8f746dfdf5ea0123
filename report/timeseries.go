package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/fund-returns/fund"
)

// DefaultSeriesProducts is how many products are preselected when a time
// series state names none.
const DefaultSeriesProducts = 3

// TimeSeriesState drives the product time series view. An empty manager
// selects the first manager with rows in range; nil products select the
// first DefaultSeriesProducts of that manager. An explicitly empty product
// list is rejected.
type TimeSeriesState struct {
	Range       fund.DateRange `json:"range"`
	Manager     string         `json:"manager"`
	Products    []string       `json:"products"`
	Periods     []fund.Period  `json:"periods"`
	ShowLines   bool           `json:"show_lines"`
	ShowAverage bool           `json:"show_average"`
	ShowLegend  bool           `json:"show_legend"`
}

// DefaultTimeSeriesState plots 1Y and 3Y returns over the trailing year.
func DefaultTimeSeriesState(today fund.Date) TimeSeriesState {
	return TimeSeriesState{
		Range:       fund.TrailingYear(today),
		Periods:     []fund.Period{fund.Period1Y, fund.Period3Y},
		ShowLines:   true,
		ShowAverage: true,
		ShowLegend:  true,
	}
}

// Normalize validates the range and periods and trims the selection.
func (s TimeSeriesState) Normalize() (TimeSeriesState, error) {
	if err := s.Range.Validate(); err != nil {
		return s, err
	}
	periods, err := parsePeriods(s.Periods)
	if err != nil {
		return s, err
	}
	s.Periods = periods
	s.Manager = strings.TrimSpace(s.Manager)
	if s.Products != nil {
		products := make([]string, 0, len(s.Products))
		for _, p := range s.Products {
			if p = strings.TrimSpace(p); p != "" {
				products = append(products, p)
			}
		}
		if len(products) == 0 {
			return s, fmt.Errorf("%w: select at least one product", fund.ErrInvalidQuery)
		}
		s.Products = products
	}
	return s, nil
}

// TimeSeriesResult is the output of the time series view.
type TimeSeriesResult struct {
	Output
	State     TimeSeriesState      `json:"state"`
	Managers  []string             `json:"managers"`
	Available []string             `json:"available_products"`
	Records   []fund.Record        `json:"records"`
	Summary   []fund.SeriesSummary `json:"summary"`
}

// TimeSeries plots the selected products of one manager, one chart per period.
func (v *Views) TimeSeries(ctx context.Context, state TimeSeriesState) (*TimeSeriesResult, error) {
	state, err := state.Normalize()
	if err != nil {
		return nil, err
	}
	managers, err := v.store.DistinctManagers(ctx, &state.Range)
	if err != nil {
		return nil, err
	}
	if len(managers) == 0 {
		return nil, ErrNoData
	}
	if state.Manager == "" {
		state.Manager = managers[0]
	}
	available, err := v.store.DistinctProducts(ctx, state.Manager, &state.Range)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, ErrNoData
	}
	if state.Products == nil {
		state.Products = append([]string(nil), available[:min(DefaultSeriesProducts, len(available))]...)
	}

	records, err := v.store.TimeSeries(ctx, fund.TimeSeriesQuery{
		Manager:  state.Manager,
		Products: state.Products,
		Range:    state.Range,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}

	res := &TimeSeriesResult{
		Output:    newOutput(),
		State:     state,
		Managers:  managers,
		Available: available,
		Records:   records,
		Summary:   fund.SummarizeSeries(records, state.Products, state.Periods),
	}

	columns := []string{"기준일", "상품명"}
	for _, p := range state.Periods {
		columns = append(columns, p.Label())
	}
	details := newTable(columns...)
	for _, r := range records {
		row := []any{r.AsOfDate.String(), r.Product()}
		for _, p := range state.Periods {
			row = append(row, num(r.Return(p)))
		}
		details.add(row...)
	}
	res.Tables["details"] = details

	summary := newTable("상품명", "기간", "개수", "평균", "최대", "최소", "표준편차")
	for _, s := range res.Summary {
		summary.add(s.Product, s.Period.Label(), s.Count, opt(s.Mean), opt(s.Max), opt(s.Min), opt(s.Std))
	}
	res.Tables["summary"] = summary

	for _, p := range state.Periods {
		var lines []Line
		table := newTable("기준일", "상품명", p.Label())
		for _, r := range records {
			table.add(r.AsOfDate.String(), r.Product(), num(r.Return(p)))
		}
		if state.ShowLines {
			for _, product := range state.Products {
				lines = append(lines, Line{Name: product, Points: fund.ProductSeries(records, product, p)})
			}
		}
		if state.ShowAverage {
			lines = append(lines, Line{Name: "평균", Points: fund.AverageByDate(records, p), Emphasis: true})
		}
		if len(lines) == 0 {
			continue
		}
		title := fmt.Sprintf("%s - %s 수익률 시계열", state.Manager, p.Label())
		plot := LinePlot{Title: title, YLabel: p.Label() + " 수익률 (%)", Lines: lines, Legend: state.ShowLegend}
		if err := res.addChart("returns_"+string(p), title, table, func() ([]byte, error) {
			return v.renderer.Lines(plot)
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}
