package report

import (
	"context"
	"fmt"

	"github.com/warp/fund-returns/fund"
)

// ReturnsState drives the return distribution view.
type ReturnsState struct {
	Range           fund.DateRange `json:"range"`
	Periods         []fund.Period  `json:"periods"`
	HistogramPeriod fund.Period    `json:"histogram_period"`
	RankPeriod      fund.Period    `json:"rank_period"`
	TopN            int            `json:"top_n"`
	Bins            int            `json:"bins"`
	ShowHistogram   bool           `json:"show_histogram"`
	ShowBoxplot     bool           `json:"show_boxplot"`
	ShowStatistics  bool           `json:"show_statistics"`
}

// DefaultReturnsState analyses 1Y and 3Y returns over the trailing year.
func DefaultReturnsState(today fund.Date) ReturnsState {
	return ReturnsState{
		Range:           fund.TrailingYear(today),
		Periods:         []fund.Period{fund.Period1Y, fund.Period3Y},
		HistogramPeriod: fund.Period1Y,
		RankPeriod:      fund.Period1Y,
		TopN:            fund.DefaultRankSize,
		Bins:            fund.DefaultHistogramBins,
		ShowHistogram:   true,
		ShowBoxplot:     true,
		ShowStatistics:  true,
	}
}

// Normalize validates the state. The histogram and rank periods fall back to
// the first selected period when they are not among the selection.
func (s ReturnsState) Normalize() (ReturnsState, error) {
	if err := s.Range.Validate(); err != nil {
		return s, err
	}
	periods, err := parsePeriods(s.Periods)
	if err != nil {
		return s, err
	}
	s.Periods = periods
	if s.HistogramPeriod, err = pickPeriod(s.HistogramPeriod, periods); err != nil {
		return s, err
	}
	if s.RankPeriod, err = pickPeriod(s.RankPeriod, periods); err != nil {
		return s, err
	}
	if s.TopN <= 0 {
		s.TopN = fund.DefaultRankSize
	}
	if s.Bins <= 0 {
		s.Bins = fund.DefaultHistogramBins
	}
	return s, nil
}

// RankedRow is one entry of a top or bottom list.
type RankedRow struct {
	Manager string   `json:"manager"`
	Product string   `json:"product_name"`
	AsOf    string   `json:"asof_date"`
	Value   *float64 `json:"value"`
}

// ReturnsResult is the output of the returns view.
type ReturnsResult struct {
	Output
	State       ReturnsState                 `json:"state"`
	RecordCount int                          `json:"record_count"`
	Statistics  map[fund.Period]fund.Summary `json:"statistics,omitempty"`
	Top         []RankedRow                  `json:"top"`
	Bottom      []RankedRow                  `json:"bottom"`
}

// Returns analyses the distribution of the selected returns over the range.
func (v *Views) Returns(ctx context.Context, state ReturnsState) (*ReturnsResult, error) {
	state, err := state.Normalize()
	if err != nil {
		return nil, err
	}
	records, err := v.store.RangeFetch(ctx, state.Range)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}

	res := &ReturnsResult{Output: newOutput(), State: state, RecordCount: len(records)}

	stats := newTable("기간", "개수", "평균", "표준편차", "최소", "25%", "50%", "75%", "최대")
	if state.ShowStatistics {
		res.Statistics = make(map[fund.Period]fund.Summary, len(state.Periods))
	}
	for _, p := range state.Periods {
		d := fund.Describe(fund.Values(records, p))
		if res.Statistics != nil {
			res.Statistics[p] = d
		}
		stats.add(p.Label(), d.Count, opt(d.Mean), opt(d.Std), opt(d.Min), opt(d.Q25), opt(d.Median), opt(d.Q75), opt(d.Max))
	}
	if state.ShowStatistics {
		res.Tables["statistics"] = stats
	}

	if state.ShowHistogram {
		p := state.HistogramPeriod
		bins := fund.Histogram(fund.Values(records, p), state.Bins)
		table := newTable("하한", "상한", "빈도")
		for _, b := range bins {
			table.add(b.Lower, b.Upper, b.Count)
		}
		title := fmt.Sprintf("%s 수익률 분포", p.Label())
		err := res.addChart("histogram", title, table, func() ([]byte, error) {
			return v.renderer.Histogram(HistogramPlot{Title: title, Bins: bins})
		})
		if err != nil {
			return nil, err
		}
	}

	if state.ShowBoxplot {
		groups := make([]Series, len(state.Periods))
		for i, p := range state.Periods {
			groups[i] = Series{Name: p.Label(), Values: fund.Values(records, p)}
		}
		title := "기간별 수익률 분포"
		err := res.addChart("boxplot", title, stats, func() ([]byte, error) {
			return v.renderer.Boxes(BoxPlot{Title: title, YLabel: "수익률 (%)", Groups: groups})
		})
		if err != nil {
			return nil, err
		}
	}

	res.Top = rankedRows(fund.TopN(records, state.RankPeriod, state.TopN), state.RankPeriod)
	res.Bottom = rankedRows(fund.BottomN(records, state.RankPeriod, state.TopN), state.RankPeriod)
	res.Tables["top"] = rankedTable(res.Top, state.RankPeriod)
	res.Tables["bottom"] = rankedTable(res.Bottom, state.RankPeriod)
	return res, nil
}

func rankedRows(records []fund.Record, p fund.Period) []RankedRow {
	out := make([]RankedRow, len(records))
	for i, r := range records {
		row := RankedRow{Manager: r.ManagerName(), Product: r.Product(), AsOf: r.AsOfDate.String()}
		if v, ok := fund.Float(r.Return(p)); ok {
			row.Value = floatPtr(v)
		}
		out[i] = row
	}
	return out
}

func rankedTable(rows []RankedRow, p fund.Period) Table {
	t := newTable("순위", "운용사", "상품명", "기준일", p.Label()+" 수익률")
	for i, r := range rows {
		t.add(i+1, r.Manager, r.Product, r.AsOf, opt(r.Value))
	}
	return t
}
