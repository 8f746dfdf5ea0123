package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/warp/fund-returns/fund"
)

// ProductSort orders the products of one manager.
type ProductSort string

const (
	ProductSortAssets ProductSort = "assets"
	ProductSortReturn ProductSort = "return"
	ProductSortName   ProductSort = "name"
)

// ParseProductSort accepts the key or its dashboard label.
func ParseProductSort(s string) (ProductSort, error) {
	switch strings.TrimSpace(s) {
	case "", string(ProductSortAssets), "자산 규모":
		return ProductSortAssets, nil
	case string(ProductSortReturn), "수익률":
		return ProductSortReturn, nil
	case string(ProductSortName), "상품명":
		return ProductSortName, nil
	}
	return "", fmt.Errorf("%w: unknown product sort %q", fund.ErrInvalidQuery, s)
}

// ProductState drives the per-manager product view. An empty manager selects
// the first manager in name order.
type ProductState struct {
	Manager     string          `json:"manager"`
	Range       *fund.DateRange `json:"range,omitempty"`
	SortBy      ProductSort     `json:"sort_by"`
	ShowHeatmap bool            `json:"show_heatmap"`
	ShowAssets  bool            `json:"show_assets"`
	ShowDetails bool            `json:"show_details"`
}

// DefaultProductState sorts by asset size with every section shown.
func DefaultProductState() ProductState {
	return ProductState{SortBy: ProductSortAssets, ShowHeatmap: true, ShowAssets: true, ShowDetails: true}
}

// Normalize parses the sort key and validates the optional range.
func (s ProductState) Normalize() (ProductState, error) {
	key, err := ParseProductSort(string(s.SortBy))
	if err != nil {
		return s, err
	}
	s.SortBy = key
	s.Manager = strings.TrimSpace(s.Manager)
	return s, validateRange(s.Range)
}

// ProductSummary aggregates one manager's products.
type ProductSummary struct {
	ProductCount int      `json:"product_count"`
	AvgReturn1Y  *float64 `json:"avg_1y_return"`
	TotalAssets  *float64 `json:"total_assets"`
}

// ProductResult is the output of the product view.
type ProductResult struct {
	Output
	State    ProductState   `json:"state"`
	Managers []string       `json:"managers"`
	Records  []fund.Record  `json:"records"`
	Summary  ProductSummary `json:"summary"`
}

// Products shows one manager's products.
func (v *Views) Products(ctx context.Context, state ProductState) (*ProductResult, error) {
	state, err := state.Normalize()
	if err != nil {
		return nil, err
	}
	managers, err := v.store.DistinctManagers(ctx, state.Range)
	if err != nil {
		return nil, err
	}
	if len(managers) == 0 {
		return nil, ErrNoData
	}
	if state.Manager == "" {
		state.Manager = managers[0]
	}

	records, err := v.store.ProductFetch(ctx, fund.ProductQuery{Manager: state.Manager, Range: state.Range})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}
	sortProducts(records, state.SortBy)

	res := &ProductResult{
		Output:   newOutput(),
		State:    state,
		Managers: managers,
		Records:  records,
		Summary:  summarizeProducts(records),
	}

	columns := []string{"상품명", "기준일"}
	for _, p := range fund.Periods {
		columns = append(columns, p.Label())
	}
	details := newTable(append(columns, "총액")...)
	names := make([]string, len(records))
	assets := make([]float64, len(records))
	for i, r := range records {
		row := []any{r.Product(), r.AsOfDate.String()}
		for _, p := range fund.Periods {
			row = append(row, num(r.Return(p)))
		}
		total := num(r.TotalAmount)
		details.add(append(row, total)...)
		names[i] = r.Product()
		assets[i] = inEok(total)
	}
	if state.ShowDetails {
		res.Tables["details"] = details
	}

	if state.ShowHeatmap {
		rows := make([]string, len(fund.Periods))
		cells := make([][]*float64, len(fund.Periods))
		for i, p := range fund.Periods {
			rows[i] = p.Label()
			cells[i] = make([]*float64, len(records))
			for j, r := range records {
				if v, ok := fund.Float(r.Return(p)); ok {
					cells[i][j] = floatPtr(v)
				}
			}
		}
		title := fmt.Sprintf("%s 상품별 수익률 히트맵", state.Manager)
		if err := res.addChart("heatmap", title, details, func() ([]byte, error) {
			return v.renderer.Heatmap(Heatmap{Title: title, Rows: rows, Columns: names, Cells: cells})
		}); err != nil {
			return nil, err
		}
	}

	if state.ShowAssets {
		title := fmt.Sprintf("%s 상품별 자산 규모", state.Manager)
		plot := BarPlot{
			Title:  title,
			YLabel: "자산 규모 (억원)",
			Labels: names,
			Series: []Series{{Name: "자산 규모", Values: assets}},
		}
		if err := res.addChart("assets", title, details, func() ([]byte, error) {
			return v.renderer.Bars(plot)
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// sortProducts orders in place. Absent values sort last; ties keep the
// store's order.
func sortProducts(records []fund.Record, by ProductSort) {
	switch by {
	case ProductSortReturn:
		sort.SliceStable(records, func(i, j int) bool {
			return descNullsLast(records[i].R1Y, records[j].R1Y)
		})
	case ProductSortName:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Product() < records[j].Product()
		})
	default:
		sort.SliceStable(records, func(i, j int) bool {
			return descNullsLast(records[i].TotalAmount, records[j].TotalAmount)
		})
	}
}

func summarizeProducts(records []fund.Record) ProductSummary {
	s := ProductSummary{
		ProductCount: len(records),
		AvgReturn1Y:  fund.Describe(fund.Values(records, fund.Period1Y)).Mean,
	}
	if totals := fund.TotalAmounts(records); len(totals) > 0 {
		var sum float64
		for _, t := range totals {
			sum += t
		}
		s.TotalAssets = floatPtr(sum)
	}
	return s
}
