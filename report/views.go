/*
views.go - Report views over the query layer

PURPOSE:
  Each view takes an explicit, JSON-serializable state, reads what it needs
  through fund.Querier and returns tables, summaries and PNG charts. Nothing
  is kept between calls: the caller owns the state and sends it back.

VIEWS:
  returns     return distribution, descriptive statistics, top/bottom N
  managers    per-manager rollup sorted by a key, top N
  products    one manager's products, heatmap and asset bars
  periods     per-date rollup trends
  timeseries  selected products of one manager over time

STATE:
  DefaultXxxState(today) gives the initial state. Run decodes a partial JSON
  state on top of the defaults, so a client only sends what it changed.

EMPTY DATA:
  A view whose query returns nothing fails with ErrNoData; it never renders
  partial output. A single chart with nothing to plot is left out.
*/
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/warp/fund-returns/fund"
)

var (
	// ErrNoData is returned when the selected conditions match no rows.
	ErrNoData = errors.New("no data for the selected conditions")

	// ErrUnknownView is returned by Run for an unregistered view name.
	ErrUnknownView = errors.New("unknown view")

	// ErrUnknownChart is returned when a result has no chart by that name.
	ErrUnknownChart = errors.New("unknown chart")
)

const (
	ViewReturns    = "returns"
	ViewManagers   = "managers"
	ViewProducts   = "products"
	ViewPeriods    = "periods"
	ViewTimeSeries = "timeseries"
)

// ViewNames lists every view accepted by Run.
var ViewNames = []string{ViewReturns, ViewManagers, ViewProducts, ViewPeriods, ViewTimeSeries}

// eok is one hundred million won, the unit of asset charts.
const eok = 1e8

var nan = math.NaN()

// =============================================================================
// OUTPUT
// =============================================================================

// Chart is one rendered image with the data behind it.
type Chart struct {
	Title string `json:"title"`
	Table Table  `json:"table"`
	PNG   []byte `json:"png,omitempty"`
}

// Output is the part of every view result that holds charts and tables.
type Output struct {
	Charts map[string]*Chart `json:"charts"`
	Tables map[string]Table  `json:"tables"`
}

func newOutput() Output {
	return Output{Charts: make(map[string]*Chart), Tables: make(map[string]Table)}
}

// Chart returns the named chart.
func (o *Output) Chart(name string) (*Chart, error) {
	c, ok := o.Charts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
	return c, nil
}

// ChartNames lists the rendered charts in name order.
func (o *Output) ChartNames() []string {
	names := make([]string, 0, len(o.Charts))
	for name := range o.Charts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DropImages removes the PNG bytes, keeping titles and tables.
func (o *Output) DropImages() {
	for _, c := range o.Charts {
		c.PNG = nil
	}
}

// addChart renders and stores a chart. A renderer reporting ErrNoData leaves
// the chart out.
func (o *Output) addChart(name, title string, table Table, render func() ([]byte, error)) error {
	png, err := render()
	if errors.Is(err, ErrNoData) {
		return nil
	}
	if err != nil {
		return err
	}
	o.Charts[name] = &Chart{Title: title, Table: table, PNG: png}
	return nil
}

// Result is implemented by every view result.
type Result interface {
	Chart(name string) (*Chart, error)
	ChartNames() []string
	DropImages()
}

// =============================================================================
// VIEWS
// =============================================================================

// Views runs report views against one store.
type Views struct {
	store    fund.Querier
	renderer *Renderer
}

// NewViews creates views reading from store and drawing with renderer.
func NewViews(store fund.Querier, renderer *Renderer) *Views {
	return &Views{store: store, renderer: renderer}
}

// Run decodes raw on top of the view's default state and runs the view.
// An empty raw state runs the defaults.
func (v *Views) Run(ctx context.Context, name string, raw []byte, today fund.Date) (Result, error) {
	switch name {
	case ViewReturns:
		state := DefaultReturnsState(today)
		if err := decodeState(raw, &state); err != nil {
			return nil, err
		}
		return v.Returns(ctx, state)
	case ViewManagers:
		state := DefaultManagerState()
		if err := decodeState(raw, &state); err != nil {
			return nil, err
		}
		return v.Managers(ctx, state)
	case ViewProducts:
		state := DefaultProductState()
		if err := decodeState(raw, &state); err != nil {
			return nil, err
		}
		return v.Products(ctx, state)
	case ViewPeriods:
		state := DefaultPeriodState(today)
		if err := decodeState(raw, &state); err != nil {
			return nil, err
		}
		return v.Periods(ctx, state)
	case ViewTimeSeries:
		state := DefaultTimeSeriesState(today)
		if err := decodeState(raw, &state); err != nil {
			return nil, err
		}
		return v.TimeSeries(ctx, state)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
}

func decodeState(raw []byte, into any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: view state: %v", fund.ErrInvalidQuery, err)
	}
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// parsePeriods re-parses periods so labels such as "설정일이후" are accepted
// in state JSON. An empty selection is an error.
func parsePeriods(periods []fund.Period) ([]fund.Period, error) {
	raw := make([]string, len(periods))
	for i, p := range periods {
		raw[i] = string(p)
	}
	out, err := fund.ParsePeriods(raw)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: select at least one return period", fund.ErrInvalidQuery)
	}
	return out, nil
}

// pickPeriod returns p when it is one of periods, otherwise the first.
func pickPeriod(p fund.Period, periods []fund.Period) (fund.Period, error) {
	if strings.TrimSpace(string(p)) == "" {
		return periods[0], nil
	}
	parsed, err := fund.ParsePeriod(string(p))
	if err != nil {
		return "", err
	}
	for _, x := range periods {
		if x == parsed {
			return parsed, nil
		}
	}
	return periods[0], nil
}

func validateRange(r *fund.DateRange) error {
	if r == nil {
		return nil
	}
	return r.Validate()
}

func floatPtr(v float64) *float64 { return &v }

// inEok converts an optional won amount to hundred-million won, NaN when absent.
func inEok(v any) float64 {
	if f, ok := v.(float64); ok {
		return f / eok
	}
	return nan
}

func meanInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
