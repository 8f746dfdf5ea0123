package report_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/warp/fund-returns/fund"
	"github.com/warp/fund-returns/report"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func newTestRenderer(t *testing.T) *report.Renderer {
	t.Helper()
	r, err := report.NewRenderer(report.RenderConfig{Width: 640, Height: 360})
	require.NoError(t, err)
	return r
}

func requirePNG(t *testing.T, data []byte, err error) {
	t.Helper()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, pngMagic), "output is not a PNG")
}

func TestNewRenderer_MissingFont(t *testing.T) {
	_, err := report.NewRenderer(report.RenderConfig{FontPath: filepath.Join(t.TempDir(), "nope.ttf")})
	assert.Error(t, err)
}

func TestNewRenderer_NotAFont(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ttf")
	require.NoError(t, os.WriteFile(path, []byte("not a font"), 0o600))
	_, err := report.NewRenderer(report.RenderConfig{FontPath: path})
	assert.Error(t, err)
}

func TestFindFont_SkipsMissingAndUnparseable(t *testing.T) {
	// GIVEN: A missing file, a non-font file and a real Latin-only font
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ttf")
	good := filepath.Join(dir, "goregular.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o600))
	require.NoError(t, os.WriteFile(good, goregular.TTF, 0o600))

	// WHEN: Searching in that order
	font, path, ok := report.FindFont([]string{filepath.Join(dir, "missing.ttf"), bad, good})

	// THEN: The first parseable candidate wins
	require.True(t, ok)
	assert.NotNil(t, font)
	assert.Equal(t, good, path)

	_, _, ok = report.FindFont([]string{bad})
	assert.False(t, ok)
}

func TestRenderer_HasHangul(t *testing.T) {
	// GIVEN: A renderer on a font without Korean glyphs
	path := filepath.Join(t.TempDir(), "goregular.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o600))

	r, err := report.NewRenderer(report.RenderConfig{FontPath: path})

	// THEN: The missing coverage is reported so startup can warn
	require.NoError(t, err)
	assert.Equal(t, path, r.FontSource())
	assert.False(t, r.HasHangul())
}

func TestBars_SingleSeriesWithNegativeAndAbsent(t *testing.T) {
	r := newTestRenderer(t)
	png, err := r.Bars(report.BarPlot{
		Title:  "운용사별 평균 수익률",
		Labels: []string{"A", "B", "C"},
		Series: []report.Series{{Name: "1Y", Values: []float64{3.5, -1.25, math.NaN()}}},
	})
	requirePNG(t, png, err)
}

func TestBars_Grouped(t *testing.T) {
	r := newTestRenderer(t)
	png, err := r.Bars(report.BarPlot{
		Title:  "grouped",
		Labels: []string{"A", "B"},
		Series: []report.Series{
			{Name: "1Y", Values: []float64{1, 2}},
			{Name: "3Y", Values: []float64{math.NaN(), -4}},
		},
	})
	requirePNG(t, png, err)
}

func TestBars_SingleValueRangeIsPadded(t *testing.T) {
	// GIVEN: Every bar at zero
	// WHEN: Rendering
	// THEN: A zero-height range does not fail
	r := newTestRenderer(t)
	png, err := r.Bars(report.BarPlot{
		Labels: []string{"A"},
		Series: []report.Series{{Name: "x", Values: []float64{0}}},
	})
	requirePNG(t, png, err)
}

func TestBars_NothingToPlot(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.Bars(report.BarPlot{
		Labels: []string{"A"},
		Series: []report.Series{{Name: "x", Values: []float64{math.NaN()}}},
	})
	assert.ErrorIs(t, err, report.ErrNoData)
}

func TestLines_SingleDate(t *testing.T) {
	r := newTestRenderer(t)
	day := fund.NewDate(2024, 6, 30)
	png, err := r.Lines(report.LinePlot{
		Title:  "one point",
		Lines:  []report.Line{{Name: "p1", Points: []fund.DatePoint{{Date: day, Value: 2}}}},
		Legend: true,
	})
	requirePNG(t, png, err)
}

func TestLines_SkipsEmptyLines(t *testing.T) {
	r := newTestRenderer(t)
	png, err := r.Lines(report.LinePlot{
		Lines: []report.Line{
			{Name: "empty"},
			{Name: "p1", Points: []fund.DatePoint{
				{Date: fund.NewDate(2024, 1, 31), Value: 1},
				{Date: fund.NewDate(2024, 2, 29), Value: -1},
			}},
			{Name: "평균", Emphasis: true, Points: []fund.DatePoint{
				{Date: fund.NewDate(2024, 1, 31), Value: 0.5},
				{Date: fund.NewDate(2024, 2, 29), Value: 0},
			}},
		},
	})
	requirePNG(t, png, err)

	_, err = r.Lines(report.LinePlot{Lines: []report.Line{{Name: "empty"}}})
	assert.ErrorIs(t, err, report.ErrNoData)
}

func TestHistogram(t *testing.T) {
	r := newTestRenderer(t)
	bins := fund.Histogram([]float64{1, 2, 2, 3, 8, -4}, fund.DefaultHistogramBins)
	png, err := r.Histogram(report.HistogramPlot{Title: "dist", Bins: bins})
	requirePNG(t, png, err)

	_, err = r.Histogram(report.HistogramPlot{})
	assert.ErrorIs(t, err, report.ErrNoData)
}

func TestBoxes_WithOutliersAndEmptyGroup(t *testing.T) {
	r := newTestRenderer(t)
	png, err := r.Boxes(report.BoxPlot{
		Title: "box",
		Groups: []report.Series{
			{Name: "1Y", Values: []float64{1, 2, 3, 4, 5, 40}},
			{Name: "3Y", Values: nil},
			{Name: "SI", Values: []float64{7}},
		},
	})
	requirePNG(t, png, err)

	_, err = r.Boxes(report.BoxPlot{Groups: []report.Series{{Name: "none"}}})
	assert.ErrorIs(t, err, report.ErrNoData)
}

func TestHeatmap_AbsentCells(t *testing.T) {
	r := newTestRenderer(t)
	v := func(f float64) *float64 { return &f }
	png, err := r.Heatmap(report.Heatmap{
		Title:   "heat",
		Rows:    []string{"1M", "1Y"},
		Columns: []string{"p1", "p2", "a very long product name that will not fit"},
		Cells: [][]*float64{
			{v(1), nil, v(-3)},
			{v(2.5), v(0), nil},
		},
	})
	requirePNG(t, png, err)

	_, err = r.Heatmap(report.Heatmap{Rows: []string{"1M"}, Columns: []string{"p"}, Cells: [][]*float64{{nil}}})
	assert.ErrorIs(t, err, report.ErrNoData)
}

// =============================================================================
// TABLE TEXT
// =============================================================================

func TestTableText(t *testing.T) {
	// GIVEN: A table with Hangul, large numbers and an absent cell
	table := report.Table{
		Columns: []string{"운용사", "상품 수", "총 자산"},
		Rows: [][]any{
			{"알파", 12, 1234567.891},
			{"B", 3, nil},
		},
	}

	// WHEN: Rendering as text
	out := report.TableText(table)

	// THEN: Thousands are grouped, absent prints as "-" and columns align
	assert.Contains(t, out, "1,234,567.89")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "------"), "double-width header gets a six-dash rule")
	assert.True(t, strings.HasSuffix(lines[3], "-"))
	assert.True(t, strings.HasPrefix(lines[3], "B     "), "B is padded to the width of the 운용사 header")
}
