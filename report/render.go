/*
render.go - PNG chart rendering

PURPOSE:
  Turns view data into PNG images. There is exactly one rendering pipeline:
  bar, line and histogram charts use go-chart's chart types; grouped bars,
  box plots and heatmaps are drawn directly with go-chart's raster renderer
  because go-chart has no chart type for them.

FONT:
  go-chart's bundled font has no Hangul glyphs. Deployments that label
  charts in Korean set report.font_path to a TrueType font that does.

RANGES:
  Every chart gets an explicit axis range. go-chart refuses to render a
  zero-width range, so single-value and single-date data is padded.

SEE ALSO:
  - views.go: builds the plots from query results
*/
package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/golang/freetype/truetype"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/warp/fund-returns/fund"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 576
)

// RenderConfig is the report section of the application config.
type RenderConfig struct {
	FontPath string `mapstructure:"font_path"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
}

// Renderer draws charts at a fixed size with one font.
type Renderer struct {
	font       *truetype.Font
	fontSource string
	width      int
	height     int
}

// SystemFontPaths are the Hangul fonts tried, in order, when no font path is
// configured. Collections (.ttc) are not listed; truetype cannot parse them.
var SystemFontPaths = []string{
	"/usr/share/fonts/truetype/nanum/NanumGothic.ttf",
	"/usr/share/fonts/nanum/NanumGothic.ttf",
	"/usr/share/fonts/truetype/nanum/NanumBarunGothic.ttf",
	"/usr/share/fonts/truetype/unfonts-core/UnDotum.ttf",
	"/System/Library/Fonts/Supplemental/AppleGothic.ttf",
	"/Library/Fonts/AppleGothic.ttf",
	`C:\Windows\Fonts\malgun.ttf`,
}

// NewRenderer loads the configured font. Without a path it uses the first
// parseable entry of SystemFontPaths, then go-chart's bundled font.
func NewRenderer(cfg RenderConfig) (*Renderer, error) {
	font, source, err := loadFont(cfg.FontPath)
	if err != nil {
		return nil, err
	}
	r := &Renderer{font: font, fontSource: source, width: cfg.Width, height: cfg.Height}
	if r.width <= 0 {
		r.width = DefaultWidth
	}
	if r.height <= 0 {
		r.height = DefaultHeight
	}
	return r, nil
}

// FontSource is the font file in use, or "default" for go-chart's font.
func (r *Renderer) FontSource() string { return r.fontSource }

// HasHangul reports whether the font has glyphs for Korean labels.
func (r *Renderer) HasHangul() bool {
	return r.font.Index('가') != 0 && r.font.Index('한') != 0
}

// FindFont returns the first candidate that exists and parses.
func FindFont(candidates []string) (*truetype.Font, string, bool) {
	for _, path := range candidates {
		font, err := parseFontFile(path)
		if err == nil {
			return font, path, true
		}
	}
	return nil, "", false
}

func loadFont(path string) (*truetype.Font, string, error) {
	if path != "" {
		font, err := parseFontFile(path)
		if err != nil {
			return nil, "", err
		}
		return font, path, nil
	}
	if font, found, ok := FindFont(SystemFontPaths); ok {
		return font, found, nil
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load default font: %w", err)
	}
	return font, "default", nil
}

func parseFontFile(path string) (*truetype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	font, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}
	return font, nil
}

// =============================================================================
// PLOT INPUTS
// =============================================================================
// Absent values are NaN in Series.Values.

// Series is one named list of values aligned with a plot's labels.
type Series struct {
	Name   string
	Values []float64
}

// BarPlot is a categorical bar chart; more than one series draws grouped bars.
type BarPlot struct {
	Title  string
	YLabel string
	Labels []string
	Series []Series
}

// Line is one dated series. Emphasized lines draw thicker and dashed.
type Line struct {
	Name     string
	Points   []fund.DatePoint
	Emphasis bool
}

// LinePlot is a time series chart.
type LinePlot struct {
	Title  string
	YLabel string
	Lines  []Line
	Legend bool
}

// HistogramPlot draws precomputed bins.
type HistogramPlot struct {
	Title string
	Bins  []fund.Bin
}

// BoxPlot draws one box per group.
type BoxPlot struct {
	Title  string
	YLabel string
	Groups []Series
}

// Heatmap is a grid of optional values. Cells[row][col].
type Heatmap struct {
	Title   string
	Rows    []string
	Columns []string
	Cells   [][]*float64
}

// =============================================================================
// COLORS
// =============================================================================

var palette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
	drawing.ColorFromHex("e377c2"),
	drawing.ColorFromHex("7f7f7f"),
	drawing.ColorFromHex("bcbd22"),
	drawing.ColorFromHex("17becf"),
}

var (
	titleColor   = drawing.ColorFromHex("2e86ab")
	textColor    = drawing.ColorFromHex("333333")
	gridColor    = drawing.ColorFromHex("e5e5e5")
	axisColor    = drawing.ColorFromHex("999999")
	averageColor = drawing.ColorFromHex("e41a1c")
	absentColor  = drawing.ColorFromHex("cccccc")
	heatLow      = drawing.ColorFromHex("d73027")
	heatMid      = drawing.ColorFromHex("ffffbf")
	heatHigh     = drawing.ColorFromHex("1a9850")
)

func seriesColor(i int) drawing.Color {
	return palette[i%len(palette)]
}

// heatColor maps t in [0, 1] onto a red-yellow-green scale.
func heatColor(t float64) drawing.Color {
	t = math.Max(0, math.Min(1, t))
	if t < 0.5 {
		return lerpColor(heatLow, heatMid, t*2)
	}
	return lerpColor(heatMid, heatHigh, (t-0.5)*2)
}

func lerpColor(a, b drawing.Color, t float64) drawing.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// =============================================================================
// GO-CHART TYPES
// =============================================================================

func (r *Renderer) titleStyle() chart.Style {
	return chart.Style{FontSize: 14, FontColor: titleColor, Font: r.font}
}

func (r *Renderer) background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 30, Bottom: 20}}
}

// Bars renders a bar chart. A single series uses go-chart's bar chart.
func (r *Renderer) Bars(p BarPlot) ([]byte, error) {
	if len(p.Labels) == 0 || len(p.Series) == 0 || !anyPresent(p.Series) {
		return nil, ErrNoData
	}
	if len(p.Series) > 1 {
		return r.groupedBars(p)
	}

	s := p.Series[0]
	color := seriesColor(0)
	bars := make([]chart.Value, len(p.Labels))
	for i, label := range p.Labels {
		v := valueAt(s.Values, i)
		if math.IsNaN(v) {
			v = 0
		}
		bars[i] = chart.Value{
			Label: label,
			Value: v,
			Style: chart.Style{FillColor: color, StrokeColor: color, StrokeWidth: 1},
		}
	}
	lo, hi := barRange(s.Values)
	ticks := niceTicks(lo, hi, 6)

	canvasWidth := r.width - 120
	barWidth := clampInt(canvasWidth*7/(10*len(bars)), 2, 60)
	bc := chart.BarChart{
		Title:      p.Title,
		TitleStyle: r.titleStyle(),
		Width:      r.width,
		Height:     r.height,
		Font:       r.font,
		Background: r.background(),
		BarWidth:   barWidth,
		BarSpacing: clampInt(canvasWidth*3/(10*len(bars)), 1, 40),
		XAxis:      chart.Style{FontSize: 8, FontColor: textColor},
		YAxis: chart.YAxis{
			Name:  p.YLabel,
			Range: &chart.ContinuousRange{Min: ticks[0].Value, Max: ticks[len(ticks)-1].Value},
			Ticks: ticks,
		},
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bar chart %q: %w", p.Title, err)
	}
	return buf.Bytes(), nil
}

// Histogram renders bins as adjacent bars, labelling every few bins.
func (r *Renderer) Histogram(p HistogramPlot) ([]byte, error) {
	if len(p.Bins) == 0 {
		return nil, ErrNoData
	}
	every := int(math.Ceil(float64(len(p.Bins)) / 10))
	maxCount := 0
	bars := make([]chart.Value, len(p.Bins))
	for i, b := range p.Bins {
		label := ""
		if i%every == 0 {
			label = formatTick(b.Lower)
		}
		bars[i] = chart.Value{
			Label: label,
			Value: float64(b.Count),
			Style: chart.Style{FillColor: seriesColor(0).WithAlpha(200), StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		}
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}
	ticks := niceTicks(0, float64(maxCount), 6)
	bc := chart.BarChart{
		Title:      p.Title,
		TitleStyle: r.titleStyle(),
		Width:      r.width,
		Height:     r.height,
		Font:       r.font,
		Background: r.background(),
		BarWidth:   clampInt((r.width-120)/len(bars)-1, 2, 80),
		BarSpacing: 1,
		XAxis:      chart.Style{FontSize: 8, FontColor: textColor},
		YAxis: chart.YAxis{
			Name:  "빈도",
			Range: &chart.ContinuousRange{Min: 0, Max: ticks[len(ticks)-1].Value},
			Ticks: ticks,
		},
		Bars: bars,
	}
	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render histogram %q: %w", p.Title, err)
	}
	return buf.Bytes(), nil
}

// Lines renders dated series on a shared time axis. Lines without points
// are skipped.
func (r *Renderer) Lines(p LinePlot) ([]byte, error) {
	var (
		series     []chart.Series
		values     []float64
		first, end time.Time
	)
	for i, line := range p.Lines {
		if len(line.Points) == 0 {
			continue
		}
		xs := make([]time.Time, len(line.Points))
		ys := make([]float64, len(line.Points))
		for j, pt := range line.Points {
			xs[j] = pt.Date.Time
			ys[j] = pt.Value
			if first.IsZero() || pt.Date.Time.Before(first) {
				first = pt.Date.Time
			}
			if pt.Date.Time.After(end) {
				end = pt.Date.Time
			}
		}
		values = append(values, ys...)

		color := seriesColor(i)
		style := chart.Style{StrokeColor: color, StrokeWidth: 2, DotColor: color, DotWidth: 3}
		if line.Emphasis {
			style = chart.Style{
				StrokeColor:     averageColor,
				StrokeWidth:     3,
				StrokeDashArray: []float64{6, 4},
				DotColor:        averageColor,
				DotWidth:        4,
			}
		}
		series = append(series, chart.TimeSeries{Name: line.Name, XValues: xs, YValues: ys, Style: style})
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	if !end.After(first) {
		first = first.AddDate(0, 0, -1)
		end = end.AddDate(0, 0, 1)
	}
	lo, hi := paddedRange(values)
	yTicks := niceTicks(lo, hi, 6)

	ch := chart.Chart{
		Title:      p.Title,
		TitleStyle: r.titleStyle(),
		Width:      r.width,
		Height:     r.height,
		Font:       r.font,
		Background: r.background(),
		XAxis: chart.XAxis{
			Name:  "날짜",
			Style: chart.Style{FontSize: 8, FontColor: textColor},
			Range: &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(end)},
			Ticks: dateTicks(first, end, 6),
		},
		YAxis: chart.YAxis{
			Name:  p.YLabel,
			Style: chart.Style{FontSize: 8, FontColor: textColor},
			Range: &chart.ContinuousRange{Min: yTicks[0].Value, Max: yTicks[len(yTicks)-1].Value},
			Ticks: yTicks,
		},
		Series: series,
	}
	if p.Legend {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render line chart %q: %w", p.Title, err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// DRAWN CHARTS
// =============================================================================

// frame is a raster canvas with a title and a value axis.
type frame struct {
	r      chart.Renderer
	font   *truetype.Font
	plot   chart.Box
	lo, hi float64
}

// newCanvas paints the background and title.
func (r *Renderer) newCanvas(title string) (*frame, error) {
	rr, err := chart.PNG(r.width, r.height)
	if err != nil {
		return nil, fmt.Errorf("failed to create canvas: %w", err)
	}
	f := &frame{
		r:    rr,
		font: r.font,
		plot: chart.Box{Top: 70, Left: 80, Right: r.width - 30, Bottom: r.height - 60},
	}
	f.rect(0, 0, r.width, r.height, drawing.ColorWhite)
	f.text(title, r.width/2, 30, 14, titleColor, alignCenter)
	return f, nil
}

// newFrame is a canvas with a gridded value axis spanning [lo, hi].
func (r *Renderer) newFrame(title, ylabel string, lo, hi float64) (*frame, error) {
	f, err := r.newCanvas(title)
	if err != nil {
		return nil, err
	}
	f.lo, f.hi = lo, hi
	if ylabel != "" {
		f.text(ylabel, f.plot.Left, f.plot.Top-12, 9, textColor, alignLeft)
	}
	for _, tick := range niceTicks(lo, hi, 6) {
		y := f.y(tick.Value)
		f.line(f.plot.Left, y, f.plot.Right, y, gridColor, 1)
		f.text(tick.Label, f.plot.Left-8, y+4, 8, textColor, alignRight)
	}
	f.line(f.plot.Left, f.plot.Top, f.plot.Left, f.plot.Bottom, axisColor, 1)
	f.line(f.plot.Left, f.plot.Bottom, f.plot.Right, f.plot.Bottom, axisColor, 1)
	return f, nil
}

func (f *frame) y(v float64) int {
	if f.hi == f.lo {
		return f.plot.Bottom
	}
	return f.plot.Bottom - int(math.Round((v-f.lo)/(f.hi-f.lo)*float64(f.plot.Height())))
}

func (f *frame) rect(x0, y0, x1, y1 int, fill drawing.Color) {
	f.r.SetFillColor(fill)
	f.r.MoveTo(x0, y0)
	f.r.LineTo(x1, y0)
	f.r.LineTo(x1, y1)
	f.r.LineTo(x0, y1)
	f.r.Close()
	f.r.Fill()
}

func (f *frame) outline(x0, y0, x1, y1 int, stroke drawing.Color) {
	f.r.SetStrokeColor(stroke)
	f.r.SetStrokeWidth(1)
	f.r.MoveTo(x0, y0)
	f.r.LineTo(x1, y0)
	f.r.LineTo(x1, y1)
	f.r.LineTo(x0, y1)
	f.r.Close()
	f.r.Stroke()
}

func (f *frame) line(x0, y0, x1, y1 int, stroke drawing.Color, width float64) {
	f.r.SetStrokeColor(stroke)
	f.r.SetStrokeWidth(width)
	f.r.MoveTo(x0, y0)
	f.r.LineTo(x1, y1)
	f.r.Stroke()
}

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// text draws s with its baseline at y.
func (f *frame) text(s string, x, y int, size float64, color drawing.Color, a align) {
	if s == "" {
		return
	}
	f.r.SetFont(f.font)
	f.r.SetFontSize(size)
	f.r.SetFontColor(color)
	w := f.r.MeasureText(s).Width()
	switch a {
	case alignCenter:
		x -= w / 2
	case alignRight:
		x -= w
	}
	f.r.Text(s, x, y)
}

// fit shortens s with an ellipsis until it is at most width pixels wide.
func (f *frame) fit(s string, size float64, width int) string {
	f.r.SetFont(f.font)
	f.r.SetFontSize(size)
	if f.r.MeasureText(s).Width() <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "…"
		if f.r.MeasureText(candidate).Width() <= width {
			return candidate
		}
	}
	return string(runes)
}

func (f *frame) legend(names []string) {
	x := f.plot.Right
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		f.r.SetFont(f.font)
		f.r.SetFontSize(9)
		w := f.r.MeasureText(name).Width()
		x -= w
		f.text(name, x, f.plot.Top-12, 9, textColor, alignLeft)
		x -= 16
		f.rect(x, f.plot.Top-22, x+12, f.plot.Top-12, seriesColor(i))
		x -= 12
	}
}

func (f *frame) png() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.r.Save(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) groupedBars(p BarPlot) ([]byte, error) {
	var all []float64
	for _, s := range p.Series {
		all = append(all, s.Values...)
	}
	lo, hi := barRange(all)
	ticks := niceTicks(lo, hi, 6)
	lo, hi = ticks[0].Value, ticks[len(ticks)-1].Value

	f, err := r.newFrame(p.Title, p.YLabel, lo, hi)
	if err != nil {
		return nil, err
	}
	groupWidth := f.plot.Width() / len(p.Labels)
	barWidth := max(1, groupWidth*8/(10*len(p.Series)))
	base := f.y(math.Max(lo, 0))
	for g, label := range p.Labels {
		left := f.plot.Left + g*groupWidth + groupWidth/10
		for s, series := range p.Series {
			v := valueAt(series.Values, g)
			if math.IsNaN(v) {
				continue
			}
			x0 := left + s*barWidth
			y := f.y(v)
			top, bottom := min(y, base), max(y, base)
			f.rect(x0, top, x0+barWidth-1, bottom, seriesColor(s))
		}
		center := f.plot.Left + g*groupWidth + groupWidth/2
		f.text(f.fit(label, 8, groupWidth-4), center, f.plot.Bottom+16, 8, textColor, alignCenter)
	}
	names := make([]string, len(p.Series))
	for i, s := range p.Series {
		names[i] = s.Name
	}
	f.legend(names)
	return f.png()
}

// Boxes draws Q1..Q3 boxes with a median bar, whiskers at the furthest
// values within 1.5 IQR, and outliers beyond them.
func (r *Renderer) Boxes(p BoxPlot) ([]byte, error) {
	var all []float64
	for _, g := range p.Groups {
		all = append(all, present(g.Values)...)
	}
	if len(all) == 0 {
		return nil, ErrNoData
	}
	lo, hi := paddedRange(all)
	ticks := niceTicks(lo, hi, 6)
	lo, hi = ticks[0].Value, ticks[len(ticks)-1].Value

	f, err := r.newFrame(p.Title, p.YLabel, lo, hi)
	if err != nil {
		return nil, err
	}
	slot := f.plot.Width() / len(p.Groups)
	for i, g := range p.Groups {
		center := f.plot.Left + i*slot + slot/2
		f.text(f.fit(g.Name, 9, slot-4), center, f.plot.Bottom+16, 9, textColor, alignCenter)

		values := present(g.Values)
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)
		q1 := fund.Quantile(values, 0.25)
		med := fund.Quantile(values, 0.5)
		q3 := fund.Quantile(values, 0.75)
		iqr := q3 - q1
		lowFence, highFence := q1-1.5*iqr, q3+1.5*iqr

		whiskerLow, whiskerHigh := q1, q3
		var outliers []float64
		for _, v := range values {
			switch {
			case v < lowFence || v > highFence:
				outliers = append(outliers, v)
			case v < whiskerLow:
				whiskerLow = v
			case v > whiskerHigh:
				whiskerHigh = v
			}
		}

		half := max(4, slot/4)
		color := seriesColor(i)
		f.line(center, f.y(whiskerLow), center, f.y(q1), textColor, 1)
		f.line(center, f.y(q3), center, f.y(whiskerHigh), textColor, 1)
		f.line(center-half/2, f.y(whiskerLow), center+half/2, f.y(whiskerLow), textColor, 1)
		f.line(center-half/2, f.y(whiskerHigh), center+half/2, f.y(whiskerHigh), textColor, 1)
		f.rect(center-half, f.y(q3), center+half, f.y(q1), color.WithAlpha(160))
		f.outline(center-half, f.y(q3), center+half, f.y(q1), textColor)
		f.line(center-half, f.y(med), center+half, f.y(med), textColor, 2)
		for _, v := range outliers {
			f.r.SetStrokeColor(textColor)
			f.r.SetStrokeWidth(1)
			f.r.Circle(3, center, f.y(v))
			f.r.Stroke()
		}
	}
	return f.png()
}

// Heatmap draws one colored cell per value with the value printed inside.
// Absent cells are gray.
func (r *Renderer) Heatmap(h Heatmap) ([]byte, error) {
	var all []float64
	for _, row := range h.Cells {
		for _, c := range row {
			if c != nil {
				all = append(all, *c)
			}
		}
	}
	if len(h.Rows) == 0 || len(h.Columns) == 0 || len(all) == 0 {
		return nil, ErrNoData
	}
	lo, hi := all[0], all[0]
	for _, v := range all {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	f, err := r.newCanvas(h.Title)
	if err != nil {
		return nil, err
	}

	labelWidth := 0
	f.r.SetFont(f.font)
	f.r.SetFontSize(9)
	for _, name := range h.Rows {
		labelWidth = max(labelWidth, f.r.MeasureText(name).Width())
	}
	grid := chart.Box{Top: 60, Left: labelWidth + 20, Right: r.width - 90, Bottom: r.height - 60}
	cellW := grid.Width() / len(h.Columns)
	cellH := grid.Height() / len(h.Rows)

	for i, name := range h.Rows {
		top := grid.Top + i*cellH
		f.text(name, grid.Left-6, top+cellH/2+4, 9, textColor, alignRight)
		for j := range h.Columns {
			left := grid.Left + j*cellW
			var cell *float64
			if i < len(h.Cells) && j < len(h.Cells[i]) {
				cell = h.Cells[i][j]
			}
			fill := absentColor
			if cell != nil {
				t := 0.5
				if hi > lo {
					t = (*cell - lo) / (hi - lo)
				}
				fill = heatColor(t)
			}
			f.rect(left, top, left+cellW, top+cellH, fill)
			f.outline(left, top, left+cellW, top+cellH, drawing.ColorWhite)
			if cell != nil && cellW >= 28 && cellH >= 14 {
				f.text(fmt.Sprintf("%.2f", *cell), left+cellW/2, top+cellH/2+4, 8, textColor, alignCenter)
			}
		}
	}
	for j, name := range h.Columns {
		center := grid.Left + j*cellW + cellW/2
		f.text(f.fit(name, 8, cellW-2), center, grid.Bottom+16, 8, textColor, alignCenter)
	}

	// Color scale
	scaleLeft := grid.Right + 30
	steps := 50
	for s := 0; s < steps; s++ {
		y0 := grid.Bottom - (s+1)*grid.Height()/steps
		y1 := grid.Bottom - s*grid.Height()/steps
		f.rect(scaleLeft, y0, scaleLeft+16, y1, heatColor(float64(s)/float64(steps-1)))
	}
	f.text(formatTick(hi), scaleLeft+20, grid.Top+8, 8, textColor, alignLeft)
	f.text(formatTick(lo), scaleLeft+20, grid.Bottom, 8, textColor, alignLeft)
	return f.png()
}

// =============================================================================
// AXIS HELPERS
// =============================================================================

func niceTicks(min, max float64, n int) []chart.Tick {
	if max <= min {
		max = min + 1
	}
	span := max - min
	// Preferred tick steps: 1, 2, 2.5, 5, 10 scaled by a power of 10
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	bestStep, bestScore := mag, math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Max(2, math.Ceil(span/step))
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore, bestStep = score, step
		}
	}
	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	var ticks []chart.Tick
	for v := start; v <= end+bestStep/2; v += bestStep {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v)})
	}
	return ticks
}

func formatTick(v float64) string {
	if math.Abs(v) < 1e-9 {
		return "0"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func dateTicks(first, end time.Time, n int) []chart.Tick {
	span := end.Sub(first)
	ticks := make([]chart.Tick, 0, n)
	for i := 0; i < n; i++ {
		t := first.Add(time.Duration(float64(span) * float64(i) / float64(n-1)))
		ticks = append(ticks, chart.Tick{Value: chart.TimeToFloat64(t), Label: t.Format(fund.DateLayout)})
	}
	return ticks
}

// barRange spans the present values and always includes zero.
func barRange(values []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, v := range present(values) {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

// paddedRange spans the values with a 5% margin on each side.
func paddedRange(values []float64) (float64, float64) {
	values = present(values)
	if len(values) == 0 {
		return 0, 1
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.05, 1)
	}
	return lo - pad, hi + pad
}

func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func anyPresent(series []Series) bool {
	for _, s := range series {
		if len(present(s.Values)) > 0 {
			return true
		}
	}
	return false
}

func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return math.NaN()
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
