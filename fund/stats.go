package fund

import (
	"math"
	"sort"
)

// =============================================================================
// DESCRIPTIVE STATISTICS - In-memory summaries over fetched records
// =============================================================================
// All helpers ignore absent values. A statistic that is undefined for the
// sample (mean of nothing, std of one value) is nil, never zero.

// Summary is a describe()-style summary of one column.
type Summary struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q25    *float64 `json:"q25"`
	Median *float64 `json:"median"`
	Q75    *float64 `json:"q75"`
	Max    *float64 `json:"max"`
}

// Values extracts the present values of period p in record order.
func Values(records []Record, p Period) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := Float(r.Return(p)); ok {
			out = append(out, v)
		}
	}
	return out
}

// TotalAmounts extracts present total_amount values in record order.
func TotalAmounts(records []Record) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := Float(r.TotalAmount); ok {
			out = append(out, v)
		}
	}
	return out
}

// Describe computes count, mean, sample standard deviation, min, quartiles
// (linear interpolation) and max.
func Describe(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean := Mean(values)
	s.Mean = &mean
	if std, ok := StdDev(values); ok {
		s.Std = &std
	}
	lo, hi := sorted[0], sorted[len(sorted)-1]
	q25, q50, q75 := Quantile(sorted, 0.25), Quantile(sorted, 0.5), Quantile(sorted, 0.75)
	s.Min, s.Max = &lo, &hi
	s.Q25, s.Median, s.Q75 = &q25, &q50, &q75
	return s
}

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (n-1). ok is false below two values.
func StdDev(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1)), true
}

// Quantile interpolates linearly between closest ranks of an ascending slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// =============================================================================
// HISTOGRAM
// =============================================================================

// DefaultHistogramBins matches the returns-distribution view.
const DefaultHistogramBins = 30

// Bin is one histogram bucket [Lower, Upper). The last bin includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets values into equal-width bins spanning [min, max].
// A constant sample is centred in a unit-wide range.
func Histogram(values []float64, bins int) []Bin {
	if len(values) == 0 || bins <= 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		out[i].Count++
	}
	return out
}

// =============================================================================
// SERIES HELPERS - Time series view support
// =============================================================================

// DatePoint is one value on a date axis.
type DatePoint struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// AverageByDate averages p across all records sharing an as-of date.
// Dates where every value is absent are omitted. Output is date ascending.
func AverageByDate(records []Record, p Period) []DatePoint {
	type acc struct {
		sum   float64
		count int
	}
	byDate := make(map[Date]*acc)
	var dates []Date
	for _, r := range records {
		v, ok := Float(r.Return(p))
		if !ok {
			continue
		}
		a, seen := byDate[r.AsOfDate]
		if !seen {
			a = &acc{}
			byDate[r.AsOfDate] = a
			dates = append(dates, r.AsOfDate)
		}
		a.sum += v
		a.count++
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := make([]DatePoint, 0, len(dates))
	for _, d := range dates {
		a := byDate[d]
		out = append(out, DatePoint{Date: d, Value: a.sum / float64(a.count)})
	}
	return out
}

// ProductSeries returns the present points of p for one product, in record order.
func ProductSeries(records []Record, product string, p Period) []DatePoint {
	var out []DatePoint
	for _, r := range records {
		if r.Product() != product {
			continue
		}
		if v, ok := Float(r.Return(p)); ok {
			out = append(out, DatePoint{Date: r.AsOfDate, Value: v})
		}
	}
	return out
}

// SeriesSummary summarizes one product over one period.
type SeriesSummary struct {
	Product string   `json:"product_name"`
	Period  Period   `json:"period"`
	Count   int      `json:"count"`
	Mean    *float64 `json:"mean"`
	Max     *float64 `json:"max"`
	Min     *float64 `json:"min"`
	Std     *float64 `json:"std"`
}

// SummarizeSeries emits one summary per (product, period) for products that
// have at least one record.
func SummarizeSeries(records []Record, products []string, periods []Period) []SeriesSummary {
	var out []SeriesSummary
	for _, product := range products {
		var rows []Record
		for _, r := range records {
			if r.Product() == product {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			continue
		}
		for _, p := range periods {
			d := Describe(Values(rows, p))
			out = append(out, SeriesSummary{
				Product: product,
				Period:  p,
				Count:   d.Count,
				Mean:    d.Mean,
				Max:     d.Max,
				Min:     d.Min,
				Std:     d.Std,
			})
		}
	}
	return out
}
