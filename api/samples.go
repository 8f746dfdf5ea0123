/*
samples.go - Deterministic demo dataset

PURPOSE:
  Populates an empty dashboard with realistic-looking data so every view
  has something to draw. The same (end date, months) always yields the same
  records: values come from a fixed-seed generator.

SHAPE:
  Four managers with three to four products each, one as-of date per month
  end before the end date. Younger products have no 2Y/3Y returns, and one
  product has no total amount, so absent values show up in every view.

USAGE VIA API:
  POST /api/admin/samples
  {"months": 12}

NOTE:
  Samples are appended like any upload. Purge first for a clean demo.

SEE ALSO:
  - handlers.go: LoadSamples handler
*/
package api

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/warp/fund-returns/fund"
)

const (
	DefaultSampleMonths = 12
	MaxSampleMonths     = 60
)

type sampleProduct struct {
	name     string
	drift    float64 // mean annual return, percent
	vol      float64
	ageYears int     // years since inception at the end date
	assets   float64 // won; 0 means not reported
}

var sampleManagers = []struct {
	name     string
	products []sampleProduct
}{
	{"가람자산운용", []sampleProduct{
		{"가람 성장주 1호", 9.5, 14, 6, 182_000_000_000},
		{"가람 배당 인컴", 5.2, 7, 4, 96_500_000_000},
		{"가람 글로벌 채권", 3.1, 3, 8, 241_000_000_000},
	}},
	{"누리투자신탁", []sampleProduct{
		{"누리 코리아 밸류", 6.8, 12, 10, 315_000_000_000},
		{"누리 중소형 포커스", 11.2, 20, 1, 24_300_000_000},
		{"누리 단기 국공채", 2.4, 1, 5, 410_000_000_000},
		{"누리 ESG 리더스", 7.0, 11, 2, 0},
	}},
	{"다온에셋", []sampleProduct{
		{"다온 인컴 플러스", 4.1, 5, 3, 58_000_000_000},
		{"다온 테크 이노베이션", 13.5, 24, 7, 133_000_000_000},
		{"다온 리츠 재간접", 3.6, 9, 2, 41_000_000_000},
	}},
	{"라온운용", []sampleProduct{
		{"라온 절대수익", 4.8, 4, 9, 87_000_000_000},
		{"라온 아시아 퀀트", 8.3, 15, 5, 62_500_000_000},
		{"라온 헬스케어", -1.5, 18, 3, 19_800_000_000},
	}},
}

// SampleDates returns the month ends strictly before end's month, oldest first.
func SampleDates(end fund.Date, months int) []fund.Date {
	dates := make([]fund.Date, 0, months)
	for i := months - 1; i >= 0; i-- {
		// Day 0 of month m is the last day of month m-1.
		t := time.Date(end.Time.Year(), end.Time.Month()-time.Month(i), 0, 0, 0, 0, 0, time.UTC)
		dates = append(dates, fund.DateOf(t))
	}
	return dates
}

// SampleRecords builds the demo dataset for the months ending before end.
func SampleRecords(end fund.Date, months int) []fund.Record {
	rng := rand.New(rand.NewPCG(20240630, uint64(months)))
	dates := SampleDates(end, months)

	var records []fund.Record
	for di, date := range dates {
		monthsBack := len(dates) - 1 - di
		for _, m := range sampleManagers {
			for _, p := range m.products {
				rec := fund.Record{
					AsOfDate:    date,
					Manager:     fund.StringPtr(m.name),
					ProductName: fund.StringPtr(p.name),
				}
				ageMonths := p.ageYears*12 - monthsBack
				for _, period := range fund.Periods {
					horizon := periodMonths(period, ageMonths)
					if horizon == 0 || horizon > ageMonths {
						continue
					}
					years := float64(horizon) / 12
					v := p.drift*years + p.vol*math.Sqrt(years)*rng.NormFloat64()
					rec.SetReturn(period, fund.Num(round2(v)))
				}
				if p.assets > 0 {
					growth := 1 + 0.01*rng.NormFloat64() - 0.005*float64(monthsBack)
					rec.TotalAmount = fund.Num(math.Round(p.assets * growth))
				}
				records = append(records, rec)
			}
		}
	}
	return records
}

// periodMonths is the length of a trailing period; since inception uses the
// product's age.
func periodMonths(p fund.Period, ageMonths int) int {
	switch p {
	case fund.Period1M:
		return 1
	case fund.Period3M:
		return 3
	case fund.Period6M:
		return 6
	case fund.Period1Y:
		return 12
	case fund.Period2Y:
		return 24
	case fund.Period3Y:
		return 36
	case fund.PeriodSinceInception:
		return ageMonths
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
