package fund

import "sort"

// DefaultRankSize is the top/bottom list length used by the dashboard views.
const DefaultRankSize = 10

// TopN returns up to n records with the highest value for p, descending.
// Records where p is absent are skipped. Ties keep fetch order.
func TopN(records []Record, p Period, n int) []Record {
	return rank(records, p, n, true)
}

// BottomN returns up to n records with the lowest value for p, ascending.
func BottomN(records []Record, p Period, n int) []Record {
	return rank(records, p, n, false)
}

func rank(records []Record, p Period, n int, descending bool) []Record {
	if n <= 0 {
		return []Record{}
	}
	candidates := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Return(p).Valid {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a := candidates[i].Return(p).Decimal
		b := candidates[j].Return(p).Decimal
		if descending {
			return a.GreaterThan(b)
		}
		return a.LessThan(b)
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
