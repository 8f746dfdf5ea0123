package report

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"

	"github.com/warp/fund-returns/fund"
)

// Table is a rectangular result set. Cells are string, int, float64 or nil
// for an absent value.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func newTable(columns ...string) Table {
	return Table{Columns: columns, Rows: [][]any{}}
}

func (t *Table) add(cells ...any) {
	t.Rows = append(t.Rows, cells)
}

// num converts an optional decimal to a table cell.
func num(d decimal.NullDecimal) any {
	if v, ok := fund.Float(d); ok {
		return v
	}
	return nil
}

// orNaN converts an optional decimal to a plot value.
func orNaN(d decimal.NullDecimal) float64 {
	if v, ok := fund.Float(d); ok {
		return v
	}
	return nan
}

// descNullsLast orders present values descending ahead of absent ones.
func descNullsLast(a, b decimal.NullDecimal) bool {
	if !a.Valid {
		return false
	}
	if !b.Valid {
		return true
	}
	return a.Decimal.GreaterThan(b.Decimal)
}

// opt converts an optional float to a table cell.
func opt(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// TableText renders t as aligned plain text with grouped thousands. Numbers
// are right aligned; absent cells print as "-". Column widths account for
// double-width Hangul.
func TableText(t Table) string {
	p := message.NewPrinter(language.Korean)
	format := func(v any) (string, bool) {
		switch x := v.(type) {
		case nil:
			return "-", true
		case string:
			return x, false
		case int:
			return p.Sprintf("%d", x), true
		case int64:
			return p.Sprintf("%d", x), true
		case float64:
			return p.Sprintf("%.2f", x), true
		case *float64:
			if x == nil {
				return "-", true
			}
			return p.Sprintf("%.2f", *x), true
		default:
			return p.Sprint(x), false
		}
	}

	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = displayWidth(c)
	}
	cells := make([][]string, len(t.Rows))
	numeric := make([][]bool, len(t.Rows))
	for r, row := range t.Rows {
		cells[r] = make([]string, len(t.Columns))
		numeric[r] = make([]bool, len(t.Columns))
		for i := range t.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			cells[r][i], numeric[r][i] = format(v)
			widths[i] = max(widths[i], displayWidth(cells[r][i]))
		}
	}

	var b strings.Builder
	writeRow := func(values []string, right []bool) {
		for i, v := range values {
			if i > 0 {
				b.WriteString("  ")
			}
			pad := strings.Repeat(" ", widths[i]-displayWidth(v))
			if right != nil && right[i] {
				b.WriteString(pad + v)
			} else if i == len(values)-1 {
				b.WriteString(v)
			} else {
				b.WriteString(v + pad)
			}
		}
		b.WriteString("\n")
	}
	writeRow(t.Columns, nil)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for r := range cells {
		writeRow(cells[r], numeric[r])
	}
	return b.String()
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
