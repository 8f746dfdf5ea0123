/*
types.go - Core domain types for fund return records

PURPOSE:
  Defines the single persisted entity (Record), the seven trailing return
  periods and the raw row shape produced by spreadsheet readers.

ABSENCE ENCODING:
  Numeric fields are decimal.NullDecimal. Valid=false is the explicit
  "absent" marker and is never conflated with zero. Text fields are *string
  with nil meaning absent.

PERIODS:
  Each Period maps to exactly one fixed column name. Column names come only
  from this table, never from user input, so query builders may place them
  in SQL text while every user-supplied value stays a bind parameter.

SEE ALSO:
  - normalize.go: RawRow -> Record conversion
  - store.go: Persistence and query contracts
*/
package fund

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RETURN PERIODS
// =============================================================================

// Period is one of the seven trailing return horizons.
type Period string

const (
	Period1M             Period = "1M"
	Period3M             Period = "3M"
	Period6M             Period = "6M"
	Period1Y             Period = "1Y"
	Period2Y             Period = "2Y"
	Period3Y             Period = "3Y"
	PeriodSinceInception Period = "SI"
)

// Periods lists every period in display order.
var Periods = []Period{
	Period1M, Period3M, Period6M, Period1Y, Period2Y, Period3Y, PeriodSinceInception,
}

type periodInfo struct {
	column string
	label  string
}

var periodTable = map[Period]periodInfo{
	Period1M:             {column: "r_1m", label: "1개월"},
	Period3M:             {column: "r_3m", label: "3개월"},
	Period6M:             {column: "r_6m", label: "6개월"},
	Period1Y:             {column: "r_1y", label: "1년"},
	Period2Y:             {column: "r_2y", label: "2년"},
	Period3Y:             {column: "r_3y", label: "3년"},
	PeriodSinceInception: {column: "since_inception", label: "설정일이후"},
}

// Valid reports whether p is one of the known periods.
func (p Period) Valid() bool {
	_, ok := periodTable[p]
	return ok
}

// Column returns the table column holding returns for p.
func (p Period) Column() string { return periodTable[p].column }

// Label returns the display label.
func (p Period) Label() string { return periodTable[p].label }

// ParsePeriod accepts a period code ("1Y"), a column name ("r_1y") or the
// spreadsheet label ("설정일이후").
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	for _, p := range Periods {
		info := periodTable[p]
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, info.column) || s == info.label {
			return p, nil
		}
	}
	if s == "설정일이후" || strings.EqualFold(s, "since_inception") || strings.EqualFold(s, "inception") {
		return PeriodSinceInception, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

// ParsePeriods parses a list where each element may itself be comma
// separated. Duplicates are dropped, first occurrence wins.
func ParsePeriods(values []string) ([]Period, error) {
	var out []Period
	seen := make(map[Period]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			p, err := ParsePeriod(part)
			if err != nil {
				return nil, err
			}
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one persisted fund return row.
type Record struct {
	ID             int64               `json:"id"`
	AsOfDate       Date                `json:"asof_date"`
	Manager        *string             `json:"manager"`
	ProductName    *string             `json:"product_name"`
	R1M            decimal.NullDecimal `json:"r_1m"`
	R3M            decimal.NullDecimal `json:"r_3m"`
	R6M            decimal.NullDecimal `json:"r_6m"`
	R1Y            decimal.NullDecimal `json:"r_1y"`
	R2Y            decimal.NullDecimal `json:"r_2y"`
	R3Y            decimal.NullDecimal `json:"r_3y"`
	SinceInception decimal.NullDecimal `json:"since_inception"`
	TotalAmount    decimal.NullDecimal `json:"total_amount"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Return gives the value stored for period p.
func (r Record) Return(p Period) decimal.NullDecimal {
	if f := r.returnField(p); f != nil {
		return *f
	}
	return decimal.NullDecimal{}
}

// SetReturn stores v for period p. Unknown periods are ignored.
func (r *Record) SetReturn(p Period, v decimal.NullDecimal) {
	if f := r.returnField(p); f != nil {
		*f = v
	}
}

func (r *Record) returnField(p Period) *decimal.NullDecimal {
	switch p {
	case Period1M:
		return &r.R1M
	case Period3M:
		return &r.R3M
	case Period6M:
		return &r.R6M
	case Period1Y:
		return &r.R1Y
	case Period2Y:
		return &r.R2Y
	case Period3Y:
		return &r.R3Y
	case PeriodSinceInception:
		return &r.SinceInception
	}
	return nil
}

// ManagerName returns the manager or "" when absent.
func (r Record) ManagerName() string { return deref(r.Manager) }

// Product returns the product name or "" when absent.
func (r Record) Product() string { return deref(r.ProductName) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr is a convenience for building records in code.
func StringPtr(s string) *string { return &s }

// Num builds a present numeric value.
func Num(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

// Float converts a NullDecimal to (value, ok).
func Float(d decimal.NullDecimal) (float64, bool) {
	if !d.Valid {
		return 0, false
	}
	return d.Decimal.InexactFloat64(), true
}

// =============================================================================
// RAW INPUT
// =============================================================================

// RawRow is one input row keyed by source column name. Values are whatever
// the reader produced: nil, string, []byte, numbers or fmt.Stringer.
type RawRow map[string]any

// SourceColumns names the input columns for each record field.
type SourceColumns struct {
	Manager     string            `mapstructure:"manager"`
	ProductName string            `mapstructure:"product_name"`
	Returns     map[Period]string `mapstructure:"returns"`
	TotalAmount string            `mapstructure:"total_amount"`
}

// DefaultSourceColumns returns the labels used by the upload template.
func DefaultSourceColumns() SourceColumns {
	return SourceColumns{
		Manager:     "운용사",
		ProductName: "상품명",
		Returns: map[Period]string{
			Period1M:             "1M",
			Period3M:             "3M",
			Period6M:             "6M",
			Period1Y:             "1Y",
			Period2Y:             "2Y",
			Period3Y:             "3Y",
			PeriodSinceInception: "설정일이후",
		},
		TotalAmount: "총액",
	}
}

// Headers lists the nine expected source columns plus manager in template order.
func (c SourceColumns) Headers() []string {
	headers := []string{c.Manager, c.ProductName}
	for _, p := range Periods {
		headers = append(headers, c.Returns[p])
	}
	return append(headers, c.TotalAmount)
}

// WithDefaults fills blank labels from DefaultSourceColumns.
func (c SourceColumns) WithDefaults() SourceColumns {
	def := DefaultSourceColumns()
	if c.Manager == "" {
		c.Manager = def.Manager
	}
	if c.ProductName == "" {
		c.ProductName = def.ProductName
	}
	if c.TotalAmount == "" {
		c.TotalAmount = def.TotalAmount
	}
	returns := make(map[Period]string, len(Periods))
	for _, p := range Periods {
		if label := c.Returns[p]; label != "" {
			returns[p] = label
		} else {
			returns[p] = def.Returns[p]
		}
	}
	c.Returns = returns
	return c
}
