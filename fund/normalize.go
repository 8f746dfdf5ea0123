package fund

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// NORMALIZER - Arbitrary tabular rows -> fixed Record shape
// =============================================================================

// Normalizer maps raw rows to records using a fixed set of source columns.
type Normalizer struct {
	Columns SourceColumns
}

// NewNormalizer fills any blank column labels with the defaults.
func NewNormalizer(cols SourceColumns) *Normalizer {
	return &Normalizer{Columns: cols.WithDefaults()}
}

// Normalize converts every row, tagging each record with asOf.
//
// A missing column is an absent field, not an error. A row that cannot be
// converted is reported in the returned RowErrors and skipped; the remaining
// rows are still normalized. records is empty only if rows is empty or every
// row failed.
func (n *Normalizer) Normalize(rows []RawRow, asOf Date) ([]Record, []RowError) {
	records := make([]Record, 0, len(rows))
	var rowErrs []RowError
	for i, row := range rows {
		rec, err := n.normalizeRow(i, row, asOf)
		if err != nil {
			rowErrs = append(rowErrs, *err)
			continue
		}
		records = append(records, rec)
	}
	return records, rowErrs
}

// Prepare is Normalize plus the empty-batch hard stop every writer path needs.
func (n *Normalizer) Prepare(rows []RawRow, asOf Date) ([]Record, []RowError, error) {
	if asOf.IsZero() {
		return nil, nil, fmt.Errorf("%w: asof_date is required", ErrInvalidQuery)
	}
	records, rowErrs := n.Normalize(rows, asOf)
	if len(records) == 0 {
		return nil, rowErrs, ErrEmptyBatch
	}
	return records, rowErrs, nil
}

func (n *Normalizer) normalizeRow(index int, row RawRow, asOf Date) (rec Record, rowErr *RowError) {
	column := ""
	defer func() {
		if r := recover(); r != nil {
			rowErr = &RowError{Index: index, Column: column, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	keys := headerIndex(row)
	rec.AsOfDate = asOf

	column = n.Columns.Manager
	manager, err := textValue(lookup(row, keys, column))
	if err != nil {
		return Record{}, &RowError{Index: index, Column: column, Err: err}
	}
	rec.Manager = manager

	column = n.Columns.ProductName
	product, err := textValue(lookup(row, keys, column))
	if err != nil {
		return Record{}, &RowError{Index: index, Column: column, Err: err}
	}
	rec.ProductName = product

	for _, p := range Periods {
		column = n.Columns.Returns[p]
		rec.SetReturn(p, numericValue(lookup(row, keys, column)))
	}

	column = n.Columns.TotalAmount
	rec.TotalAmount = numericValue(lookup(row, keys, column))
	return rec, nil
}

// NormalizeHeader trims and NFC-normalizes a column label. Workbooks saved on
// macOS often carry decomposed Hangul, which would otherwise never match.
func NormalizeHeader(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// headerIndex maps normalized header -> original key, only when they differ.
func headerIndex(row RawRow) map[string]string {
	var idx map[string]string
	for k := range row {
		nk := NormalizeHeader(k)
		if nk == k {
			continue
		}
		if idx == nil {
			idx = make(map[string]string)
		}
		if _, exists := idx[nk]; !exists {
			idx[nk] = k
		}
	}
	return idx
}

func lookup(row RawRow, idx map[string]string, column string) any {
	if column == "" {
		return nil
	}
	if v, ok := row[column]; ok {
		return v
	}
	if k, ok := idx[NormalizeHeader(column)]; ok {
		return row[k]
	}
	return nil
}

// =============================================================================
// VALUE COERCION
// =============================================================================

// textValue trims strings; blank means absent. Scalars are formatted.
// Non-scalar kinds cannot be a name and fail the row.
func textValue(v any) (*string, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, nil
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return nil, nil
		}
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = fmt.Sprint(t)
	case decimal.Decimal:
		s = t.String()
	case fmt.Stringer:
		s = t.String()
	default:
		return nil, fmt.Errorf("unsupported text value of type %T", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

// numericValue returns an absent value for anything that is not a finite number.
func numericValue(v any) decimal.NullDecimal {
	switch t := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(t)))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(t))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(t))
	case uint32:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(t)))
	case decimal.Decimal:
		return decimal.NewNullDecimal(t)
	case decimal.NullDecimal:
		return t
	case string:
		return ParseNumber(t)
	case []byte:
		return ParseNumber(string(t))
	case fmt.Stringer:
		return ParseNumber(t.String())
	default:
		return decimal.NullDecimal{}
	}
}

func fromFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

// ParseNumber parses spreadsheet text such as "1,234.5", " -2.0 " or "3.1%".
// Anything else, including "NaN" and "-", is absent.
func ParseNumber(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.NullDecimal{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}
