// Package sheet decodes uploaded spreadsheets into raw rows for the
// normalizer and produces the blank upload template.
//
// Only the first sheet of a workbook is read. The first non-empty row is the
// header; every later non-empty row becomes one fund.RawRow keyed by the
// normalized header text. Cell values are always strings; the normalizer
// decides what parses.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/fund-returns/fund"
)

// ErrUnreadable is returned for files that cannot be decoded as a table.
var ErrUnreadable = errors.New("unreadable spreadsheet")

// Table is the decoded first sheet.
type Table struct {
	Sheet   string        `json:"sheet"`
	Headers []string      `json:"headers"`
	Rows    []fund.RawRow `json:"-"`
}

// Read decodes r according to the extension of name.
func Read(name string, r io.Reader) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm", ".xltx":
		return readXLSX(r)
	case ".csv":
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q (expected .xlsx or .csv)", ErrUnreadable, ext)
	}
}

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open XLSX file: %v", ErrUnreadable, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets found in XLSX file", ErrUnreadable)
	}
	sheetName := sheets[0]

	iter, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open rows iterator for sheet %s: %v", ErrUnreadable, sheetName, err)
	}
	defer iter.Close()

	b := newBuilder(sheetName)
	for iter.Next() {
		// Raw values match what a dataframe reader sees: 0.035 rather than "3.50%".
		cells, err := iter.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read row in sheet %s: %v", ErrUnreadable, sheetName, err)
		}
		b.add(cells)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %v", ErrUnreadable, sheetName, err)
	}
	return b.table()
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	// Spreadsheet apps prefix CSV exports with a BOM, which would otherwise
	// become part of the first header.
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	b := newBuilder("csv")
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read CSV: %v", ErrUnreadable, err)
		}
		b.add(cells)
	}
	return b.table()
}

// =============================================================================
// TABLE BUILDER
// =============================================================================

type builder struct {
	sheet   string
	headers []string
	columns []int // source cell index for each header
	rows    []fund.RawRow
}

func newBuilder(sheet string) *builder {
	return &builder{sheet: sheet}
}

func (b *builder) add(cells []string) {
	if isBlank(cells) {
		return
	}
	if b.headers == nil {
		b.setHeader(cells)
		return
	}
	row := make(fund.RawRow, len(b.headers))
	for i, h := range b.headers {
		col := b.columns[i]
		if col < len(cells) {
			row[h] = cells[col]
		} else {
			row[h] = ""
		}
	}
	b.rows = append(b.rows, row)
}

// setHeader keeps the first occurrence of each non-blank header.
func (b *builder) setHeader(cells []string) {
	seen := make(map[string]bool)
	b.headers = []string{}
	for i, cell := range cells {
		h := fund.NormalizeHeader(cell)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		b.headers = append(b.headers, h)
		b.columns = append(b.columns, i)
	}
}

func (b *builder) table() (*Table, error) {
	if len(b.headers) == 0 {
		return nil, fmt.Errorf("%w: sheet %s has no header row", ErrUnreadable, b.sheet)
	}
	rows := b.rows
	if rows == nil {
		rows = []fund.RawRow{}
	}
	return &Table{Sheet: b.sheet, Headers: b.headers, Rows: rows}, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// TEMPLATE
// =============================================================================

// TemplateSheet is the sheet name of the generated template.
const TemplateSheet = "fund_returns"

// WriteTemplate writes an empty workbook whose header row holds the expected
// source column labels.
func WriteTemplate(w io.Writer, columns fund.SourceColumns) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return fmt.Errorf("failed to name template sheet: %w", err)
	}

	headers := columns.WithDefaults().Headers()
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(TemplateSheet, "A1", &row); err != nil {
		return fmt.Errorf("failed to write template header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(TemplateSheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style template header: %w", err)
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(TemplateSheet, "A", lastCol, 14); err != nil {
		return fmt.Errorf("failed to size template columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}
