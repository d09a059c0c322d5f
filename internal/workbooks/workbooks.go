// Package workbooks converts between xlsx workbooks and in-memory tables.
// Only cell values travel; styles and formulas are not preserved.
package workbooks

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/sheetagent/internal/table"
)

// DefaultSheet is the sheet name used when exporting without one.
const DefaultSheet = "Sheet1"

// ErrSheetNotFound indicates the requested sheet does not exist.
var ErrSheetNotFound = errors.New("workbooks: sheet not found")

// ErrUnsupportedFormat indicates a path without a spreadsheet extension.
var ErrUnsupportedFormat = errors.New("workbooks: unsupported format")

// FormatError reports bytes that do not parse as a workbook. It is the one
// load failure callers are expected to tell apart from ordinary misses.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string { return "workbooks: not a readable workbook: " + e.Err.Error() }

func (e *FormatError) Unwrap() error { return e.Err }

// Decoded is one sheet read into a table. The first sheet row supplies the
// column names.
type Decoded struct {
	Sheet  string
	Sheets []string
	Table  *table.Table
}

// Decode reads sheet (the first sheet when empty) from r.
func Decode(r io.Reader, sheet string) (*Decoded, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Err: errors.New("workbook has no sheets")}
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("workbooks: read rows of %q: %w", sheet, err)
	}
	sr := &sheetReader{f: f, sheet: sheet, dates: map[int]bool{}}
	tbl, err := fromRows(rows, sr.value)
	if err != nil {
		return nil, err
	}
	return &Decoded{Sheet: sheet, Sheets: sheets, Table: tbl}, nil
}

// sheetReader types raw cell text using the stored cell type and, for
// numbers, the number format of the cell style.
type sheetReader struct {
	f     *excelize.File
	sheet string
	// style id -> date or time number format
	dates map[int]bool
}

// value types the raw text of the cell at 1-based (col, row).
func (r *sheetReader) value(col, row int, raw string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return table.ParseCell(raw)
	}
	typ, err := r.f.GetCellType(r.sheet, ref)
	if err != nil {
		return table.ParseCell(raw)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return raw
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	}
	v := table.ParseCell(raw)
	var serial float64
	switch n := v.(type) {
	case int64:
		serial = float64(n)
	case float64:
		serial = n
	default:
		return v
	}
	if r.isDate(ref) {
		if ts, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return ts
		}
	}
	return v
}

func (r *sheetReader) isDate(ref string) bool {
	id, err := r.f.GetCellStyle(r.sheet, ref)
	if err != nil || id == 0 {
		return false
	}
	if date, ok := r.dates[id]; ok {
		return date
	}
	date := false
	if style, err := r.f.GetStyle(id); err == nil && style != nil {
		date = isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	r.dates[id] = date
	return date
}

// isDateFormat reports whether a built-in number format id or a custom
// format code renders a date or time.
func isDateFormat(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		return isDateCode(*custom)
	}
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47,
		id >= 50 && id <= 58, id >= 71 && id <= 81:
		return true
	}
	return false
}

// isDateCode scans a format code for date or time tokens outside quoted
// literals, escapes and bracketed sections other than elapsed time.
func isDateCode(code string) bool {
	code = strings.ToLower(code)
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '"':
			if end := strings.IndexByte(code[i+1:], '"'); end >= 0 {
				i += end + 1
			} else {
				return false
			}
		case '\\', '_', '*':
			i++
		case '[':
			end := strings.IndexByte(code[i:], ']')
			if end < 0 {
				return false
			}
			switch code[i+1 : i+end] {
			case "h", "hh", "m", "mm", "s", "ss":
				return true
			}
			i += end
		case 'y', 'd', 'h', 's', 'm':
			return true
		}
	}
	return false
}

// FromRows builds a table from sheet text: row 0 is the header, the rest
// are typed with table.ParseCell. Short rows are padded with missing values.
func FromRows(rows [][]string) (*table.Table, error) {
	return fromRows(rows, func(_, _ int, s string) any { return table.ParseCell(s) })
}

// fromRows is FromRows with a cell typing function taking 1-based sheet
// coordinates.
func fromRows(rows [][]string, typed func(col, row int, s string) any) (*table.Table, error) {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if len(rows) == 0 || width == 0 {
		return table.New(nil, nil)
	}
	header := make([]any, width)
	for i, c := range rows[0] {
		header[i] = c
	}
	data := make([][]any, 0, len(rows)-1)
	for n, r := range rows[1:] {
		row := make([]any, width)
		for i, c := range r {
			row[i] = typed(i+1, n+2, c)
		}
		data = append(data, row)
	}
	return table.New(table.UniqueHeader(header), data)
}

// Encode writes t into a new single-sheet workbook, header first.
func Encode(t *table.Table, sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if sheet == "" {
		sheet = DefaultSheet
	}
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			// invalid sheet names (length, reserved characters) fall back to the default
			sheet = DefaultSheet
		}
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if len(header) > 0 {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("workbooks: write header: %w", err)
		}
	}
	for i, r := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		row := make([]interface{}, len(r))
		copy(row, r)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("workbooks: write row %d: %w", i+1, err)
		}
	}
	return f, nil
}

// EncodeBytes serializes t to xlsx bytes without touching the filesystem.
func EncodeBytes(t *table.Table, sheet string) ([]byte, error) {
	f, err := Encode(t, sheet)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("workbooks: serialize: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// WriteFile serializes t to path.
func WriteFile(t *table.Table, sheet, path string) error {
	if !SupportedPath(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	f, err := Encode(t, sheet)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("workbooks: save %s: %w", path, err)
	}
	return nil
}

// SupportedPath reports whether path carries a workbook extension excelize
// can write.
func SupportedPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	}
	return false
}
