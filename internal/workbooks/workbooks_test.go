package workbooks

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/sheetagent/internal/table"
)

func people(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New([]string{"id", "name", "score"}, [][]any{
		{1, "ann", 9.5},
		{2, "bob", nil},
		{3, "cy", 7},
	})
	require.NoError(t, err)
	return tbl
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	src := people(t)
	data, err := EncodeBytes(src, "People")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	dec, err := Decode(bytes.NewReader(data), "")
	require.NoError(t, err)
	require.Equal(t, "People", dec.Sheet)
	require.Equal(t, []string{"People"}, dec.Sheets)
	require.Equal(t, src.Columns, dec.Table.Columns)
	require.Equal(t, 3, dec.Table.Len())
	require.Equal(t, []any{int64(1), "ann", 9.5}, dec.Table.Rows[0])
	require.Equal(t, []any{int64(2), "bob", nil}, dec.Table.Rows[1])
	require.Equal(t, []any{int64(3), "cy", int64(7)}, dec.Table.Rows[2])
}

func TestDecode_NamedSheet(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("Second")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Second", "A1", &[]interface{}{"k", "v"}))
	require.NoError(t, f.SetSheetRow("Second", "A2", &[]interface{}{"a", 1}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	dec, err := Decode(bytes.NewReader(buf.Bytes()), "Second")
	require.NoError(t, err)
	require.Equal(t, []string{"k", "v"}, dec.Table.Columns)
	require.Equal(t, []any{"a", int64(1)}, dec.Table.Rows[0])

	_, err = Decode(bytes.NewReader(buf.Bytes()), "Nope")
	require.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestDecode_CorruptBytes(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("definitely not a zip")), "")
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
}

func TestDecode_FormattedCellsKeepStoredValues(t *testing.T) {
	f := excelize.NewFile()
	sheet := DefaultSheet
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"fixed", "pct", "day", "custom", "flag", "code"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1234.5678, 0.125, 45000, 45001, true, "007"}))

	style := func(s *excelize.Style) int {
		id, err := f.NewStyle(s)
		require.NoError(t, err)
		return id
	}
	layout := "yyyy-mm-dd"
	require.NoError(t, f.SetCellStyle(sheet, "A2", "A2", style(&excelize.Style{NumFmt: 2})))
	require.NoError(t, f.SetCellStyle(sheet, "B2", "B2", style(&excelize.Style{NumFmt: 9})))
	require.NoError(t, f.SetCellStyle(sheet, "C2", "C2", style(&excelize.Style{NumFmt: 14})))
	require.NoError(t, f.SetCellStyle(sheet, "D2", "D2", style(&excelize.Style{CustomNumFmt: &layout})))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	dec, err := Decode(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	row := dec.Table.Rows[0]
	require.Equal(t, 1234.5678, row[0])
	require.Equal(t, 0.125, row[1])

	day, ok := row[2].(time.Time)
	require.True(t, ok, "%T", row[2])
	require.True(t, day.Equal(time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)), day.String())
	next, ok := row[3].(time.Time)
	require.True(t, ok, "%T", row[3])
	require.True(t, next.Equal(time.Date(2023, 3, 16, 0, 0, 0, 0, time.UTC)), next.String())

	require.Equal(t, true, row[4])
	require.Equal(t, "007", row[5])
}

func TestEncodeDecode_DatesAndBools(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	src, err := table.New([]string{"when", "ok"}, [][]any{{day, true}, {nil, false}})
	require.NoError(t, err)
	data, err := EncodeBytes(src, "")
	require.NoError(t, err)

	dec, err := Decode(bytes.NewReader(data), "")
	require.NoError(t, err)
	got, ok := dec.Table.Rows[0][0].(time.Time)
	require.True(t, ok, "%T", dec.Table.Rows[0][0])
	require.True(t, got.Equal(day), got.String())
	require.Equal(t, true, dec.Table.Rows[0][1])
	require.Equal(t, []any{nil, false}, dec.Table.Rows[1])
}

func TestIsDateCode(t *testing.T) {
	for code, want := range map[string]bool{
		"yyyy-mm-dd":        true,
		"h:mm AM/PM":        true,
		"[h]:mm:ss":         true,
		"0.00":              false,
		"#,##0 \"units\"": false,
		"[$€-407]#,##0.00":  false,
		"0.00E+00":          false,
	} {
		require.Equal(t, want, isDateCode(code), code)
	}
}

func TestFromRows_PadsAndNamesColumns(t *testing.T) {
	tbl, err := FromRows([][]string{
		{"a", "", "a"},
		{"1"},
		{"x", "y", "z", "extra"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "column_1", "column_2", "column_3"}, tbl.Columns)
	require.Equal(t, []any{int64(1), nil, nil, nil}, tbl.Rows[0])
	require.Equal(t, []any{"x", "y", "z", "extra"}, tbl.Rows[1])

	empty, err := FromRows(nil)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Width())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.xlsx")
	require.NoError(t, WriteFile(people(t), "", out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	v, err := f.GetCellValue(DefaultSheet, "B2")
	require.NoError(t, err)
	require.Equal(t, "ann", v)

	err = WriteFile(people(t), "", filepath.Join(dir, "out.csv"))
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
}
