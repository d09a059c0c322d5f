// Package table defines the in-memory tabular data model shared by the store
// and the operation catalog: ordered unique columns, rectangular rows and a
// small set of scalar cell values.
package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrColumnNotFound is returned when a referenced column does not exist.
	ErrColumnNotFound = errors.New("table: column not found")
	// ErrDuplicateColumn is returned when column names are not unique.
	ErrDuplicateColumn = errors.New("table: duplicate column")
	// ErrRaggedRow is returned when a row width differs from the header.
	ErrRaggedRow = errors.New("table: row width does not match columns")
)

// Table is a rectangular grid of values under ordered, unique column names.
// Every row has exactly len(Columns) cells. HeaderRow is the source sheet row
// the column names were taken from.
type Table struct {
	Columns   []string
	Rows      [][]any
	HeaderRow int
}

// New builds a table, normalizing every value. Rows must match the header
// width.
func New(columns []string, rows [][]any) (*Table, error) {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		seen[c] = struct{}{}
	}
	t := &Table{Columns: append([]string(nil), columns...), Rows: make([][]any, len(rows))}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrRaggedRow, i, len(r), len(columns))
		}
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = Normalize(v)
		}
		t.Rows[i] = row
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Columns) }

// Clone returns a deep copy. Cell values are immutable scalars, so copying the
// row slices is sufficient.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns:   append([]string(nil), t.Columns...),
		Rows:      make([][]any, len(t.Rows)),
		HeaderRow: t.HeaderRow,
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Validate checks the rectangular and unique-column invariants.
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		seen[c] = struct{}{}
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrRaggedRow, i, len(r), len(t.Columns))
		}
	}
	return nil
}

// ColumnIndex returns the position of a column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// MustColumn resolves a column name or returns ErrColumnNotFound.
func (t *Table) MustColumn(name string) (int, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return -1, fmt.Errorf("%w: %q (available: %s)", ErrColumnNotFound, name, strings.Join(t.Columns, ", "))
	}
	return idx, nil
}

// Column returns a copy of the values of one column.
func (t *Table) Column(name string) ([]any, error) {
	idx, err := t.MustColumn(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// EnsureColumn returns the index of name, appending an empty column when it
// does not exist yet.
func (t *Table) EnsureColumn(name string) int {
	if idx, ok := t.ColumnIndex(name); ok {
		return idx
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], nil)
	}
	return len(t.Columns) - 1
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(row []any) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, append([]any(nil), r...))
		}
	}
	return out
}

// Select returns a new table limited to the named columns, in the given order.
func (t *Table) Select(columns []string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, err := t.MustColumn(c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	out := &Table{Columns: append([]string(nil), columns...), Rows: make([][]any, len(t.Rows))}
	for i, r := range t.Rows {
		row := make([]any, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// Equal reports whether two tables have the same columns and cell values.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.Columns) != len(o.Columns) || len(t.Rows) != len(o.Rows) || t.HeaderRow != o.HeaderRow {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Rows {
		for j := range t.Rows[i] {
			if !Identical(t.Rows[i][j], o.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// MissingCounts returns the number of missing cells per column.
func (t *Table) MissingCounts() map[string]int {
	out := make(map[string]int, len(t.Columns))
	for j, c := range t.Columns {
		n := 0
		for _, r := range t.Rows {
			if IsMissing(r[j]) {
				n++
			}
		}
		out[c] = n
	}
	return out
}

// Render produces a stable tab-separated text form, one row per line with the
// header first. It backs table diffs.
func (t *Table) Render() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, "\t"))
	b.WriteByte('\n')
	cells := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for j, v := range r {
			cells[j] = Format(v)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}
