package ops

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vinodismyname/sheetagent/internal/store"
	"github.com/vinodismyname/sheetagent/internal/table"
)

// checkEvery is the number of rows processed between context checks in
// grouping and joins.
const checkEvery = 1024

// checkCtx returns the context error on every checkEvery-th row.
func checkCtx(ctx context.Context, i int) error {
	if i%checkEvery == 0 {
		return ctx.Err()
	}
	return nil
}

type group struct {
	key  any
	rows [][]any
}

// groupRows buckets rows by the value in column idx. Missing keys are
// dropped; groups come back ordered by key.
func groupRows(ctx context.Context, t *table.Table, idx int) ([]*group, error) {
	byKey := map[string]*group{}
	var out []*group
	for i, row := range t.Rows {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		k, ok := table.Key(row[idx])
		if !ok {
			continue
		}
		g, seen := byKey[k]
		if !seen {
			g = &group{key: row[idx]}
			byKey[k] = g
			out = append(out, g)
		}
		g.rows = append(g.rows, row)
	}
	slices.SortStableFunc(out, func(a, b *group) int { return table.Compare(a.key, b.key) })
	return out, nil
}

// numericColumn reports whether every non-missing value of column j is a
// number.
func numericColumn(t *table.Table, j int) bool {
	for _, row := range t.Rows {
		if v := row[j]; v != nil && !table.IsNumber(v) {
			return false
		}
	}
	return true
}

func (c *Catalog) group(ctx context.Context, cl *call, r GroupRequest) (any, error) {
	name, t, err := c.load(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.MustColumn(r.Column)
	if err != nil {
		return nil, err
	}
	agg := r.AggFunc
	if agg == "" {
		agg = "sum"
	}

	// sum and mean only apply to numeric columns; others are left out.
	cols := []string{r.Column}
	var idxs []int
	for j, col := range t.Columns {
		if j == key {
			continue
		}
		if (agg == "sum" || agg == "mean") && !numericColumn(t, j) {
			continue
		}
		cols = append(cols, col)
		idxs = append(idxs, j)
	}

	groups, err := groupRows(ctx, t, key)
	if err != nil {
		return nil, err
	}
	out := &table.Table{Columns: cols, Rows: make([][]any, 0, len(groups))}
	for i, g := range groups {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		row := make([]any, 0, len(cols))
		row = append(row, g.key)
		for _, j := range idxs {
			vals := make([]any, 0, len(g.rows))
			for _, src := range g.rows {
				if v := src[j]; v != nil {
					vals = append(vals, v)
				}
			}
			v, err := reduce(agg, vals)
			if err != nil {
				return nil, fmt.Errorf("%w: %s of %q: %v", ErrComputation, agg, t.Columns[j], err)
			}
			row = append(row, table.Normalize(v))
		}
		out.Rows = append(out.Rows, row)
	}

	dest := "grouped_" + name
	if err := c.store.Put(dest, out); err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("%s: %d groups by %s (%s)", dest, out.Len(), r.Column, agg)
	return TableResult{Success: true, ResultTable: dest, Rows: out.Len(), Columns: out.Columns}, nil
}

func (c *Catalog) merge(ctx context.Context, cl *call, r MergeRequest) (any, error) {
	how := r.How
	if how == "" {
		how = "inner"
	}
	cl.table = r.Tables[0]
	var acc *table.Table
	for _, name := range r.Tables {
		t, ok := c.store.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", store.ErrTableNotFound, name)
		}
		if _, err := t.MustColumn(r.Key); err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		if acc == nil {
			acc = t
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		if acc, err = join(ctx, acc, t, r.Key, how); err != nil {
			return nil, err
		}
	}

	dest := "merged_" + strings.Join(r.Tables, "_and_")
	if err := c.store.Put(dest, acc); err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("%s: %d rows x %d columns (%s join on %s)", dest, acc.Len(), acc.Width(), how, r.Key)
	return TableResult{Success: true, ResultTable: dest, Rows: acc.Len(), Columns: acc.Columns}, nil
}

// join merges right into left on key. Output columns are the left columns
// followed by the right non-key columns; names present on both sides get _x
// and _y suffixes. Missing keys never match.
func join(ctx context.Context, left, right *table.Table, key, how string) (*table.Table, error) {
	lk, _ := left.ColumnIndex(key)
	rk, _ := right.ColumnIndex(key)

	shared := map[string]bool{}
	for _, c := range right.Columns {
		if c != key {
			if _, ok := left.ColumnIndex(c); ok {
				shared[c] = true
			}
		}
	}
	cols := make([]string, 0, left.Width()+right.Width()-1)
	for _, c := range left.Columns {
		if shared[c] {
			c += "_x"
		}
		cols = append(cols, c)
	}
	var rightCols []int
	for j, c := range right.Columns {
		if j == rk {
			continue
		}
		if shared[c] {
			c += "_y"
		}
		cols = append(cols, c)
		rightCols = append(rightCols, j)
	}

	combine := func(l, r []any) []any {
		row := make([]any, 0, len(cols))
		if l != nil {
			row = append(row, l...)
		} else {
			row = append(row, make([]any, left.Width())...)
			row[lk] = r[rk]
		}
		for _, j := range rightCols {
			if r != nil {
				row = append(row, r[j])
			} else {
				row = append(row, nil)
			}
		}
		return row
	}

	index := func(t *table.Table, idx int) map[string][]int {
		m := map[string][]int{}
		for i, row := range t.Rows {
			if k, ok := table.Key(row[idx]); ok {
				m[k] = append(m[k], i)
			}
		}
		return m
	}

	var rows [][]any
	switch how {
	case "right":
		byKey := index(left, lk)
		for n, r := range right.Rows {
			if err := checkCtx(ctx, n); err != nil {
				return nil, err
			}
			k, ok := table.Key(r[rk])
			matches := byKey[k]
			if !ok || len(matches) == 0 {
				rows = append(rows, combine(nil, r))
				continue
			}
			for _, i := range matches {
				rows = append(rows, combine(left.Rows[i], r))
			}
		}
	default:
		byKey := index(right, rk)
		matched := make([]bool, right.Len())
		for n, l := range left.Rows {
			if err := checkCtx(ctx, n); err != nil {
				return nil, err
			}
			k, ok := table.Key(l[lk])
			matches := byKey[k]
			if !ok || len(matches) == 0 {
				if how != "inner" {
					rows = append(rows, combine(l, nil))
				}
				continue
			}
			for _, i := range matches {
				matched[i] = true
				rows = append(rows, combine(l, right.Rows[i]))
			}
		}
		if how == "outer" {
			for i, r := range right.Rows {
				if !matched[i] {
					rows = append(rows, combine(nil, r))
				}
			}
			slices.SortStableFunc(rows, func(a, b []any) int {
				switch {
				case a[lk] == nil && b[lk] == nil:
					return 0
				case a[lk] == nil:
					return 1
				case b[lk] == nil:
					return -1
				}
				return table.Compare(a[lk], b[lk])
			})
		}
	}
	if rows == nil {
		rows = [][]any{}
	}
	return table.New(cols, rows)
}
