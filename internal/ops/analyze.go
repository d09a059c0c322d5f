package ops

import (
	"fmt"
	"math"
	"sort"

	"github.com/vinodismyname/sheetagent/internal/expr"
	"github.com/vinodismyname/sheetagent/internal/table"
	"github.com/vinodismyname/sheetagent/pkg/cellref"
	"github.com/vinodismyname/sheetagent/pkg/mcperr"
	"github.com/vinodismyname/sheetagent/pkg/pagination"
)

type CalculateResult struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation"`
	Column    string `json:"column"`
	Result    any    `json:"result"`
	// Values is the number of non-missing values reduced.
	Values int `json:"values"`
}

type FilterResult struct {
	Success     bool             `json:"success"`
	Rows        int              `json:"rows"`
	SampleData  []map[string]any `json:"sample_data"`
	ResultTable string           `json:"result_table,omitempty"`
}

type PreviewMeta struct {
	Total      int    `json:"total"`
	Offset     int    `json:"offset"`
	Returned   int    `json:"returned"`
	Version    uint64 `json:"version"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type PreviewResult struct {
	Success bool        `json:"success"`
	Table   string      `json:"table"`
	Columns []string    `json:"columns"`
	Rows    [][]any     `json:"rows"`
	Meta    PreviewMeta `json:"meta"`
}

type ReadRangeResult struct {
	Success bool    `json:"success"`
	Range   string  `json:"range"`
	Values  [][]any `json:"values"`
	Rows    int     `json:"rows"`
	Cols    int     `json:"cols"`
}

type WriteRangeResult struct {
	Success      bool   `json:"success"`
	Range        string `json:"range"`
	CellsWritten int    `json:"cells_written"`
}

// where narrows t to the rows matching condition. An empty condition keeps
// every row.
func where(t *table.Table, condition string) (*table.Table, error) {
	if condition == "" {
		return t, nil
	}
	e, err := expr.Compile(condition, t.Columns)
	if err != nil {
		return nil, err
	}
	return t.Filter(e.Match), nil
}

func (c *Catalog) calculate(cl *call, r CalculateRequest) (any, error) {
	_, t, err := c.load(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	if _, err := t.MustColumn(r.Column); err != nil {
		return nil, err
	}
	if t, err = where(t, r.Condition); err != nil {
		return nil, err
	}
	col, _ := t.Column(r.Column)
	vals := make([]any, 0, len(col))
	for _, v := range col {
		if !table.IsMissing(v) {
			vals = append(vals, v)
		}
	}
	res, err := reduce(r.Operation, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: %s of %q: %v", ErrComputation, r.Operation, r.Column, err)
	}
	cl.summary = fmt.Sprintf("%s(%s) = %s", r.Operation, r.Column, table.Format(res))
	return CalculateResult{
		Success:   true,
		Operation: r.Operation,
		Column:    r.Column,
		Result:    table.JSONValue(res),
		Values:    len(vals),
	}, nil
}

// reduce applies op to non-missing values. max and min order any values;
// every other reduction needs numbers.
func reduce(op string, vals []any) (any, error) {
	switch op {
	case "count":
		return int64(len(vals)), nil
	case "max", "min":
		if len(vals) == 0 {
			return nil, nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			cmp := table.Compare(v, best)
			if (op == "max" && cmp > 0) || (op == "min" && cmp < 0) {
				best = v
			}
		}
		return best, nil
	}

	nums := make([]float64, len(vals))
	allInts := len(vals) > 0
	for i, v := range vals {
		f, ok := table.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("non-numeric value %q", table.Format(v))
		}
		if _, isInt := v.(int64); !isInt {
			allInts = false
		}
		nums[i] = f
	}

	switch op {
	case "sum":
		if allInts {
			if s, ok := sumInts(vals); ok {
				return s, nil
			}
		}
		return sum(nums), nil
	case "mean":
		if len(nums) == 0 {
			return nil, nil
		}
		return sum(nums) / float64(len(nums)), nil
	case "median":
		if len(nums) == 0 {
			return nil, nil
		}
		sort.Float64s(nums)
		mid := len(nums) / 2
		if len(nums)%2 == 1 {
			return nums[mid], nil
		}
		return (nums[mid-1] + nums[mid]) / 2, nil
	case "var", "std":
		// Sample statistics; undefined below two values.
		if len(nums) < 2 {
			return nil, nil
		}
		mean := sum(nums) / float64(len(nums))
		var ss float64
		for _, f := range nums {
			ss += (f - mean) * (f - mean)
		}
		variance := ss / float64(len(nums)-1)
		if op == "std" {
			return math.Sqrt(variance), nil
		}
		return variance, nil
	}
	return nil, fmt.Errorf("unsupported operation %q", op)
}

func sum(nums []float64) float64 {
	var s float64
	for _, f := range nums {
		s += f
	}
	return s
}

func (c *Catalog) filter(cl *call, r FilterRequest) (any, error) {
	_, t, err := c.load(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	matched, err := where(t, r.Condition)
	if err != nil {
		return nil, err
	}
	out := FilterResult{Success: true, Rows: matched.Len(), SampleData: make([]map[string]any, 0, c.opts.SampleRows)}
	for _, row := range matched.Rows[:min(c.opts.SampleRows, matched.Len())] {
		out.SampleData = append(out.SampleData, matched.RowMap(row))
	}
	if r.SaveAs != "" {
		if err := c.store.Put(r.SaveAs, matched); err != nil {
			return nil, err
		}
		out.ResultTable = r.SaveAs
	}
	cl.summary = fmt.Sprintf("%d rows match", out.Rows)
	return out, nil
}

func (c *Catalog) preview(cl *call, r PreviewRequest) (any, error) {
	name, t, err := c.load(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	version, _ := c.store.Version(name)
	ph := pagination.PredicateHash(r.Condition)

	offset, size := 0, r.Rows
	if r.Cursor != "" {
		cur, err := pagination.DecodeCursor(r.Cursor)
		if err != nil {
			return nil, mcperr.Errorf(mcperr.CursorInvalid, "%w", err)
		}
		if err := cur.Check(name, version, ph); err != nil {
			return nil, mcperr.Errorf(mcperr.CursorInvalid, "%w", err)
		}
		offset = cur.Off
		if size == 0 {
			size = cur.Ps
		}
	}
	if size == 0 {
		size = c.opts.PreviewRows
	}
	if t, err = where(t, r.Condition); err != nil {
		return nil, err
	}

	start := min(offset, t.Len())
	end := min(start+size, t.Len())
	rows := make([][]any, 0, end-start)
	for _, row := range t.Rows[start:end] {
		rows = append(rows, table.JSONRow(row))
	}
	meta := PreviewMeta{Total: t.Len(), Offset: start, Returned: len(rows), Version: version}
	if end < t.Len() {
		next, err := pagination.EncodeCursor(pagination.Cursor{
			T:   name,
			Tv:  version,
			Off: pagination.NextOffset(start, len(rows)),
			Ps:  size,
			Ph:  ph,
		})
		if err != nil {
			return nil, err
		}
		meta.NextCursor = next
	}
	cl.summary = fmt.Sprintf("rows %d-%d of %d", start, end, t.Len())
	return PreviewResult{Success: true, Table: name, Columns: t.Columns, Rows: rows, Meta: meta}, nil
}

// checkCells rejects blocks larger than the per-operation cell budget.
func (c *Catalog) checkCells(n int) error {
	if n > c.opts.MaxCells {
		return mcperr.Errorf(mcperr.LimitExceeded, "%d cells exceed the limit of %d per operation", n, c.opts.MaxCells)
	}
	return nil
}

func (c *Catalog) readRange(cl *call, r ReadRangeRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	if area, err := cellref.ParseArea(r.Range); err == nil {
		if err := c.checkCells(area.Rows() * area.Cols()); err != nil {
			return nil, err
		}
	}
	block, err := c.store.Range(name, r.Range)
	if err != nil {
		return nil, err
	}
	out := ReadRangeResult{Success: true, Range: r.Range, Values: make([][]any, len(block)), Rows: len(block)}
	for i, row := range block {
		out.Values[i] = table.JSONRow(row)
	}
	if len(block) > 0 {
		out.Cols = len(block[0])
	}
	cl.summary = fmt.Sprintf("%d x %d cells", out.Rows, out.Cols)
	return out, nil
}

func (c *Catalog) writeRange(cl *call, r WriteRangeRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	n := 0
	values := make([][]any, len(r.Values))
	for i, row := range r.Values {
		n += len(row)
		values[i] = make([]any, len(row))
		for j, v := range row {
			values[i][j] = table.FromJSON(v)
		}
	}
	if err := c.checkCells(n); err != nil {
		return nil, err
	}
	if err := c.store.WriteRange(name, r.Range, values); err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("%d cells written to %s", n, r.Range)
	return WriteRangeResult{Success: true, Range: r.Range, CellsWritten: n}, nil
}

// sumInts adds int64 values, reporting false when the total overflows.
func sumInts(vals []any) (int64, bool) {
	var s int64
	for _, v := range vals {
		n := v.(int64)
		if (n > 0 && s > math.MaxInt64-n) || (n < 0 && s < math.MinInt64-n) {
			return 0, false
		}
		s += n
	}
	return s, true
}
