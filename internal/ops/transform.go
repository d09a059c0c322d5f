package ops

import (
	"fmt"
	"slices"

	"github.com/vinodismyname/sheetagent/internal/store"
	"github.com/vinodismyname/sheetagent/internal/table"
	"github.com/vinodismyname/sheetagent/pkg/cellref"
	"github.com/vinodismyname/sheetagent/pkg/mcperr"
	"github.com/vinodismyname/sheetagent/pkg/validation"
)

type RowsResult struct {
	Success bool   `json:"success"`
	Rows    int    `json:"rows"`
	Message string `json:"message,omitempty"`
}

type UpdateResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RowsUpdated int    `json:"rows_updated"`
}

type FillNAResult struct {
	Success         bool `json:"success"`
	NullCountBefore int  `json:"null_count_before"`
	FilledCount     int  `json:"filled_count"`
}

type ColumnResult struct {
	Success      bool   `json:"success"`
	TargetColumn string `json:"target_column"`
	RowsUpdated  int    `json:"rows_updated"`
}

type InsertResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TableResult struct {
	Success     bool     `json:"success"`
	ResultTable string   `json:"result_table"`
	Rows        int      `json:"rows"`
	Columns     []string `json:"columns,omitempty"`
}

func (c *Catalog) sort(cl *call, r SortRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	desc := r.Order == "desc"
	rows, err := c.mutate(name, func(t *table.Table) error {
		idx, err := t.MustColumn(r.Column)
		if err != nil {
			return err
		}
		slices.SortStableFunc(t.Rows, func(a, b []any) int {
			va, vb := a[idx], b[idx]
			switch {
			case va == nil && vb == nil:
				return 0
			case va == nil:
				return 1
			case vb == nil:
				return -1
			}
			if desc {
				return table.Compare(vb, va)
			}
			return table.Compare(va, vb)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	order := "asc"
	if desc {
		order = "desc"
	}
	cl.summary = fmt.Sprintf("sorted %d rows by %s %s", rows, r.Column, order)
	return RowsResult{Success: true, Rows: rows, Message: cl.summary}, nil
}

func (c *Catalog) update(cl *call, r UpdateRequest) (any, error) {
	target, err := c.resolve(cl, r.TargetTable)
	if err != nil {
		return nil, err
	}
	src, ok := c.store.Get(r.SourceTable)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrTableNotFound, r.SourceTable)
	}
	srcKey, err := src.MustColumn(r.Key)
	if err != nil {
		return nil, err
	}
	srcVal, err := src.MustColumn(r.UpdateColumn)
	if err != nil {
		return nil, err
	}
	// Later source rows win for repeated keys.
	lookup := make(map[string]any, src.Len())
	for _, row := range src.Rows {
		if k, ok := table.Key(row[srcKey]); ok {
			lookup[k] = row[srcVal]
		}
	}

	updated := 0
	_, err = c.mutate(target, func(t *table.Table) error {
		key, err := t.MustColumn(r.Key)
		if err != nil {
			return err
		}
		col := t.EnsureColumn(r.UpdateColumn)
		for _, row := range t.Rows {
			k, ok := table.Key(row[key])
			if !ok {
				continue
			}
			if v, found := lookup[k]; found {
				row[col] = v
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("updated %s in %d rows of %s from %s", r.UpdateColumn, updated, target, r.SourceTable)
	cl.summary = msg
	return UpdateResult{Success: true, Message: msg, RowsUpdated: updated}, nil
}

func (c *Catalog) fillNA(cl *call, r FillNARequest) (any, error) {
	hasSource, hasValue := r.SourceColumn != "", r.Value != nil
	if hasSource == hasValue {
		return nil, mcperr.Errorf(mcperr.Validation, "exactly one of source_column or value is required")
	}
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	literal := table.FromJSON(r.Value)

	var before, after int
	_, err = c.mutate(name, func(t *table.Table) error {
		target, err := t.MustColumn(r.TargetColumn)
		if err != nil {
			return err
		}
		source := -1
		if hasSource {
			if source, err = t.MustColumn(r.SourceColumn); err != nil {
				return err
			}
		}
		blank := table.IsMissing
		if !hasSource {
			blank = table.IsBlank
		}
		for _, row := range t.Rows {
			if !blank(row[target]) {
				continue
			}
			before++
			if hasSource {
				row[target] = row[source]
			} else {
				row[target] = literal
			}
			if blank(row[target]) {
				after++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	filled := before - after
	cl.summary = fmt.Sprintf("filled %d of %d missing values in %s", filled, before, r.TargetColumn)
	return FillNAResult{Success: true, NullCountBefore: before, FilledCount: filled}, nil
}

func (c *Catalog) copyColumn(cl *call, r CopyColumnRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	rows, err := c.mutate(name, func(t *table.Table) error {
		target, err := t.MustColumn(r.TargetColumn)
		if err != nil {
			return err
		}
		source, err := t.MustColumn(r.SourceColumn)
		if err != nil {
			return err
		}
		for _, row := range t.Rows {
			row[target] = row[source]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("copied %s into %s", r.SourceColumn, r.TargetColumn)
	return ColumnResult{Success: true, TargetColumn: r.TargetColumn, RowsUpdated: rows}, nil
}

// arithmetic returns the elementwise operator of a column calculation. A
// false result stores a missing value.
func arithmetic(op string) func(a, b float64) (float64, bool) {
	switch op {
	case "add":
		return func(a, b float64) (float64, bool) { return a + b, true }
	case "subtract":
		return func(a, b float64) (float64, bool) { return a - b, true }
	case "multiply":
		return func(a, b float64) (float64, bool) { return a * b, true }
	case "divide":
		return func(a, b float64) (float64, bool) {
			if b == 0 {
				return 0, false
			}
			return a / b, true
		}
	}
	return nil
}

func (c *Catalog) columnCalculation(cl *call, r ColumnCalculationRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	fn := arithmetic(r.Operation)
	if fn == nil {
		return nil, mcperr.Errorf(mcperr.Validation, "unsupported operation %q", r.Operation)
	}
	rows, err := c.mutate(name, func(t *table.Table) error {
		left, err := t.MustColumn(r.Column1)
		if err != nil {
			return err
		}
		right, err := t.MustColumn(r.Column2)
		if err != nil {
			return err
		}
		target := t.EnsureColumn(r.TargetColumn)
		for _, row := range t.Rows {
			a, okA := table.ToFloat(row[left])
			b, okB := table.ToFloat(row[right])
			if !okA || !okB {
				row[target] = nil
				continue
			}
			res, ok := fn(a, b)
			if !ok {
				row[target] = nil
				continue
			}
			row[target] = table.Normalize(res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("%s = %s %s %s", r.TargetColumn, r.Column1, r.Operation, r.Column2)
	return ColumnResult{Success: true, TargetColumn: r.TargetColumn, RowsUpdated: rows}, nil
}

func (c *Catalog) insert(cl *call, r InsertRequest) (any, error) {
	hasCell, hasColumn := r.TargetCell != "", r.TargetColumn != ""
	if hasCell == hasColumn {
		return nil, mcperr.Errorf(mcperr.Validation, "exactly one of target_cell or target_column is required")
	}
	name, err := c.resolve(cl, r.TargetTable)
	if err != nil {
		return nil, err
	}
	value := table.FromJSON(r.Value)

	if hasCell {
		if r.Values != nil {
			return nil, mcperr.Errorf(mcperr.Validation, "values can only be combined with target_column")
		}
		if err := c.store.WriteRange(name, r.TargetCell, [][]any{{value}}); err != nil {
			return nil, err
		}
		ref := r.TargetCell
		if cell, err := cellref.Parse(ref); err == nil {
			ref = cell.String()
		}
		msg := fmt.Sprintf("wrote %s to %s!%s", table.Format(value), name, ref)
		cl.summary = msg
		return InsertResult{Success: true, Message: msg}, nil
	}

	rows, err := c.mutate(name, func(t *table.Table) error {
		if r.Values != nil && len(r.Values) != t.Len() {
			return fmt.Errorf("%w: %d values for %d rows", store.ErrShapeMismatch, len(r.Values), t.Len())
		}
		col := t.EnsureColumn(r.TargetColumn)
		for i, row := range t.Rows {
			if r.Values != nil {
				row[col] = table.FromJSON(r.Values[i])
			} else {
				row[col] = value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("filled column %s of %s (%d rows)", r.TargetColumn, name, rows)
	cl.summary = msg
	return InsertResult{Success: true, Message: msg}, nil
}

func (c *Catalog) extract(cl *call, r ExtractRequest) (any, error) {
	name, t, err := c.load(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	start, end, err := validation.ParseRowSpec(r.Rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	out, err := t.Select(r.Columns)
	if err != nil {
		return nil, err
	}
	if end < 0 || end > out.Len() {
		end = out.Len()
	}
	start = min(start, end)
	out.Rows = out.Rows[start:end]

	dest := r.SaveAs
	if dest == "" {
		dest = "extracted_" + name
	}
	if err := c.store.Put(dest, out); err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("%s: %d rows x %d columns", dest, out.Len(), out.Width())
	return TableResult{Success: true, ResultTable: dest, Rows: out.Len(), Columns: out.Columns}, nil
}
