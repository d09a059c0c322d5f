package ops

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vinodismyname/sheetagent/internal/history"
	"github.com/vinodismyname/sheetagent/internal/store"
	"github.com/vinodismyname/sheetagent/internal/table"
	"github.com/vinodismyname/sheetagent/internal/workbooks"
	"github.com/vinodismyname/sheetagent/pkg/mcperr"
)

type ListTablesResult struct {
	Success     bool     `json:"success"`
	Tables      []string `json:"tables"`
	ActiveTable string   `json:"active_table"`
	Count       int      `json:"count"`
}

type TableInfoResult struct {
	Success bool        `json:"success"`
	Info    *store.Info `json:"info"`
}

type LoadTableResult struct {
	Success   bool     `json:"success"`
	TableName string   `json:"table_name"`
	Rows      int      `json:"rows"`
	Columns   []string `json:"columns"`
	Active    bool     `json:"active"`
}

type ActiveTableResult struct {
	Success     bool   `json:"success"`
	ActiveTable string `json:"active_table"`
}

type RemoveTableResult struct {
	Success     bool   `json:"success"`
	TableName   string `json:"table_name"`
	ActiveTable string `json:"active_table"`
}

type SaveResult struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

type UndoResult struct {
	Success   bool   `json:"success"`
	TableName string `json:"table_name"`
	Rows      int    `json:"rows"`
	CanUndo   bool   `json:"can_undo"`
	CanRedo   bool   `json:"can_redo"`
}

type HistoryResult struct {
	Success bool             `json:"success"`
	Records []history.Record `json:"records"`
	Total   int              `json:"total"`
	CanUndo bool             `json:"can_undo"`
	CanRedo bool             `json:"can_redo"`
}

type DiffResult struct {
	Success bool `json:"success"`
	store.DiffResult
}

type DetectHeaderResult struct {
	Success bool `json:"success"`
	store.HeaderPreview
}

type SetHeaderRowResult struct {
	Success    bool     `json:"success"`
	NewColumns []string `json:"new_columns"`
	Rows       int      `json:"rows"`
	Message    string   `json:"message"`
}

func (c *Catalog) listTables(cl *call) (any, error) {
	names := c.store.Names()
	cl.summary = fmt.Sprintf("%d tables", len(names))
	return ListTablesResult{Success: true, Tables: names, ActiveTable: c.store.ActiveName(), Count: len(names)}, nil
}

func (c *Catalog) tableInfo(cl *call, r GetTableInfoRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	info, err := c.store.Info(name)
	if err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("%d rows x %d columns", info.RowCount, len(info.Columns))
	return TableInfoResult{Success: true, Info: info}, nil
}

func (c *Catalog) loadTable(cl *call, r LoadTableRequest) (any, error) {
	if c.guard == nil {
		return nil, mcperr.Errorf(mcperr.PermissionDenied, "file access is disabled: no allowed directories configured")
	}
	path, err := c.guard.ValidateOpenPath(r.FilePath)
	if err != nil {
		return nil, err
	}
	name := r.TableName
	if name == "" {
		name = store.NameFromPath(path)
	}
	cl.table = name
	if !c.store.Has(name) && c.store.Full() {
		return nil, fmt.Errorf("%w: cannot load %q", store.ErrTableLimit, name)
	}

	cl.logged = true
	ok, err := c.store.LoadFile(path, name, r.Sheet)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.loadFailure(name, r)
	}
	t, _ := c.store.Get(name)
	return LoadTableResult{
		Success:   true,
		TableName: name,
		Rows:      t.Len(),
		Columns:   t.Columns,
		Active:    c.store.ActiveName() == name,
	}, nil
}

// loadFailure turns the error the store logged for a failed load into a
// coded error.
func (c *Catalog) loadFailure(name string, r LoadTableRequest) error {
	reason := "unknown error"
	if recs := c.store.History().Recent(1, name); len(recs) == 1 && recs[0].Error != "" {
		reason = recs[0].Error
	}
	if r.Sheet != "" && strings.Contains(reason, workbooks.ErrSheetNotFound.Error()) {
		return mcperr.Errorf(mcperr.InvalidSheet, "sheet %q not found in %s", r.Sheet, r.FilePath)
	}
	return mcperr.Errorf(mcperr.OpenFailed, "failed to load %s: %s", r.FilePath, reason)
}

func (c *Catalog) setActive(cl *call, r SetActiveTableRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	c.store.SetActive(name)
	cl.summary = "active table " + name
	return ActiveTableResult{Success: true, ActiveTable: name}, nil
}

func (c *Catalog) removeTable(cl *call, r RemoveTableRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	c.store.Remove(name)
	cl.summary = "removed " + name
	return RemoveTableResult{Success: true, TableName: name, ActiveTable: c.store.ActiveName()}, nil
}

func (c *Catalog) save(cl *call, r SaveRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	if c.guard == nil {
		return nil, mcperr.Errorf(mcperr.PermissionDenied, "file access is disabled: no allowed directories configured")
	}
	path, err := c.guard.ValidateSavePath(r.OutputPath)
	if err != nil {
		return nil, err
	}
	filename, err := c.store.SaveFile(name, path)
	if err != nil {
		return nil, mcperr.Errorf(mcperr.WriteFailed, "failed to write %s: %w", r.OutputPath, err)
	}
	cl.summary = "saved " + filename
	return SaveResult{Success: true, Filename: filename, Path: path}, nil
}

func (c *Catalog) undo(cl *call, tableName string) (any, error) {
	name, err := c.resolve(cl, tableName)
	if err != nil {
		return nil, err
	}
	if !c.store.Undo(name) {
		return nil, mcperr.Errorf(mcperr.UndoUnavailable, "nothing to undo for %q", name)
	}
	return c.undoResult(cl, name, "undo")
}

func (c *Catalog) redo(cl *call, tableName string) (any, error) {
	name, err := c.resolve(cl, tableName)
	if err != nil {
		return nil, err
	}
	if !c.store.Redo(name) {
		return nil, mcperr.Errorf(mcperr.RedoUnavailable, "nothing to redo for %q", name)
	}
	return c.undoResult(cl, name, "redo")
}

func (c *Catalog) undoResult(cl *call, name, verb string) (any, error) {
	t, _ := c.store.Get(name)
	cl.summary = fmt.Sprintf("%s: %d rows", verb, t.Len())
	return UndoResult{
		Success:   true,
		TableName: name,
		Rows:      t.Len(),
		CanUndo:   c.store.CanUndo(name),
		CanRedo:   c.store.CanRedo(name),
	}, nil
}

func (c *Catalog) history(cl *call, r HistoryRequest) (any, error) {
	log := c.store.History()
	out := HistoryResult{Success: true, Records: log.Recent(r.Limit, r.TableName), Total: log.Len()}
	name := r.TableName
	if name == "" {
		name = c.store.ActiveName()
	}
	if name != "" {
		cl.table = name
		out.CanUndo = c.store.CanUndo(name)
		out.CanRedo = c.store.CanRedo(name)
	}
	if out.Records == nil {
		out.Records = []history.Record{}
	}
	cl.summary = fmt.Sprintf("%d records", len(out.Records))
	return out, nil
}

func (c *Catalog) diff(cl *call, r DiffRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	context := r.Context
	if context == 0 {
		context = -1
	}
	res, err := c.store.Diff(name, context, c.opts.MaxDiffLines)
	if err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("+%d -%d", res.Added, res.Removed)
	return DiffResult{Success: true, DiffResult: *res}, nil
}

func (c *Catalog) detectHeader(cl *call, r DetectHeaderRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	rows := r.PreviewRows
	if rows == 0 {
		rows = c.opts.PreviewRows
	}
	preview, err := c.store.DetectHeader(name, rows)
	if err != nil {
		return nil, err
	}
	cl.summary = fmt.Sprintf("suggested header row %d", preview.SuggestedHeaderRow)
	return DetectHeaderResult{Success: true, HeaderPreview: *preview}, nil
}

func (c *Catalog) setHeaderRow(cl *call, r SetHeaderRowRequest) (any, error) {
	name, err := c.resolve(cl, r.TableName)
	if err != nil {
		return nil, err
	}
	cols, err := c.store.SetHeaderRow(name, r.HeaderRow)
	if err != nil {
		return nil, err
	}
	t, _ := c.store.Get(name)
	msg := fmt.Sprintf("row %d promoted to header; %d data rows remain", r.HeaderRow, t.Len())
	cl.summary = msg
	return SetHeaderRowResult{Success: true, NewColumns: cols, Rows: t.Len(), Message: msg}, nil
}

// mutate runs fn through the store's single mutation rule and reports the
// row count afterwards.
func (c *Catalog) mutate(name string, fn func(t *table.Table) error) (int, error) {
	if err := c.store.Mutate(name, fn); err != nil {
		return 0, err
	}
	t, ok := c.store.Get(name)
	if !ok {
		return 0, errors.New("ops: table vanished during mutation")
	}
	return t.Len(), nil
}
