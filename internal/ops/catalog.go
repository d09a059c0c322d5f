// Package ops implements the operation catalog: the fixed set of named,
// validated data manipulation entry points callers invoke against a table
// store. Every entry returns a typed result or a coded error and is recorded
// in the store's operation log.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vinodismyname/sheetagent/config"
	"github.com/vinodismyname/sheetagent/internal/expr"
	"github.com/vinodismyname/sheetagent/internal/history"
	"github.com/vinodismyname/sheetagent/internal/runtime"
	"github.com/vinodismyname/sheetagent/internal/security"
	"github.com/vinodismyname/sheetagent/internal/store"
	"github.com/vinodismyname/sheetagent/internal/table"
	"github.com/vinodismyname/sheetagent/internal/workbooks"
	"github.com/vinodismyname/sheetagent/pkg/mcperr"
	"github.com/vinodismyname/sheetagent/pkg/pagination"
	"github.com/vinodismyname/sheetagent/pkg/validation"
)

var (
	// ErrValidation marks malformed requests.
	ErrValidation = errors.New("ops: invalid request")
	// ErrNoActiveTable is returned when a request omits the table and none is active.
	ErrNoActiveTable = errors.New("ops: no table specified and no active table")
	// ErrComputation marks reductions or arithmetic that cannot be applied.
	ErrComputation = errors.New("ops: computation failed")
	// ErrReadOnly rejects mutating tools in read-only mode.
	ErrReadOnly = errors.New("ops: read-only mode")
)

// PathGuard validates filesystem paths for load and save.
type PathGuard interface {
	ValidateOpenPath(path string) (string, error)
	ValidateSavePath(path string) (string, error)
}

// Options tune result sizes and guardrails. Zero values use config defaults.
type Options struct {
	SampleRows   int
	PreviewRows  int
	MaxCells     int
	MaxDiffLines int
	ReadOnly     bool
}

// Catalog dispatches requests against one store. Calls are serialized.
type Catalog struct {
	mu     sync.Mutex
	store  *store.Store
	guard  PathGuard
	logger zerolog.Logger
	opts   Options
}

// New returns a catalog over st. A nil guard disables load_table and
// save_table.
func New(st *store.Store, guard PathGuard, logger zerolog.Logger, opts Options) *Catalog {
	if opts.SampleRows <= 0 {
		opts.SampleRows = config.DefaultSampleRows
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = config.DefaultPreviewRowLimit
	}
	if opts.MaxCells <= 0 {
		opts.MaxCells = config.DefaultMaxCellsPerOp
	}
	if opts.MaxDiffLines <= 0 {
		opts.MaxDiffLines = config.DefaultMaxDiffLines
	}
	return &Catalog{
		store:  st,
		guard:  guard,
		logger: logger.With().Str("component", "ops").Logger(),
		opts:   opts,
	}
}

// Store exposes the underlying store.
func (c *Catalog) Store() *store.Store { return c.store }

// Failure is the uniform error result.
type Failure struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    mcperr.Code `json:"code"`
}

// call carries per-invocation bookkeeping for the operation log.
type call struct {
	op      history.OpType
	table   string
	desc    string
	summary string
	// logged is set when the store already recorded the operation.
	logged bool
}

// Execute validates and runs req. Errors are *mcperr.Error values carrying a
// canonical code; panics are recovered and reported as INTERNAL.
func (c *Catalog) Execute(ctx context.Context, req Request) (out any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl := &call{op: opFor(req), desc: req.Tool()}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("tool", req.Tool()).Interface("panic", r).Msg("operation panicked")
			out, err = nil, &mcperr.Error{Code: mcperr.Internal, Msg: fmt.Sprintf("%s: unexpected failure: %v", req.Tool(), r)}
		}
		if err != nil {
			err = classify(err)
		}
		c.record(cl, req, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg := validation.ValidateStruct(req); msg != "" {
		return nil, fromValidation(msg)
	}
	if c.opts.ReadOnly && (Mutating(req.Tool()) || isSaveAs(req)) {
		return nil, fmt.Errorf("%w: %s is disabled", ErrReadOnly, req.Tool())
	}
	return c.dispatch(ctx, cl, req)
}

// Run is Execute with failures folded into a Failure value, the shape batch
// callers print.
func (c *Catalog) Run(ctx context.Context, req Request) any {
	out, err := c.Execute(ctx, req)
	if err != nil {
		return FailureOf(err)
	}
	return out
}

// FailureOf converts an Execute or ParseRequest error into a Failure.
func FailureOf(err error) Failure {
	err = classify(err)
	return Failure{Success: false, Error: err.Error(), Code: mcperr.CodeOf(err, mcperr.Internal)}
}

func (c *Catalog) dispatch(ctx context.Context, cl *call, req Request) (any, error) {
	switch r := req.(type) {
	case ListTablesRequest:
		return c.listTables(cl)
	case GetTableInfoRequest:
		return c.tableInfo(cl, r)
	case LoadTableRequest:
		return c.loadTable(cl, r)
	case SetActiveTableRequest:
		return c.setActive(cl, r)
	case RemoveTableRequest:
		return c.removeTable(cl, r)
	case CalculateRequest:
		return c.calculate(cl, r)
	case FilterRequest:
		return c.filter(cl, r)
	case SortRequest:
		return c.sort(cl, r)
	case GroupRequest:
		return c.group(ctx, cl, r)
	case MergeRequest:
		return c.merge(ctx, cl, r)
	case UpdateRequest:
		return c.update(cl, r)
	case FillNARequest:
		return c.fillNA(cl, r)
	case CopyColumnRequest:
		return c.copyColumn(cl, r)
	case ColumnCalculationRequest:
		return c.columnCalculation(cl, r)
	case InsertRequest:
		return c.insert(cl, r)
	case ExtractRequest:
		return c.extract(cl, r)
	case DetectHeaderRequest:
		return c.detectHeader(cl, r)
	case SetHeaderRowRequest:
		return c.setHeaderRow(cl, r)
	case ReadRangeRequest:
		return c.readRange(cl, r)
	case WriteRangeRequest:
		return c.writeRange(cl, r)
	case PreviewRequest:
		return c.preview(cl, r)
	case UndoRequest:
		return c.undo(cl, r.TableName)
	case RedoRequest:
		return c.redo(cl, r.TableName)
	case HistoryRequest:
		return c.history(cl, r)
	case DiffRequest:
		return c.diff(cl, r)
	case SaveRequest:
		return c.save(cl, r)
	}
	return nil, fmt.Errorf("%w: unsupported request %T", ErrValidation, req)
}

func opFor(req Request) history.OpType {
	switch req.Tool() {
	case ToolLoadTable:
		return history.OpLoad
	case ToolSaveTable:
		return history.OpSave
	case ToolCalculate:
		return history.OpCalculate
	case ToolFilterData:
		return history.OpFilter
	case ToolSortData:
		return history.OpSort
	case ToolGroupData:
		return history.OpGroup
	case ToolExtractData:
		return history.OpExtract
	case ToolInsertData:
		return history.OpInsert
	case ToolMergeTables:
		return history.OpMerge
	case ToolUpdateData:
		return history.OpUpdate
	case ToolFillNA:
		return history.OpFill
	case ToolCopyColumn:
		return history.OpCopyColumn
	case ToolColumnCalculation:
		return history.OpColumnCalculation
	case ToolSetHeaderRow:
		return history.OpSetHeader
	case ToolDetectHeader:
		return history.OpDetectHeader
	case ToolUndo:
		return history.OpUndo
	case ToolRedo:
		return history.OpRedo
	case ToolRemoveTable:
		return history.OpRemove
	case ToolSetActiveTable:
		return history.OpSetActive
	case ToolWriteRange:
		return history.OpWrite
	}
	return history.OpRead
}

func isSaveAs(req Request) bool {
	switch r := req.(type) {
	case FilterRequest:
		return r.SaveAs != ""
	}
	return false
}

func (c *Catalog) record(cl *call, req Request, err error) {
	ev := c.logger.Debug()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Str("tool", req.Tool()).Str("table", cl.table).Msg("operation completed")
	if cl.logged {
		return
	}
	rec := history.Record{
		Type:          cl.op,
		Table:         cl.table,
		Description:   cl.desc,
		Parameters:    params(req),
		ResultSummary: cl.summary,
		Success:       err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.store.Record(rec)
}

// params flattens a request into the loosely typed map kept in the log.
func params(req Request) map[string]any {
	data, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

// resolve returns name, or the active table when name is empty, and checks
// that it exists.
func (c *Catalog) resolve(cl *call, name string) (string, error) {
	if name == "" {
		name = c.store.ActiveName()
		if name == "" {
			return "", ErrNoActiveTable
		}
	}
	cl.table = name
	if !c.store.Has(name) {
		return "", fmt.Errorf("%w: %q", store.ErrTableNotFound, name)
	}
	return name, nil
}

// load returns a working copy of a resolved table.
func (c *Catalog) load(cl *call, name string) (string, *table.Table, error) {
	name, err := c.resolve(cl, name)
	if err != nil {
		return "", nil, err
	}
	t, _ := c.store.Get(name)
	return name, t, nil
}

// fromValidation maps a "CODE: message" validation string to a coded error.
func fromValidation(msg string) error {
	code, text := mcperr.Validation, msg
	if head, rest, ok := strings.Cut(msg, ":"); ok && head != "" {
		code, text = mcperr.Code(head), strings.TrimSpace(rest)
	}
	return &mcperr.Error{Code: code, Msg: text, Err: ErrValidation}
}

// classify attaches a canonical code to err.
func classify(err error) error {
	var coded *mcperr.Error
	if errors.As(err, &coded) {
		return err
	}
	var fe *workbooks.FormatError
	code := mcperr.Internal
	switch {
	case errors.As(err, &fe):
		code = mcperr.CorruptWorkbook
	case errors.Is(err, ErrValidation), errors.Is(err, table.ErrDuplicateColumn):
		code = mcperr.Validation
	case errors.Is(err, ErrNoActiveTable):
		code = mcperr.NoActiveTable
	case errors.Is(err, ErrComputation):
		code = mcperr.ComputationFailed
	case errors.Is(err, ErrReadOnly), errors.Is(err, security.ErrNotAllowed):
		code = mcperr.PermissionDenied
	case errors.Is(err, store.ErrTableNotFound):
		code = mcperr.TableNotFound
	case errors.Is(err, table.ErrColumnNotFound), errors.Is(err, expr.ErrUnknownColumn):
		code = mcperr.ColumnNotFound
	case errors.Is(err, store.ErrInvalidReference):
		code = mcperr.InvalidReference
	case errors.Is(err, store.ErrShapeMismatch):
		code = mcperr.ShapeMismatch
	case errors.Is(err, store.ErrHeaderRow):
		code = mcperr.HeaderRowOutOfRange
	case errors.Is(err, store.ErrTableLimit):
		code = mcperr.LimitExceeded
	case errors.Is(err, store.ErrNoPrevious):
		code = mcperr.UndoUnavailable
	case errors.Is(err, expr.ErrSyntax):
		code = mcperr.FilterFailed
	case errors.Is(err, pagination.ErrStale):
		code = mcperr.CursorInvalid
	case errors.Is(err, workbooks.ErrSheetNotFound):
		code = mcperr.InvalidSheet
	case errors.Is(err, workbooks.ErrUnsupportedFormat), errors.Is(err, security.ErrUnsupportedExtension):
		code = mcperr.UnsupportedFormat
	case errors.Is(err, security.ErrNotFound):
		code = mcperr.OpenFailed
	case errors.Is(err, runtime.ErrBusy):
		code = mcperr.BusyResource
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = mcperr.Timeout
	}
	return &mcperr.Error{Code: code, Msg: err.Error(), Err: err}
}
