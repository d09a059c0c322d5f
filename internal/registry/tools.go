package registry

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/sheetagent/internal/ops"
	"github.com/vinodismyname/sheetagent/pkg/mcperr"
)

// ToolAdder is the part of *server.MCPServer used for registration.
type ToolAdder interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// RegisterCatalogTools registers one MCP tool per catalog entry. Handlers
// run the typed request through cat and return its result as structured
// content, or a coded error result.
func RegisterCatalogTools(s ToolAdder, reg *Registry, cat *ops.Catalog) {
	add[ops.ListTablesRequest, ops.ListTablesResult](s, reg, cat,
		"List loaded tables and the active table.")
	add[ops.GetTableInfoRequest, ops.TableInfoResult](s, reg, cat,
		"Describe a table: columns, inferred column types, row count, header row, missing values per column and undo state.")
	add[ops.LoadTableRequest, ops.LoadTableResult](s, reg, cat,
		"Load one sheet of an .xlsx workbook as a named table. The first sheet row becomes the header. The first loaded table becomes active. Errors: OPEN_FAILED, INVALID_SHEET, CORRUPT_WORKBOOK, PERMISSION_DENIED, LIMIT_EXCEEDED.")
	add[ops.SetActiveTableRequest, ops.ActiveTableResult](s, reg, cat,
		"Make a table the default target of tools called without table_name.")
	add[ops.RemoveTableRequest, ops.RemoveTableResult](s, reg, cat,
		"Remove a table with its undo history.")
	add[ops.CalculateRequest, ops.CalculateResult](s, reg, cat,
		"Reduce one column to a single value: sum, mean, count, max, min, median, std or var. Missing values are skipped; an optional condition restricts the rows first.")
	add[ops.FilterRequest, ops.FilterResult](s, reg, cat,
		"Count rows matching a condition and return up to 5 sample rows. The table is not changed; pass save_as to keep the matching rows as a new table. Conditions support ==, !=, <, <=, >, >=, and, or, not, in [...], .isnull(), .notnull() and .str.contains('x').")
	add[ops.SortRequest, ops.RowsResult](s, reg, cat,
		"Sort a table in place by one column. The sort is stable and missing values go last.")
	add[ops.GroupRequest, ops.TableResult](s, reg, cat,
		"Group rows by a column and aggregate every other column into a new table named grouped_<table>. sum and mean skip non-numeric columns.")
	add[ops.MergeRequest, ops.TableResult](s, reg, cat,
		"Join two or more tables left to right on a key column into a new table named merged_<t1>_and_<t2>. Shared column names get _x and _y suffixes.")
	add[ops.UpdateRequest, ops.UpdateResult](s, reg, cat,
		"Copy update_column from source_table into target_table for rows whose key matches. The column is created in the target when absent.")
	add[ops.FillNARequest, ops.FillNAResult](s, reg, cat,
		"Fill missing values of a column, either from another column of the same row or with a literal value. Literal fills also replace blank strings.")
	add[ops.CopyColumnRequest, ops.ColumnResult](s, reg, cat,
		"Overwrite every value of an existing column with another column.")
	add[ops.ColumnCalculationRequest, ops.ColumnResult](s, reg, cat,
		"Compute target_column = column1 <op> column2 row by row. Non-numeric values and division by zero produce missing values.")
	add[ops.InsertRequest, ops.InsertResult](s, reg, cat,
		"Write a value into one cell (target_cell) or fill a whole column (target_column) with a value or one value per row.")
	add[ops.ExtractRequest, ops.TableResult](s, reg, cat,
		"Copy selected columns and an optional row slice into a new table named extracted_<table>.")
	add[ops.DetectHeaderRequest, ops.DetectHeaderResult](s, reg, cat,
		"Preview the first rows of a table to find the real header row when the sheet has titles above it.")
	add[ops.SetHeaderRowRequest, ops.SetHeaderRowResult](s, reg, cat,
		"Promote a data row to the column header, dropping it and every row above it. Blank or repeated names get column_<i> placeholders.")
	add[ops.ReadRangeRequest, ops.ReadRangeResult](s, reg, cat,
		"Read a cell or rectangular range such as B2:D10. Row 1 is the first data row below the header.")
	add[ops.WriteRangeRequest, ops.WriteRangeResult](s, reg, cat,
		"Write a block of values into a range. The block must match the range shape exactly.")
	add[ops.PreviewRequest, ops.PreviewResult](s, reg, cat,
		"Page through table rows, optionally filtered by a condition. Pass meta.next_cursor back as cursor for the next page; edits invalidate cursors.")
	add[ops.UndoRequest, ops.UndoResult](s, reg, cat,
		"Restore a table to the state before its latest change.")
	add[ops.RedoRequest, ops.UndoResult](s, reg, cat,
		"Re-apply the change most recently undone on a table.")
	add[ops.HistoryRequest, ops.HistoryResult](s, reg, cat,
		"List recorded operations, oldest first, optionally for one table.")
	add[ops.DiffRequest, ops.DiffResult](s, reg, cat,
		"Show the rows changed by the latest change of a table as line hunks.")
	add[ops.SaveRequest, ops.SaveResult](s, reg, cat,
		"Write a table to an .xlsx file inside an allowed directory.")
}

func add[In ops.Request, Out any](s ToolAdder, reg *Registry, cat *ops.Catalog, description string) {
	var zero In
	tool := mcp.NewTool(
		zero.Tool(),
		mcp.WithDescription(description),
		mcp.WithInputSchema[In](),
		mcp.WithOutputSchema[Out](),
	)
	s.AddTool(tool, mcp.NewTypedToolHandler(func(ctx context.Context, _ mcp.CallToolRequest, in In) (*mcp.CallToolResult, error) {
		return Result(cat.Execute(ctx, in))
	}))
	reg.Register(tool)
}

// Result converts a catalog outcome into an MCP tool result. Failures become
// "CODE: message" error results with catalog guidance.
func Result(out any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcperr.New(mcperr.CodeOf(err, mcperr.Internal), err.Error()), nil
	}
	text, err := json.Marshal(out)
	if err != nil {
		return mcperr.New(mcperr.Internal, "encode result: "+err.Error()), nil
	}
	return mcp.NewToolResultStructured(out, string(text)), nil
}
