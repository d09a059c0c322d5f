package ops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Tool names of the catalog entries.
const (
	ToolListTables        = "list_tables"
	ToolGetTableInfo      = "get_table_info"
	ToolLoadTable         = "load_table"
	ToolSetActiveTable    = "set_active_table"
	ToolRemoveTable       = "remove_table"
	ToolCalculate         = "calculate"
	ToolFilterData        = "filter_data"
	ToolSortData          = "sort_data"
	ToolGroupData         = "group_data"
	ToolMergeTables       = "merge_tables"
	ToolUpdateData        = "update_data"
	ToolFillNA            = "fill_na"
	ToolCopyColumn        = "copy_column"
	ToolColumnCalculation = "column_calculation"
	ToolInsertData        = "insert_data"
	ToolExtractData       = "extract_data"
	ToolDetectHeader      = "detect_header"
	ToolSetHeaderRow      = "set_header_row"
	ToolReadRange         = "read_range"
	ToolWriteRange        = "write_range"
	ToolPreviewTable      = "preview_table"
	ToolUndo              = "undo"
	ToolRedo              = "redo"
	ToolGetHistory        = "get_history"
	ToolDiffTable         = "diff_table"
	ToolSaveTable         = "save_table"
)

// Request is one validated catalog invocation.
type Request interface {
	Tool() string
}

type ListTablesRequest struct{}

type GetTableInfoRequest struct {
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type LoadTableRequest struct {
	FilePath  string `json:"file_path" validate:"required,filepath_ext" jsonschema_description:"Path to an .xlsx workbook inside an allowed directory"`
	TableName string `json:"table_name,omitempty" jsonschema_description:"Name for the new table; defaults to the file name without extension"`
	Sheet     string `json:"sheet,omitempty" jsonschema_description:"Sheet to read; defaults to the first sheet"`
}

type SetActiveTableRequest struct {
	TableName string `json:"table_name" validate:"required" jsonschema_description:"Table to make active"`
}

type RemoveTableRequest struct {
	TableName string `json:"table_name" validate:"required" jsonschema_description:"Table to remove"`
}

type CalculateRequest struct {
	Operation string `json:"operation" validate:"required,oneof=sum mean count max min median std var" jsonschema_description:"One of sum, mean, count, max, min, median, std, var"`
	Column    string `json:"column" validate:"required" jsonschema_description:"Column to reduce"`
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
	Condition string `json:"condition,omitempty" jsonschema_description:"Optional filter condition applied before reducing, e.g. department == 'Tech'"`
}

type FilterRequest struct {
	Condition string `json:"condition" validate:"required" jsonschema_description:"Boolean condition, e.g. salary > 1000 and department == 'Tech'; quote names with spaces in backticks"`
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
	SaveAs    string `json:"save_as,omitempty" jsonschema_description:"Optional name of a new table receiving the matching rows"`
}

type SortRequest struct {
	Column    string `json:"column" validate:"required" jsonschema_description:"Column to sort by"`
	Order     string `json:"order,omitempty" validate:"omitempty,oneof=asc desc" jsonschema_description:"asc (default) or desc; missing values always sort last"`
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type GroupRequest struct {
	Column    string `json:"column" validate:"required" jsonschema_description:"Column to group by"`
	AggFunc   string `json:"agg_func,omitempty" validate:"omitempty,oneof=sum mean count max min" jsonschema_description:"sum (default), mean, count, max or min"`
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type MergeRequest struct {
	Tables []string `json:"tables" validate:"required,min=2,dive,required" jsonschema_description:"Two or more tables joined left to right"`
	Key    string   `json:"key" validate:"required" jsonschema_description:"Key column present in every table"`
	How    string   `json:"how,omitempty" validate:"omitempty,oneof=inner outer left right" jsonschema_description:"inner (default), outer, left or right"`
}

type UpdateRequest struct {
	TargetTable  string `json:"target_table" validate:"required" jsonschema_description:"Table receiving the values"`
	SourceTable  string `json:"source_table" validate:"required" jsonschema_description:"Table supplying the values"`
	Key          string `json:"key" validate:"required" jsonschema_description:"Key column present in both tables"`
	UpdateColumn string `json:"update_column" validate:"required" jsonschema_description:"Column copied from source to target; created in the target when absent"`
}

type FillNARequest struct {
	TargetColumn string `json:"target_column" validate:"required" jsonschema_description:"Column whose missing values are filled"`
	SourceColumn string `json:"source_column,omitempty" jsonschema_description:"Column supplying same-row replacement values"`
	Value        any    `json:"value,omitempty" jsonschema_description:"Literal replacement; use instead of source_column"`
	TableName    string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type CopyColumnRequest struct {
	TargetColumn string `json:"target_column" validate:"required" jsonschema_description:"Existing column to overwrite"`
	SourceColumn string `json:"source_column" validate:"required" jsonschema_description:"Existing column to copy from"`
	TableName    string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type ColumnCalculationRequest struct {
	Operation    string `json:"operation" validate:"required,oneof=add subtract multiply divide" jsonschema_description:"add, subtract, multiply or divide"`
	Column1      string `json:"column1" validate:"required" jsonschema_description:"Left operand column"`
	Column2      string `json:"column2" validate:"required" jsonschema_description:"Right operand column"`
	TargetColumn string `json:"target_column" validate:"required" jsonschema_description:"Column receiving the result; created when absent"`
	TableName    string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type InsertRequest struct {
	TargetTable  string `json:"target_table" validate:"required" jsonschema_description:"Table to write into"`
	TargetCell   string `json:"target_cell,omitempty" validate:"omitempty,cellref" jsonschema_description:"Cell such as B3; row 1 is the first data row"`
	TargetColumn string `json:"target_column,omitempty" jsonschema_description:"Column to fill; created when absent"`
	Value        any    `json:"value,omitempty" jsonschema_description:"Scalar written to the cell or broadcast to the column"`
	Values       []any  `json:"values,omitempty" jsonschema_description:"One value per row for target_column"`
}

type ExtractRequest struct {
	Columns   []string `json:"columns" validate:"required,min=1,dive,required" jsonschema_description:"Columns to keep, in order"`
	Rows      string   `json:"rows,omitempty" validate:"omitempty,rowspec" jsonschema_description:"all (default) or start:end, zero-based and end-exclusive"`
	TableName string   `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
	SaveAs    string   `json:"save_as,omitempty" jsonschema_description:"Name of the new table; defaults to extracted_<table>"`
}

type DetectHeaderRequest struct {
	TableName   string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
	PreviewRows int    `json:"preview_rows,omitempty" validate:"omitempty,min=1,max=100" jsonschema_description:"Rows to preview (default 10)"`
}

type SetHeaderRowRequest struct {
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
	HeaderRow int    `json:"header_row" validate:"gte=0" jsonschema_description:"Zero-based data row to promote to the header"`
}

type ReadRangeRequest struct {
	Range     string `json:"range" validate:"required,rangeref" jsonschema_description:"Cell or range such as A1 or A1:C5; row 1 is the first data row"`
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type WriteRangeRequest struct {
	Range     string  `json:"range" validate:"required,rangeref" jsonschema_description:"Cell or range such as A1 or A1:C5"`
	Values    [][]any `json:"values" validate:"required,min=1" jsonschema_description:"Row-major block matching the range shape exactly"`
	TableName string  `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type PreviewRequest struct {
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
	Rows      int    `json:"rows,omitempty" validate:"omitempty,min=1,max=500" jsonschema_description:"Page size in rows"`
	Condition string `json:"condition,omitempty" jsonschema_description:"Optional filter condition"`
	Cursor    string `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"next_cursor from a previous page"`
}

type UndoRequest struct {
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type RedoRequest struct {
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

type HistoryRequest struct {
	TableName string `json:"table_name,omitempty" jsonschema_description:"Only records for this table"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1" jsonschema_description:"Newest records to return"`
}

type DiffRequest struct {
	TableName string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
	Context   int    `json:"context,omitempty" validate:"omitempty,min=0,max=20" jsonschema_description:"Unchanged rows shown around each change (default 2)"`
}

type SaveRequest struct {
	OutputPath string `json:"output_path" validate:"required,filepath_ext" jsonschema_description:"Destination .xlsx path inside an allowed directory"`
	TableName  string `json:"table_name,omitempty" jsonschema_description:"Table name; defaults to the active table"`
}

func (ListTablesRequest) Tool() string        { return ToolListTables }
func (GetTableInfoRequest) Tool() string      { return ToolGetTableInfo }
func (LoadTableRequest) Tool() string         { return ToolLoadTable }
func (SetActiveTableRequest) Tool() string    { return ToolSetActiveTable }
func (RemoveTableRequest) Tool() string       { return ToolRemoveTable }
func (CalculateRequest) Tool() string         { return ToolCalculate }
func (FilterRequest) Tool() string            { return ToolFilterData }
func (SortRequest) Tool() string              { return ToolSortData }
func (GroupRequest) Tool() string             { return ToolGroupData }
func (MergeRequest) Tool() string             { return ToolMergeTables }
func (UpdateRequest) Tool() string            { return ToolUpdateData }
func (FillNARequest) Tool() string            { return ToolFillNA }
func (CopyColumnRequest) Tool() string        { return ToolCopyColumn }
func (ColumnCalculationRequest) Tool() string { return ToolColumnCalculation }
func (InsertRequest) Tool() string            { return ToolInsertData }
func (ExtractRequest) Tool() string           { return ToolExtractData }
func (DetectHeaderRequest) Tool() string      { return ToolDetectHeader }
func (SetHeaderRowRequest) Tool() string      { return ToolSetHeaderRow }
func (ReadRangeRequest) Tool() string         { return ToolReadRange }
func (WriteRangeRequest) Tool() string        { return ToolWriteRange }
func (PreviewRequest) Tool() string           { return ToolPreviewTable }
func (UndoRequest) Tool() string              { return ToolUndo }
func (RedoRequest) Tool() string              { return ToolRedo }
func (HistoryRequest) Tool() string           { return ToolGetHistory }
func (DiffRequest) Tool() string              { return ToolDiffTable }
func (SaveRequest) Tool() string              { return ToolSaveTable }

var decoders = map[string]func(raw json.RawMessage) (Request, error){
	ToolListTables:        decode[ListTablesRequest],
	ToolGetTableInfo:      decode[GetTableInfoRequest],
	ToolLoadTable:         decode[LoadTableRequest],
	ToolSetActiveTable:    decode[SetActiveTableRequest],
	ToolRemoveTable:       decode[RemoveTableRequest],
	ToolCalculate:         decode[CalculateRequest],
	ToolFilterData:        decode[FilterRequest],
	ToolSortData:          decode[SortRequest],
	ToolGroupData:         decode[GroupRequest],
	ToolMergeTables:       decode[MergeRequest],
	ToolUpdateData:        decode[UpdateRequest],
	ToolFillNA:            decode[FillNARequest],
	ToolCopyColumn:        decode[CopyColumnRequest],
	ToolColumnCalculation: decode[ColumnCalculationRequest],
	ToolInsertData:        decode[InsertRequest],
	ToolExtractData:       decode[ExtractRequest],
	ToolDetectHeader:      decode[DetectHeaderRequest],
	ToolSetHeaderRow:      decode[SetHeaderRowRequest],
	ToolReadRange:         decode[ReadRangeRequest],
	ToolWriteRange:        decode[WriteRangeRequest],
	ToolPreviewTable:      decode[PreviewRequest],
	ToolUndo:              decode[UndoRequest],
	ToolRedo:              decode[RedoRequest],
	ToolGetHistory:        decode[HistoryRequest],
	ToolDiffTable:         decode[DiffRequest],
	ToolSaveTable:         decode[SaveRequest],
}

// mutating lists the tools that change table contents, derive new tables or
// write files. Loading and removing tables stays available in read-only mode.
var mutating = map[string]bool{
	ToolSortData:          true,
	ToolGroupData:         true,
	ToolMergeTables:       true,
	ToolUpdateData:        true,
	ToolFillNA:            true,
	ToolCopyColumn:        true,
	ToolColumnCalculation: true,
	ToolInsertData:        true,
	ToolExtractData:       true,
	ToolSetHeaderRow:      true,
	ToolWriteRange:        true,
	ToolUndo:              true,
	ToolRedo:              true,
	ToolSaveTable:         true,
}

// Mutating reports whether tool edits tables or writes files. filter_data
// only mutates when save_as is given and is not listed.
func Mutating(tool string) bool { return mutating[tool] }

// Tools lists every catalog tool name in sorted order.
func Tools() []string {
	out := make([]string, 0, len(decoders))
	for name := range decoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParseRequest decodes raw JSON arguments for tool into its typed request.
// Empty input is treated as an empty object.
func ParseRequest(tool string, raw json.RawMessage) (Request, error) {
	dec, ok := decoders[tool]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", ErrValidation, tool)
	}
	req, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s arguments: %v", ErrValidation, tool, err)
	}
	return req, nil
}

func decode[T Request](raw json.RawMessage) (Request, error) {
	var v T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, err
	}
	return v, nil
}
