package mcperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical error code used across tools.
type Code string

const (
	// Validation & Input
	Validation          Code = "VALIDATION"
	TableNotFound       Code = "TABLE_NOT_FOUND"
	ColumnNotFound      Code = "COLUMN_NOT_FOUND"
	InvalidReference    Code = "INVALID_REFERENCE"
	ShapeMismatch       Code = "SHAPE_MISMATCH"
	HeaderRowOutOfRange Code = "HEADER_ROW_OUT_OF_RANGE"
	CursorInvalid       Code = "CURSOR_INVALID"
	InvalidSheet        Code = "INVALID_SHEET"
	FilterFailed        Code = "FILTER_FAILED"
	ComputationFailed   Code = "COMPUTATION_FAILED"
	UndoUnavailable     Code = "UNDO_UNAVAILABLE"
	RedoUnavailable     Code = "REDO_UNAVAILABLE"
	NoActiveTable       Code = "NO_ACTIVE_TABLE"

	// Resource & Limits
	BusyResource  Code = "BUSY_RESOURCE"
	Timeout       Code = "TIMEOUT"
	LimitExceeded Code = "LIMIT_EXCEEDED"

	// IO & Formats
	OpenFailed  Code = "OPEN_FAILED"
	WriteFailed Code = "WRITE_FAILED"

	// Integrity
	CorruptWorkbook   Code = "CORRUPT_WORKBOOK"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
	Internal          Code = "INTERNAL"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:          {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry"}},
	TableNotFound:       {Code: TableNotFound, Message: "table not found", Retryable: true, NextSteps: []string{"Call list_tables to verify table names"}},
	ColumnNotFound:      {Code: ColumnNotFound, Message: "column not found", Retryable: true, NextSteps: []string{"Call get_table_info to verify column names", "Check case and spacing"}},
	InvalidReference:    {Code: InvalidReference, Message: "invalid cell or range reference", Retryable: true, NextSteps: []string{"Use A1 or A1:C5 notation within the table bounds", "Row 1 is the first data row below the header"}},
	ShapeMismatch:       {Code: ShapeMismatch, Message: "values do not match the range shape", Retryable: true, NextSteps: []string{"Supply exactly one value per cell of the range"}},
	HeaderRowOutOfRange: {Code: HeaderRowOutOfRange, Message: "header row index out of range", Retryable: true, NextSteps: []string{"Call detect_header to preview candidate rows"}},
	CursorInvalid:       {Code: CursorInvalid, Message: "cursor is invalid for current context", Retryable: true, NextSteps: []string{"Restart pagination from the first page", "Avoid edits between pages"}},
	InvalidSheet:        {Code: InvalidSheet, Message: "sheet not found", Retryable: true, NextSteps: []string{"Check sheet name case and spacing", "Omit sheet to load the first one"}},
	FilterFailed:        {Code: FilterFailed, Message: "filter condition could not be evaluated", Retryable: true, NextSteps: []string{"Use comparisons like salary > 1000 or department == 'Tech'", "Quote column names containing spaces with backticks"}},
	ComputationFailed:   {Code: ComputationFailed, Message: "computation failed", Retryable: true, NextSteps: []string{"Verify the column holds numeric values", "Use count for text columns"}},
	UndoUnavailable:     {Code: UndoUnavailable, Message: "nothing to undo", Retryable: false, NextSteps: []string{"Call get_history to inspect recorded operations"}},
	RedoUnavailable:     {Code: RedoUnavailable, Message: "nothing to redo", Retryable: false, NextSteps: []string{"Redo is only possible directly after undo"}},
	NoActiveTable:       {Code: NoActiveTable, Message: "no table specified and no active table", Retryable: true, NextSteps: []string{"Load a table or pass table_name"}},

	BusyResource:  {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:       {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Narrow scope or increase timeout"}},
	LimitExceeded: {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Remove unused tables or narrow the request"}},

	OpenFailed:  {Code: OpenFailed, Message: "failed to open workbook", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	WriteFailed: {Code: WriteFailed, Message: "failed to write workbook", Retryable: false, NextSteps: []string{"Verify the output directory exists and is writable"}},

	CorruptWorkbook:   {Code: CorruptWorkbook, Message: "workbook appears corrupt or unreadable", Retryable: false, NextSteps: []string{"Open in Excel and re-save or repair", "Provide a clean copy"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported workbook format", Retryable: false, NextSteps: []string{"Convert to .xlsx and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},
	Internal:          {Code: Internal, Message: "internal error", Retryable: false, NextSteps: []string{"Retry once; report the operation if it persists"}},
}

// Lookup returns the catalog entry for code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// Error carries a canonical code alongside the underlying cause.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	if entry, ok := catalog[e.Code]; ok {
		return entry.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a coded error. A %w verb in format is preserved for errors.Is.
func Errorf(code Code, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Code: code, Msg: err.Error(), Err: errors.Unwrap(err)}
}

// CodeOf returns the code attached to err, or def when none is.
func CodeOf(err error, def Code) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return def
}

// Text renders "CODE: message" with inline guidance.
func Text(code Code, msg string) string { return normalize(code, msg) }

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// Parse splits a rendered "CODE: message" string, dropping any guidance tail.
func Parse(text string) (Code, string) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Validation, ""
	}
	t, _, _ = strings.Cut(t, " | nextSteps:")
	code, msg, _ := strings.Cut(t, ":")
	return Code(strings.TrimSpace(code)), strings.TrimSpace(msg)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(Parse(text)))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}
