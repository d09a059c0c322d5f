package mcperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestErrorfKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Errorf(WriteFailed, "save out.xlsx: %w", cause)

	require.Equal(t, "save out.xlsx: disk full", err.Error())
	require.ErrorIs(t, err, cause)
	require.Equal(t, WriteFailed, CodeOf(fmt.Errorf("outer: %w", err), Internal))
	require.Equal(t, Internal, CodeOf(cause, Internal))
}

func TestErrorFallsBackToCatalogMessage(t *testing.T) {
	require.Equal(t, "nothing to undo", (&Error{Code: UndoUnavailable}).Error())
	require.Equal(t, "SOMETHING_ELSE", (&Error{Code: "SOMETHING_ELSE"}).Error())
}

func TestNewIncludesGuidance(t *testing.T) {
	text := resultText(t, New(ColumnNotFound, "column \"x\" not found"))
	require.True(t, strings.HasPrefix(text, "COLUMN_NOT_FOUND: column \"x\" not found | nextSteps: "))
	require.Contains(t, text, "get_table_info")

	text = resultText(t, New(Timeout, ""))
	require.True(t, strings.HasPrefix(text, "TIMEOUT: operation exceeded configured time limit"))
}

func TestParse(t *testing.T) {
	code, msg := Parse(Text(TableNotFound, "table \"x\" not found"))
	require.Equal(t, TableNotFound, code)
	require.Equal(t, "table \"x\" not found", msg)

	code, msg = Parse("  ")
	require.Equal(t, Validation, code)
	require.Empty(t, msg)

	code, msg = Parse("CUSTOM")
	require.Equal(t, Code("CUSTOM"), code)
	require.Empty(t, msg)
}

func TestFromTextRoundTrip(t *testing.T) {
	text := resultText(t, FromText("INVALID_SHEET: sheet \"Q3\" not found"))
	require.Equal(t, Text(InvalidSheet, "sheet \"Q3\" not found"), text)
	require.Equal(t, text, resultText(t, FromText(text)))
}

func TestCatalogComplete(t *testing.T) {
	for _, code := range []Code{
		Validation, TableNotFound, ColumnNotFound, InvalidReference, ShapeMismatch,
		HeaderRowOutOfRange, CursorInvalid, InvalidSheet, FilterFailed, ComputationFailed,
		UndoUnavailable, RedoUnavailable, NoActiveTable, BusyResource, Timeout,
		LimitExceeded, OpenFailed, WriteFailed, CorruptWorkbook, UnsupportedFormat,
		PermissionDenied, Internal,
	} {
		e, ok := Lookup(code)
		require.True(t, ok, code)
		require.Equal(t, code, e.Code)
		require.NotEmpty(t, e.Message, code)
		require.NotEmpty(t, e.NextSteps, code)
	}
}

func TestWrapf(t *testing.T) {
	text := resultText(t, Wrapf(LimitExceeded, "%d cells exceed %d", 10, 4))
	require.True(t, strings.HasPrefix(text, "LIMIT_EXCEEDED: 10 cells exceed 4 | nextSteps:"))
}
