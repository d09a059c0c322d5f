package registry

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sheetagent/internal/ops"
	"github.com/vinodismyname/sheetagent/internal/store"
	"github.com/vinodismyname/sheetagent/internal/table"
)

type recorder struct {
	handlers map[string]server.ToolHandlerFunc
}

func (r *recorder) AddTool(tool mcp.Tool, h server.ToolHandlerFunc) {
	r.handlers[tool.Name] = h
}

func setup(t *testing.T) (*recorder, *Registry, *store.Store) {
	t.Helper()
	st := store.New(zerolog.Nop(), store.Options{})
	tbl, err := table.New([]string{"name", "score"}, [][]any{
		{"a", int64(3)},
		{"b", int64(1)},
		{"c", nil},
	})
	require.NoError(t, err)
	require.NoError(t, st.Put("scores", tbl))

	rec := &recorder{handlers: map[string]server.ToolHandlerFunc{}}
	reg := New()
	RegisterCatalogTools(rec, reg, ops.New(st, nil, zerolog.Nop(), ops.Options{}))
	return rec, reg, st
}

func call(t *testing.T, rec *recorder, tool string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h, ok := rec.handlers[tool]
	require.True(t, ok, "tool %s not registered", tool)
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRegisterCatalogTools_CoversCatalog(t *testing.T) {
	rec, reg, _ := setup(t)

	tools, err := reg.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, len(ops.Tools()))
	require.Len(t, rec.handlers, len(ops.Tools()))

	for _, name := range ops.Tools() {
		tool, ok := reg.Get(name)
		require.True(t, ok, name)
		require.NotEmpty(t, tool.Description, name)
	}
	for i := 1; i < len(tools); i++ {
		require.Less(t, tools[i-1].Name, tools[i].Name)
	}
}

func TestToolHandler_StructuredResult(t *testing.T) {
	rec, _, _ := setup(t)

	res := call(t, rec, ops.ToolCalculate, map[string]any{
		"table_name": "scores",
		"operation":  "sum",
		"column":     "score",
	})
	require.False(t, res.IsError, text(t, res))

	var out ops.CalculateResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	require.True(t, out.Success)
	require.Equal(t, float64(4), out.Result)
	require.Equal(t, 2, out.Values)
	require.NotNil(t, res.StructuredContent)
}

func TestToolHandler_MutationReachesStore(t *testing.T) {
	rec, _, st := setup(t)

	res := call(t, rec, ops.ToolSortData, map[string]any{
		"table_name": "scores",
		"column":     "score",
	})
	require.False(t, res.IsError, text(t, res))

	tbl, ok := st.Get("scores")
	require.True(t, ok)
	col, err := tbl.Column("name")
	require.NoError(t, err)
	require.Equal(t, []any{"b", "a", "c"}, col)
}

func TestToolHandler_CodedErrors(t *testing.T) {
	rec, _, _ := setup(t)

	cases := []struct {
		tool string
		args map[string]any
		code string
	}{
		{ops.ToolCalculate, map[string]any{"table_name": "nope", "operation": "sum", "column": "score"}, "TABLE_NOT_FOUND:"},
		{ops.ToolCalculate, map[string]any{"table_name": "scores", "operation": "sum", "column": "missing"}, "COLUMN_NOT_FOUND:"},
		{ops.ToolCalculate, map[string]any{"table_name": "scores", "operation": "sum", "column": "name"}, "COMPUTATION_FAILED:"},
		{ops.ToolFilterData, map[string]any{"table_name": "scores", "condition": "score >"}, "FILTER_FAILED:"},
		{ops.ToolUndo, map[string]any{"table_name": "scores"}, "UNDO_UNAVAILABLE:"},
		{ops.ToolSortData, map[string]any{"table_name": "scores"}, "VALIDATION:"},
	}
	for _, tc := range cases {
		t.Run(tc.tool+"_"+tc.code, func(t *testing.T) {
			res := call(t, rec, tc.tool, tc.args)
			require.True(t, res.IsError)
			msg := text(t, res)
			require.True(t, strings.HasPrefix(msg, tc.code), msg)
			require.Contains(t, msg, "nextSteps:")
		})
	}
}

func TestReadOnlyFilter(t *testing.T) {
	_, reg, _ := setup(t)
	tools, err := reg.Tools(context.Background())
	require.NoError(t, err)

	all := NewReadOnlyFilter(false).FilterTools(context.Background(), tools)
	require.Len(t, all, len(tools))

	visible := NewReadOnlyFilter(true).FilterTools(context.Background(), tools)
	require.Less(t, len(visible), len(tools))
	names := map[string]bool{}
	for _, tool := range visible {
		require.False(t, ops.Mutating(tool.Name), tool.Name)
		names[tool.Name] = true
	}
	require.True(t, names[ops.ToolCalculate])
	require.True(t, names[ops.ToolPreviewTable])
	require.False(t, names[ops.ToolSortData])
	require.False(t, names[ops.ToolSaveTable])
}

func TestModelContextSize(t *testing.T) {
	reg := New()
	require.Positive(t, reg.ModelContextSize("gpt-4"))
	require.Positive(t, reg.ModelContextSize("some-unknown-model"))
}
