package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sheetagent/pkg/mcperr"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestOnToolCall(t *testing.T) {
	var buf bytes.Buffer
	h := NewHooks(zerolog.New(&buf))

	h.OnToolCall("sort_data", 5*time.Millisecond, mcp.NewToolResultText("{}"))
	h.OnToolCall("calculate", time.Millisecond, mcperr.New(mcperr.ColumnNotFound, `column "x" not found`))

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)

	require.Equal(t, "info", lines[0]["level"])
	require.Equal(t, "sort_data", lines[0]["tool"])
	require.Equal(t, "tool call completed", lines[0]["message"])

	require.Equal(t, "warn", lines[1]["level"])
	require.Equal(t, "COLUMN_NOT_FOUND", lines[1]["code"])
	require.Equal(t, `column "x" not found`, lines[1]["error"])
}

func TestCallDuration(t *testing.T) {
	h := NewHooks(zerolog.Nop())
	now := time.Unix(0, 0)
	h.now = func() time.Time { return now }

	h.begin("req-1")
	now = now.Add(40 * time.Millisecond)
	require.Equal(t, 40*time.Millisecond, h.end("req-1"))
	require.Zero(t, h.end("req-1"))
	require.Zero(t, h.end(nil))
	require.Empty(t, h.started)
}

func TestServerHooksRegistered(t *testing.T) {
	var buf bytes.Buffer
	hooks := NewHooks(zerolog.New(&buf)).Server()

	require.Len(t, hooks.OnRegisterSession, 1)
	require.Len(t, hooks.OnUnregisterSession, 1)
	require.Len(t, hooks.OnBeforeCallTool, 1)
	require.Len(t, hooks.OnAfterCallTool, 1)
	require.Len(t, hooks.OnError, 1)

	hooks.OnError[0](context.Background(), "req-2", mcp.MethodToolsCall, nil, errors.New("boom"))
	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "error", lines[0]["level"])
	require.Equal(t, "boom", lines[0]["error"])
}
