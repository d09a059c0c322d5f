package runtime

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func wrap(limits Limits, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return NewMiddleware(NewController(limits)).ToolMiddleware(next)
}

func TestToolMiddleware_PassesResultThrough(t *testing.T) {
	h := wrap(NewLimits(1, 1), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(req.Params.Name), nil
	})

	req := mcp.CallToolRequest{}
	req.Params.Name = "list_tables"
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "list_tables", res.Content[0].(mcp.TextContent).Text)
}

func TestToolMiddleware_SerializesStoreAccess(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.AcquireRequestTimeout = time.Second

	var inFlight, peak atomic.Int32
	h := wrap(limits, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return mcp.NewToolResultText("ok"), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h(context.Background(), mcp.CallToolRequest{})
			assert.NoError(t, err)
			assert.False(t, res.IsError)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), peak.Load())
}

func TestToolMiddleware_BusyWhenSaturated(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.AcquireRequestTimeout = 10 * time.Millisecond

	ctrl := NewController(limits)
	require.NoError(t, ctrl.AcquireRequest(context.Background()))
	defer ctrl.ReleaseRequest()

	next := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t.Fatal("handler must not run while saturated")
		return nil, nil
	}

	res, err := NewMiddleware(ctrl).ToolMiddleware(next)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	text := errorText(t, res)
	require.True(t, strings.HasPrefix(text, "BUSY_RESOURCE:"), text)
	require.Contains(t, text, "max=1")
}

func TestToolMiddleware_Timeout(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.OperationTimeout = 20 * time.Millisecond

	h := wrap(limits, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	res, err := h(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(errorText(t, res), "TIMEOUT:"))
}

func TestToolMiddleware_KeepsCodedErrorResults(t *testing.T) {
	h := wrap(NewLimits(1, 1), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("TABLE_NOT_FOUND: table \"x\" not found"), nil
	})

	res, err := h(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(errorText(t, res), "TABLE_NOT_FOUND:"))
}
