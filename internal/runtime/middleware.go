package runtime

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/sheetagent/pkg/mcperr"
)

// Middleware runs every MCP tool call through a Controller: calls queue for
// a request slot (one by default, so the table store sees a single writer)
// and each call is bounded by the operation timeout.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

// ToolMiddleware implements mcp-go's tool handler middleware interface.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var (
			res    *mcp.CallToolResult
			resErr error
		)
		err := m.ctrl.Do(ctx, func(callCtx context.Context) error {
			res, resErr = next(callCtx, req)
			if resErr == nil && res == nil && callCtx.Err() != nil {
				return callCtx.Err()
			}
			return nil
		})
		switch {
		case errors.Is(err, ErrBusy):
			return mcperr.Wrapf(mcperr.BusyResource, "concurrent request limit reached (max=%d); retry shortly", m.ctrl.limits.MaxConcurrentRequests), nil
		case errors.Is(err, context.DeadlineExceeded), errors.Is(resErr, context.DeadlineExceeded):
			return mcperr.New(mcperr.Timeout, ""), nil
		}
		return res, resErr
	}
}
