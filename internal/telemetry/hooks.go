// Package telemetry logs MCP server lifecycle and tool call events.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/sheetagent/pkg/mcperr"
)

// Hooks logs sessions and tool calls. Call durations are measured between
// the before and after callbacks keyed by request id.
type Hooks struct {
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	started map[any]time.Time
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger, now: time.Now, started: map[any]time.Time{}}
}

// Server returns mcp-go server hooks bound to h.
func (h *Hooks) Server() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.OnSessionStart(session.SessionID())
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.OnSessionEnd(session.SessionID())
	})
	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Debug().Int("tools", len(res.Tools)).Msg("list_tools served")
	})
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		h.begin(id)
	})
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		h.OnToolCall(req.Params.Name, h.end(id), res)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.end(id)
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})
	return hooks
}

func (h *Hooks) begin(id any) {
	if id == nil {
		return
	}
	h.mu.Lock()
	h.started[id] = h.now()
	h.mu.Unlock()
}

func (h *Hooks) end(id any) time.Duration {
	if id == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start, ok := h.started[id]
	if !ok {
		return 0
	}
	delete(h.started, id)
	return h.now().Sub(start)
}

// OnSessionStart records the start of a client session.
func (h *Hooks) OnSessionStart(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session started")
}

// OnSessionEnd records the end of a client session.
func (h *Hooks) OnSessionEnd(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session ended")
}

// OnToolCall logs a finished tool invocation. Error results are logged at
// warn level with their catalog code.
func (h *Hooks) OnToolCall(tool string, duration time.Duration, res *mcp.CallToolResult) {
	if res != nil && res.IsError {
		evt := h.logger.Warn().Str("tool", tool).Dur("duration", duration)
		if len(res.Content) > 0 {
			if text, ok := res.Content[0].(mcp.TextContent); ok {
				code, msg := mcperr.Parse(text.Text)
				evt = evt.Str("code", string(code)).Str("error", msg)
			}
		}
		evt.Msg("tool call failed")
		return
	}
	h.logger.Info().Str("tool", tool).Dur("duration", duration).Msg("tool call completed")
}
