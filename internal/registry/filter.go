package registry

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinodismyname/sheetagent/internal/ops"
)

// ReadOnlyFilter hides tools that change tables or write files when the
// server runs read-only. The catalog rejects such calls regardless.
type ReadOnlyFilter struct {
	readOnly bool
}

// NewReadOnlyFilter constructs a filter; readOnly=false lists every tool.
func NewReadOnlyFilter(readOnly bool) *ReadOnlyFilter {
	return &ReadOnlyFilter{readOnly: readOnly}
}

// FilterTools implements server tool filtering semantics.
func (f *ReadOnlyFilter) FilterTools(_ context.Context, tools []mcp.Tool) []mcp.Tool {
	if !f.readOnly {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if ops.Mutating(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}
