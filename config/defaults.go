package config

import "time"

// Default guardrails for the table store and the MCP server. They are
// referenced by internal/runtime and internal/store, and can be overridden
// through Load (YAML file plus SHEETAGENT_* environment variables).

const (
	// Concurrency. The store is a single-writer structure, so tool calls are
	// serialized by default.
	DefaultMaxConcurrentRequests = 1
	DefaultMaxTables             = 32

	// History bounds
	DefaultHistoryLimit  = 50
	DefaultSnapshotLimit = 10

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxCellsPerOp   = 10_000
	DefaultPreviewRowLimit = 10
	DefaultSampleRows      = 5
	DefaultMaxDiffLines    = 5000
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
)
