// Package history keeps the bounded operation log and the per-table
// undo/redo snapshot stacks of a table store.
package history

import (
	"time"

	"github.com/google/uuid"
)

// OpType enumerates the kinds of operations recorded in the log.
type OpType string

const (
	OpLoad              OpType = "load"
	OpSave              OpType = "save"
	OpCalculate         OpType = "calculate"
	OpFilter            OpType = "filter"
	OpSort              OpType = "sort"
	OpGroup             OpType = "group"
	OpExtract           OpType = "extract"
	OpInsert            OpType = "insert"
	OpMerge             OpType = "merge"
	OpUpdate            OpType = "update"
	OpFill              OpType = "fill"
	OpCopyColumn        OpType = "copy_column"
	OpColumnCalculation OpType = "column_calculation"
	OpSetHeader         OpType = "set_header"
	OpDetectHeader      OpType = "detect_header"

	OpUndo      OpType = "undo"
	OpRedo      OpType = "redo"
	OpRemove    OpType = "remove"
	OpSetActive OpType = "set_active"
	OpWrite     OpType = "write"
	OpRead      OpType = "read"
)

// Record is an immutable log entry.
type Record struct {
	ID            string         `json:"id"`
	Type          OpType         `json:"type"`
	Table         string         `json:"table,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Description   string         `json:"description"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	ResultSummary string         `json:"result_summary,omitempty"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
}

// Log is a size-bounded ring of records; the oldest entries are evicted first.
type Log struct {
	limit   int
	records []Record
	clock   func() time.Time
}

// NewLog returns a log that retains at most limit records.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = 1
	}
	return &Log{limit: limit, clock: time.Now}
}

// Append stores r, assigning an ID and timestamp when unset, and returns the
// stored record.
func (l *Log) Append(r Record) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = l.clock()
	}
	l.records = append(l.records, r)
	if over := len(l.records) - l.limit; over > 0 {
		// drop the oldest entries without retaining the evicted backing array
		l.records = append([]Record(nil), l.records[over:]...)
	}
	return r
}

// Records returns a copy of the retained records, oldest first.
func (l *Log) Records() []Record {
	return append([]Record(nil), l.records...)
}

// Recent returns up to n of the newest records, optionally limited to one
// table, oldest first. n <= 0 means no limit.
func (l *Log) Recent(n int, tableName string) []Record {
	var out []Record
	for i := len(l.records) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		if tableName != "" && l.records[i].Table != tableName {
			continue
		}
		out = append(out, l.records[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of retained records.
func (l *Log) Len() int { return len(l.records) }

// Limit returns the configured capacity.
func (l *Log) Limit() int { return l.limit }

// Clear drops every record.
func (l *Log) Clear() { l.records = nil }
