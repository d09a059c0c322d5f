package store

import (
	"time"

	"github.com/vinodismyname/sheetagent/internal/table"
)

// Metadata describes one table. It is recomputed from the table after every
// structural change; only provenance fields carry over.
type Metadata struct {
	Name         string            `json:"name"`
	FilePath     string            `json:"file_path,omitempty"`
	Columns      []string          `json:"columns"`
	RowCount     int               `json:"row_count"`
	HeaderRow    int               `json:"header_row"`
	ColumnTypes  map[string]string `json:"column_types"`
	CreatedAt    time.Time         `json:"created_at"`
	LastModified time.Time         `json:"last_modified"`
	SheetName    string            `json:"sheet_name,omitempty"`
	ByteSize     int64             `json:"byte_size,omitempty"`
}

// Info is Metadata plus derived quality figures.
type Info struct {
	Metadata
	MissingValues map[string]int `json:"missing_values"`
	Version       uint64         `json:"version"`
	CanUndo       bool           `json:"can_undo"`
	CanRedo       bool           `json:"can_redo"`
}

func buildMetadata(name string, t *table.Table, prev *Metadata, now time.Time) *Metadata {
	m := &Metadata{
		Name:         name,
		Columns:      append([]string(nil), t.Columns...),
		RowCount:     t.Len(),
		ColumnTypes:  t.ColumnTypes(),
		CreatedAt:    now,
		LastModified: now,
	}
	if prev != nil {
		m.FilePath = prev.FilePath
		m.HeaderRow = prev.HeaderRow
		m.CreatedAt = prev.CreatedAt
		m.SheetName = prev.SheetName
		m.ByteSize = prev.ByteSize
	}
	return m
}
