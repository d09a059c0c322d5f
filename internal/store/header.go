package store

import (
	"fmt"

	"github.com/vinodismyname/sheetagent/config"
	"github.com/vinodismyname/sheetagent/internal/table"
)

// PreviewRow is one candidate header row with display values.
type PreviewRow struct {
	RowIndex int      `json:"row_index"`
	Values   []string `json:"values"`
}

// HeaderPreview is the result of DetectHeader.
type HeaderPreview struct {
	CurrentHeaderRow int          `json:"current_header_row"`
	CurrentColumns   []string     `json:"current_columns"`
	Preview          []PreviewRow `json:"preview"`
	// SuggestedHeaderRow is the data row that looks most like a header, or -1
	// when the current column names already look best.
	SuggestedHeaderRow int     `json:"suggested_header_row"`
	Confidence         float64 `json:"confidence"`
}

// DetectHeader returns the first previewRows data rows as header candidates.
// It does not mutate the table.
func (s *Store) DetectHeader(name string, previewRows int) (*HeaderPreview, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if previewRows <= 0 {
		previewRows = config.DefaultPreviewRowLimit
	}
	n := min(previewRows, t.Len())

	out := &HeaderPreview{
		CurrentHeaderRow: t.HeaderRow,
		CurrentColumns:   append([]string(nil), t.Columns...),
		Preview:          make([]PreviewRow, 0, n),
	}
	candidates := make([][]any, 0, n+1)
	current := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		current[i] = c
	}
	candidates = append(candidates, current)
	for i := 0; i < n; i++ {
		vals := make([]string, len(t.Rows[i]))
		for j, v := range t.Rows[i] {
			vals[j] = table.Format(v)
		}
		out.Preview = append(out.Preview, PreviewRow{RowIndex: i, Values: vals})
		candidates = append(candidates, t.Rows[i])
	}
	best := table.SuggestHeaderRow(candidates)
	out.SuggestedHeaderRow = best - 1
	out.Confidence = table.HeaderConfidence(candidates[best])
	return out, nil
}

// SetHeaderRow promotes data row rowIndex to the column header and drops it
// together with every row above it. Blank or repeated names get positional
// placeholders.
func (s *Store) SetHeaderRow(name string, rowIndex int) ([]string, error) {
	var cols []string
	err := s.Mutate(name, func(t *table.Table) error {
		if rowIndex < 0 || rowIndex >= t.Len() {
			return fmt.Errorf("%w: %d (table has %d rows)", ErrHeaderRow, rowIndex, t.Len())
		}
		cols = table.UniqueHeader(t.Rows[rowIndex])
		t.Columns = cols
		t.Rows = append([][]any(nil), t.Rows[rowIndex+1:]...)
		t.HeaderRow += rowIndex + 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), cols...), nil
}
