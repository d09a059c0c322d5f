package store

import (
	"errors"
	"fmt"

	"github.com/vinodismyname/sheetagent/internal/diff"
)

// ErrNoPrevious indicates a table without an earlier state to compare with.
var ErrNoPrevious = errors.New("store: no previous state")

// DiffResult compares the current state of a table with the state an Undo
// would restore.
type DiffResult struct {
	Hunks     []diff.Hunk `json:"hunks"`
	Added     int         `json:"added"`
	Removed   int         `json:"removed"`
	Truncated bool        `json:"truncated"`
}

// Diff renders name before and after its latest change and diffs the two
// line by line. Row order matters: a sort shows up as moved lines.
func (s *Store) Diff(name string, context, maxLines int) (*DiffResult, error) {
	cur, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	prev, ok := s.Previous(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoPrevious, name)
	}
	hunks, truncated := diff.HunksWithLimit(prev.Render(), cur.Render(), context, maxLines)
	added, removed := diff.Stats(hunks)
	return &DiffResult{Hunks: hunks, Added: added, Removed: removed, Truncated: truncated}, nil
}

// Len returns the number of tables.
func (s *Store) Len() int { return len(s.tables) }

// Full reports whether a new table would exceed the table cap.
func (s *Store) Full() bool { return len(s.tables) >= s.opts.MaxTables }
