package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/vinodismyname/sheetagent/internal/table"
)

// Snapshot is a deep copy of a table captured for later restoration.
// Version is the store's mutation counter for the table at capture time.
type Snapshot struct {
	ID        string
	Timestamp time.Time
	Version   uint64
	Data      *table.Table
}

// Stacks holds an undo stack and a redo stack per table. The top of the undo
// stack is the current state; undo needs at least two entries.
type Stacks struct {
	limit int
	undo  map[string][]Snapshot
	redo  map[string][]Snapshot
	clock func() time.Time
}

// NewStacks returns stacks that keep at most limit snapshots per table.
func NewStacks(limit int) *Stacks {
	if limit < 2 {
		limit = 2
	}
	return &Stacks{
		limit: limit,
		undo:  map[string][]Snapshot{},
		redo:  map[string][]Snapshot{},
		clock: time.Now,
	}
}

// Push records a copy of data as the newest undo point for name, evicting the
// oldest snapshot beyond the cap. A new snapshot invalidates the table's redo
// stack.
func (s *Stacks) Push(name string, data *table.Table, version uint64) Snapshot {
	snap := Snapshot{ID: uuid.NewString(), Timestamp: s.clock(), Version: version, Data: data.Clone()}
	s.undo[name] = s.trim(append(s.undo[name], snap))
	delete(s.redo, name)
	return snap
}

// Top returns the newest undo snapshot of name.
func (s *Stacks) Top(name string) (Snapshot, bool) {
	st := s.undo[name]
	if len(st) == 0 {
		return Snapshot{}, false
	}
	return st[len(st)-1], true
}

// Previous returns the snapshot just below the top, i.e. the state an undo
// would restore.
func (s *Stacks) Previous(name string) (Snapshot, bool) {
	st := s.undo[name]
	if len(st) < 2 {
		return Snapshot{}, false
	}
	return st[len(st)-2], true
}

// Undo moves the top snapshot onto the redo stack and returns the new top.
func (s *Stacks) Undo(name string) (Snapshot, bool) {
	st := s.undo[name]
	if len(st) < 2 {
		return Snapshot{}, false
	}
	top := st[len(st)-1]
	s.undo[name] = st[:len(st)-1]
	s.redo[name] = append(s.redo[name], top)
	return st[len(st)-2], true
}

// Redo moves the newest redo snapshot back onto the undo stack and returns it.
func (s *Stacks) Redo(name string) (Snapshot, bool) {
	rd := s.redo[name]
	if len(rd) == 0 {
		return Snapshot{}, false
	}
	snap := rd[len(rd)-1]
	if len(rd) == 1 {
		delete(s.redo, name)
	} else {
		s.redo[name] = rd[:len(rd)-1]
	}
	s.undo[name] = s.trim(append(s.undo[name], snap))
	return snap, true
}

// CanUndo reports whether an undo would succeed.
func (s *Stacks) CanUndo(name string) bool { return len(s.undo[name]) >= 2 }

// CanRedo reports whether a redo would succeed.
func (s *Stacks) CanRedo(name string) bool { return len(s.redo[name]) > 0 }

// Depth returns the sizes of the undo and redo stacks of name.
func (s *Stacks) Depth(name string) (undo, redo int) {
	return len(s.undo[name]), len(s.redo[name])
}

// Drop forgets every snapshot of name.
func (s *Stacks) Drop(name string) {
	delete(s.undo, name)
	delete(s.redo, name)
}

// Limit returns the per-table cap.
func (s *Stacks) Limit() int { return s.limit }

func (s *Stacks) trim(st []Snapshot) []Snapshot {
	if over := len(st) - s.limit; over > 0 {
		return append([]Snapshot(nil), st[over:]...)
	}
	return st
}
