package store

import (
	"fmt"

	"github.com/vinodismyname/sheetagent/internal/table"
)

// Snapshot pushes a copy of the current state of name onto its undo stack.
// This invalidates the table's redo stack.
func (s *Store) Snapshot(name string) bool {
	t, ok := s.tables[name]
	if !ok {
		return false
	}
	s.snaps.Push(name, t, s.versions[name])
	return true
}

// stale reports whether name changed since its newest snapshot.
func (s *Store) stale(name string) bool {
	top, ok := s.snaps.Top(name)
	return !ok || top.Version != s.versions[name]
}

// Mutate applies fn to a working copy of name. On success the copy replaces
// the stored table, metadata is recomputed and the result is snapshotted.
// When the stored state was never snapshotted (direct cell writes), it is
// captured first so the mutation can always be undone. On error the stored
// table is untouched.
func (s *Store) Mutate(name string, fn func(t *table.Table) error) error {
	cur, err := s.lookup(name)
	if err != nil {
		return err
	}
	work := cur.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := work.Validate(); err != nil {
		return fmt.Errorf("store: mutation left %q inconsistent: %w", name, err)
	}
	if s.stale(name) {
		s.snaps.Push(name, cur, s.versions[name])
	}
	s.tables[name] = work
	s.touch(name)
	s.snaps.Push(name, work, s.versions[name])
	return nil
}

// CanUndo reports whether Undo would succeed.
func (s *Store) CanUndo(name string) bool {
	if _, ok := s.tables[name]; !ok {
		return false
	}
	if s.stale(name) {
		_, ok := s.snaps.Top(name)
		return ok
	}
	return s.snaps.CanUndo(name)
}

// CanRedo reports whether Redo would succeed.
func (s *Store) CanRedo(name string) bool {
	if _, ok := s.tables[name]; !ok || s.stale(name) {
		return false
	}
	return s.snaps.CanRedo(name)
}

// Undo restores the state before the latest change of name. Unsnapshotted
// direct writes count as the latest change.
func (s *Store) Undo(name string) bool {
	if !s.CanUndo(name) {
		return false
	}
	if s.stale(name) {
		s.Snapshot(name)
	}
	snap, ok := s.snaps.Undo(name)
	if !ok {
		return false
	}
	s.restore(name, snap.Data, snap.Version)
	s.logger.Debug().Str("table", name).Uint64("version", snap.Version).Msg("undo")
	return true
}

// Redo re-applies the most recently undone change of name.
func (s *Store) Redo(name string) bool {
	if !s.CanRedo(name) {
		return false
	}
	snap, ok := s.snaps.Redo(name)
	if !ok {
		return false
	}
	s.restore(name, snap.Data, snap.Version)
	s.logger.Debug().Str("table", name).Uint64("version", snap.Version).Msg("redo")
	return true
}

func (s *Store) restore(name string, data *table.Table, version uint64) {
	s.tables[name] = data.Clone()
	s.versions[name] = version
	s.refreshMetadata(name)
}

// UndoDepth returns the undo and redo stack sizes of name.
func (s *Store) UndoDepth(name string) (undo, redo int) {
	return s.snaps.Depth(name)
}

// Previous returns the state an Undo of name would restore.
func (s *Store) Previous(name string) (*table.Table, bool) {
	if _, ok := s.tables[name]; !ok {
		return nil, false
	}
	if s.stale(name) {
		top, ok := s.snaps.Top(name)
		if !ok {
			return nil, false
		}
		return top.Data.Clone(), true
	}
	prev, ok := s.snaps.Previous(name)
	if !ok {
		return nil, false
	}
	return prev.Data.Clone(), true
}
