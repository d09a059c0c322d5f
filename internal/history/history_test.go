package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sheetagent/internal/table"
)

func TestLog_CapEvictsOldestFirst(t *testing.T) {
	l := NewLog(50)
	for i := 0; i < 60; i++ {
		l.Append(Record{Type: OpSort, Table: "t", Description: fmt.Sprintf("op-%d", i)})
	}
	recs := l.Records()
	require.Len(t, recs, 50)
	require.Equal(t, "op-10", recs[0].Description)
	require.Equal(t, "op-59", recs[49].Description)
	require.NotEmpty(t, recs[0].ID)
	require.False(t, recs[0].Timestamp.IsZero())
}

func TestLog_Recent(t *testing.T) {
	l := NewLog(10)
	l.Append(Record{Type: OpLoad, Table: "a", Description: "1"})
	l.Append(Record{Type: OpLoad, Table: "b", Description: "2"})
	l.Append(Record{Type: OpSort, Table: "a", Description: "3"})

	got := l.Recent(0, "a")
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].Description)
	require.Equal(t, "3", got[1].Description)

	got = l.Recent(1, "")
	require.Len(t, got, 1)
	require.Equal(t, "3", got[0].Description)
}

func tableWith(t *testing.T, v int) *table.Table {
	t.Helper()
	tbl, err := table.New([]string{"v"}, [][]any{{v}})
	require.NoError(t, err)
	return tbl
}

func TestStacks_UndoRedoAreInverses(t *testing.T) {
	s := NewStacks(10)
	for i := 0; i < 4; i++ {
		s.Push("t", tableWith(t, i), uint64(i))
	}
	require.True(t, s.CanUndo("t"))
	require.False(t, s.CanRedo("t"))

	prev, ok := s.Undo("t")
	require.True(t, ok)
	require.Equal(t, int64(2), prev.Data.Rows[0][0])

	next, ok := s.Redo("t")
	require.True(t, ok)
	require.Equal(t, int64(3), next.Data.Rows[0][0])
	top, _ := s.Top("t")
	require.Equal(t, int64(3), top.Data.Rows[0][0])

	// N snapshots allow N-1 undos
	for i := 0; i < 3; i++ {
		_, ok := s.Undo("t")
		require.True(t, ok)
	}
	require.False(t, s.CanUndo("t"))
	_, ok = s.Undo("t")
	require.False(t, ok)
	top, _ = s.Top("t")
	require.Equal(t, int64(0), top.Data.Rows[0][0])
}

func TestStacks_PushClearsRedo(t *testing.T) {
	s := NewStacks(10)
	s.Push("t", tableWith(t, 1), 1)
	s.Push("t", tableWith(t, 2), 2)
	s.Push("other", tableWith(t, 9), 1)
	s.Push("other", tableWith(t, 8), 2)

	_, ok := s.Undo("t")
	require.True(t, ok)
	_, ok = s.Undo("other")
	require.True(t, ok)
	require.True(t, s.CanRedo("t"))

	s.Push("t", tableWith(t, 3), 3)
	require.False(t, s.CanRedo("t"))
	_, ok = s.Redo("t")
	require.False(t, ok)
	// redo stacks are per table
	require.True(t, s.CanRedo("other"))
}

func TestStacks_CapAndIsolation(t *testing.T) {
	s := NewStacks(3)
	src := tableWith(t, 0)
	s.Push("t", src, 0)
	src.Rows[0][0] = int64(42)

	top, _ := s.Top("t")
	require.Equal(t, int64(0), top.Data.Rows[0][0])

	for i := 1; i <= 5; i++ {
		s.Push("t", tableWith(t, i), uint64(i))
	}
	undo, redo := s.Depth("t")
	require.Equal(t, 3, undo)
	require.Equal(t, 0, redo)
	prev, ok := s.Previous("t")
	require.True(t, ok)
	require.Equal(t, int64(4), prev.Data.Rows[0][0])

	s.Drop("t")
	require.False(t, s.CanUndo("t"))
}
