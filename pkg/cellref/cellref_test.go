package cellref

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestColumnIndex_KnownValues(t *testing.T) {
	cases := map[string]int{"A": 0, "Z": 25, "AA": 26, "AZ": 51, "BA": 52, "ZZ": 701, "AAA": 702, "XFD": 16383}
	for letters, idx := range cases {
		got, err := ColumnToIndex(letters)
		require.NoError(t, err, letters)
		require.Equal(t, idx, got, letters)

		back, err := IndexToColumn(idx)
		require.NoError(t, err)
		require.Equal(t, letters, back)
	}
}

func TestIndexToColumn_MatchesExcelize(t *testing.T) {
	for i := 0; i < excelize.MaxColumns; i++ {
		want, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		got, err := IndexToColumn(i)
		require.NoError(t, err)
		require.Equal(t, want, got, "index %d", i)
	}
}

func TestParseFormat_RoundTrip(t *testing.T) {
	cases := []struct {
		ref      string
		row, col int
	}{
		{"A1", 0, 0},
		{"AA1", 0, 26},
		{"AB5", 4, 27},
		{"Z100", 99, 25},
	}
	for _, tc := range cases {
		c, err := Parse(tc.ref)
		require.NoError(t, err)
		require.Equal(t, Cell{Row: tc.row, Col: tc.col}, c)

		s, err := Format(tc.row, tc.col)
		require.NoError(t, err)
		require.Equal(t, tc.ref, s)
	}

	for row := 0; row < 40; row++ {
		for col := 0; col < 800; col += 7 {
			s, err := Format(row, col)
			require.NoError(t, err)
			c, err := Parse(s)
			require.NoError(t, err)
			require.Equal(t, Cell{Row: row, Col: col}, c)
		}
	}
}

func TestParse_Normalizes(t *testing.T) {
	c, err := Parse("$c$3")
	require.NoError(t, err)
	require.Equal(t, Cell{Row: 2, Col: 2}, c)
	require.Equal(t, "C3", c.String())
}

func TestParse_Invalid(t *testing.T) {
	for _, ref := range []string{"", "A", "5", "A0", "1A", "A-1", "A1B", "ABCDEFGH1", "A 1"} {
		_, err := Parse(ref)
		require.Error(t, err, ref)
		require.True(t, errors.Is(err, ErrInvalidReference), ref)
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("B2:D10")
	require.NoError(t, err)
	require.Equal(t, Range{Start: Cell{Row: 1, Col: 1}, End: Cell{Row: 9, Col: 3}}, r)
	require.Equal(t, 9, r.Rows())
	require.Equal(t, 3, r.Cols())
	require.Equal(t, "B2:D10", r.String())

	s, err := FormatRange(1, 1, 9, 3)
	require.NoError(t, err)
	require.Equal(t, "B2:D10", s)

	for _, bad := range []string{"B2", "D10:B2", "A1:B2:C3", "A1:", ":B2"} {
		_, err := ParseRange(bad)
		require.Error(t, err, bad)
	}
}

func TestParseArea_SingleCell(t *testing.T) {
	r, err := ParseArea("C4")
	require.NoError(t, err)
	require.Equal(t, 1, r.Rows())
	require.Equal(t, 1, r.Cols())
}

func TestBounds(t *testing.T) {
	require.True(t, InBounds(Cell{Row: 2, Col: 1}, 3, 2))
	require.False(t, InBounds(Cell{Row: 3, Col: 0}, 3, 2))
	require.False(t, InBounds(Cell{Row: 0, Col: 2}, 3, 2))

	r, err := ParseRange("A1:B3")
	require.NoError(t, err)
	require.True(t, RangeInBounds(r, 3, 2))
	require.False(t, RangeInBounds(r, 2, 2))
}

func FuzzParse(f *testing.F) {
	for _, s := range []string{"A1", "XFD1048576", "$A$1", "zz9", "", "1A"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, ref string) {
		c, err := Parse(ref)
		if err != nil {
			return
		}
		s, err := Format(c.Row, c.Col)
		if err != nil {
			t.Fatalf("format after parse: %v", err)
		}
		back, err := Parse(s)
		if err != nil || back != c {
			t.Fatalf("round trip %q -> %q -> %+v", ref, s, back)
		}
	})
}
