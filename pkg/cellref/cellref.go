// Package cellref converts between spreadsheet-style references ("A5",
// "B2:D10") and zero-based (row, col) indices.
//
// Column letters use bijective base-26 (A=0, Z=25, AA=26). Row numbers are
// 1-based in the external form. References address data rows of a table, so
// "A1" is the first row below the header.
package cellref

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidReference is returned for malformed or out-of-range references.
var ErrInvalidReference = errors.New("cellref: invalid reference")

// maxLetters bounds column names so index arithmetic cannot overflow.
const maxLetters = 7

// Cell is a zero-based cell coordinate.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String renders the cell in letter+number notation.
func (c Cell) String() string {
	s, err := Format(c.Row, c.Col)
	if err != nil {
		return fmt.Sprintf("R%dC%d", c.Row, c.Col)
	}
	return s
}

// Range is an inclusive rectangle with Start <= End on both axes.
type Range struct {
	Start Cell `json:"start"`
	End   Cell `json:"end"`
}

// Rows returns the number of rows covered by the range.
func (r Range) Rows() int { return r.End.Row - r.Start.Row + 1 }

// Cols returns the number of columns covered by the range.
func (r Range) Cols() int { return r.End.Col - r.Start.Col + 1 }

func (r Range) String() string { return r.Start.String() + ":" + r.End.String() }

// ColumnToIndex converts column letters to a zero-based index.
func ColumnToIndex(letters string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(letters))
	if s == "" || len(s) > maxLetters {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidReference, letters)
	}
	n := 0
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("%w: column %q", ErrInvalidReference, letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// IndexToColumn converts a zero-based column index to letters.
func IndexToColumn(idx int) (string, error) {
	if idx < 0 {
		return "", fmt.Errorf("%w: column index %d", ErrInvalidReference, idx)
	}
	var buf [maxLetters + 8]byte
	i := len(buf)
	n := idx + 1
	for n > 0 {
		i--
		buf[i] = byte('A' + (n-1)%26)
		n = (n - 1) / 26
	}
	return string(buf[i:]), nil
}

// Parse converts "B7" (or "$B$7", "b7") to a zero-based Cell.
func Parse(ref string) (Cell, error) {
	s := strings.ReplaceAll(strings.TrimSpace(ref), "$", "")
	split := 0
	for split < len(s) && isLetter(s[split]) {
		split++
	}
	if split == 0 || split == len(s) {
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	col, err := ColumnToIndex(s[:split])
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	digits := s[split:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Cell{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
		}
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return Cell{Row: row - 1, Col: col}, nil
}

// Format converts a zero-based (row, col) to letter+number notation.
func Format(row, col int) (string, error) {
	if row < 0 {
		return "", fmt.Errorf("%w: row index %d", ErrInvalidReference, row)
	}
	letters, err := IndexToColumn(col)
	if err != nil {
		return "", err
	}
	return letters + strconv.Itoa(row+1), nil
}

// ParseRange parses "REF1:REF2". Both endpoints must parse and the first must
// be the top-left corner.
func ParseRange(ref string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(ref), ":")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: range %q", ErrInvalidReference, ref)
	}
	start, err := Parse(parts[0])
	if err != nil {
		return Range{}, err
	}
	end, err := Parse(parts[1])
	if err != nil {
		return Range{}, err
	}
	if start.Row > end.Row || start.Col > end.Col {
		return Range{}, fmt.Errorf("%w: range %q is not top-left to bottom-right", ErrInvalidReference, ref)
	}
	return Range{Start: start, End: end}, nil
}

// ParseArea accepts either a range or a single cell, the latter as a 1x1 range.
func ParseArea(ref string) (Range, error) {
	if strings.Contains(ref, ":") {
		return ParseRange(ref)
	}
	c, err := Parse(ref)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: c, End: c}, nil
}

// FormatRange renders an inclusive rectangle.
func FormatRange(startRow, startCol, endRow, endCol int) (string, error) {
	if startRow > endRow || startCol > endCol {
		return "", fmt.Errorf("%w: inverted range", ErrInvalidReference)
	}
	a, err := Format(startRow, startCol)
	if err != nil {
		return "", err
	}
	b, err := Format(endRow, endCol)
	if err != nil {
		return "", err
	}
	return a + ":" + b, nil
}

// InBounds reports whether c addresses an existing cell of a rows x cols grid.
func InBounds(c Cell, rows, cols int) bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < rows && c.Col < cols
}

// RangeInBounds reports whether every cell of r lies inside a rows x cols grid.
func RangeInBounds(r Range, rows, cols int) bool {
	return InBounds(r.Start, rows, cols) && InBounds(r.End, rows, cols)
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
