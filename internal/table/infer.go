package table

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column type tags reported in table metadata.
const (
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeString   = "string"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
	TypeEmpty    = "empty"
	TypeMixed    = "mixed"
)

var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "2006/01/02",
	"01/02/2006", "1/2/2006", "1/2/06", "01-02-06", "1/2/06 15:04", "01-02-06 15:04",
}

// ParseCell converts spreadsheet display text into a typed value: empty text
// is missing, then booleans, integers, floats (thousands separators allowed)
// and common date layouts are tried before falling back to the text itself.
func ParseCell(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	switch strings.ToUpper(t) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	clean := t
	if strings.Contains(clean, ",") && looksGrouped(clean) {
		clean = strings.ReplaceAll(clean, ",", "")
	}
	if i, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(clean, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, t); err == nil {
			return ts
		}
	}
	return s
}

// looksGrouped accepts "1,234" and "-12,345.6" but not "1,2,3".
func looksGrouped(s string) bool {
	s = strings.TrimPrefix(s, "-")
	intPart := s
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart = s[:dot]
	}
	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// typeCounter tracks observed value categories for a column.
type typeCounter struct {
	intCount   int
	floatCount int
	textCount  int
	dateCount  int
	boolCount  int
}

func (c *typeCounter) observe(v any) {
	switch v.(type) {
	case nil:
	case int64:
		c.intCount++
	case float64:
		c.floatCount++
	case bool:
		c.boolCount++
	case time.Time:
		c.dateCount++
	default:
		c.textCount++
	}
}

func (c *typeCounter) dominantType() string {
	numeric := c.intCount + c.floatCount
	counts := []int{numeric, c.dateCount, c.boolCount, c.textCount}
	nonZero := 0
	for _, n := range counts {
		if n > 0 {
			nonZero++
		}
	}
	switch {
	case nonZero == 0:
		return TypeEmpty
	case nonZero > 1:
		return TypeMixed
	case c.floatCount > 0:
		return TypeFloat
	case c.intCount > 0:
		return TypeInteger
	case c.dateCount > 0:
		return TypeDatetime
	case c.boolCount > 0:
		return TypeBoolean
	}
	return TypeString
}

// ColumnTypes infers one type tag per column.
func (t *Table) ColumnTypes() map[string]string {
	out := make(map[string]string, len(t.Columns))
	for j, name := range t.Columns {
		var tc typeCounter
		for _, r := range t.Rows {
			tc.observe(r[j])
		}
		out[name] = tc.dominantType()
	}
	return out
}

// HeaderConfidence scores how header-like a row is: unique, mostly text-like
// values score close to 1.
func HeaderConfidence(row []any) float64 {
	nonEmpty := 0
	numeric := 0
	uniq := map[string]struct{}{}
	for _, v := range row {
		s := strings.TrimSpace(Format(v))
		if s == "" {
			continue
		}
		nonEmpty++
		if IsNumber(v) {
			numeric++
		} else if _, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			numeric++
		}
		uniq[strings.ToLower(s)] = struct{}{}
	}
	if nonEmpty == 0 {
		return 0
	}
	uniqRatio := float64(len(uniq)) / float64(nonEmpty)
	numericRatio := float64(numeric) / float64(nonEmpty)
	return round3(clamp01(0.5*uniqRatio + 0.5*(1.0-numericRatio)))
}

// SuggestHeaderRow returns the index of the most header-like row among rows,
// weighting HeaderConfidence by how many cells are filled. Earlier rows win
// ties.
func SuggestHeaderRow(rows [][]any) int {
	best, bestScore := 0, -1.0
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		filled := 0
		for _, v := range r {
			if !IsBlank(v) {
				filled++
			}
		}
		s := HeaderConfidence(r) * float64(filled) / float64(len(r))
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// UniqueHeader turns raw header cells into unique column names. Blank or
// repeated names become "column_<position>", suffixed further if that
// placeholder is already taken.
func UniqueHeader(cells []any) []string {
	raw := make([]string, len(cells))
	taken := make(map[string]int, len(cells))
	for i, v := range cells {
		raw[i] = strings.TrimSpace(Format(v))
		if raw[i] != "" {
			taken[raw[i]]++
		}
	}
	out := make([]string, len(cells))
	used := make(map[string]struct{}, len(cells))
	for i, name := range raw {
		if name != "" {
			if _, dup := used[name]; !dup {
				out[i] = name
				used[name] = struct{}{}
				continue
			}
		}
		candidate := "column_" + strconv.Itoa(i)
		for n := 1; ; n++ {
			_, u := used[candidate]
			_, later := taken[candidate]
			if !u && !later {
				break
			}
			candidate = "column_" + strconv.Itoa(i) + "_" + strconv.Itoa(n)
		}
		out[i] = candidate
		used[candidate] = struct{}{}
	}
	return out
}

// SortedKeys returns map keys in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
