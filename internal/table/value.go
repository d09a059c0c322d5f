package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Cell values are one of nil (missing), int64, float64, string, bool or
// time.Time. Normalize maps any other Go scalar onto that set.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, string, bool:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return uintValue(x)
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case time.Time:
		return x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return floatValue(f)
		}
		return x.String()
	default:
		s, err := cast.ToStringE(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return s
	}
}

// FromJSON normalizes a value decoded by encoding/json, turning integral
// float64 numbers back into int64.
func FromJSON(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return Normalize(v)
}

func uintValue(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func floatValue(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// IsMissing reports a true missing value.
func IsMissing(v any) bool { return v == nil }

// IsBlank reports a missing value or a string that is empty after trimming.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// IsNumber reports whether v is stored as a number.
func IsNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// ToFloat coerces v to a float64. Strings are parsed after trimming; missing,
// non-numeric and temporal values report false.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, time.Time:
		return 0, false
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := cast.ToFloat64E(s)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		f, err := cast.ToFloat64E(x)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

type kind int

const (
	kindNumber kind = iota
	kindBool
	kindTime
	kindString
)

func kindOf(v any) kind {
	switch v.(type) {
	case int64, float64:
		return kindNumber
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	}
	return kindString
}

// Compare orders two non-missing values. Numbers sort before booleans, then
// timestamps, then strings; values of the same kind compare naturally.
func Compare(a, b any) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	switch ka {
	case kindNumber:
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case kindBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case kindTime:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return strings.Compare(Format(a), Format(b))
}

// Equal compares values the way key matching and filters need: two missing
// values are equal, numbers compare numerically across int64/float64, and
// values of different kinds never match.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if kindOf(a) != kindOf(b) {
		return false
	}
	return Compare(a, b) == 0
}

// Identical is strict equality including the stored Go type.
func Identical(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// Key returns a hashable key consistent with Equal. Missing values report
// false.
func Key(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch kindOf(v) {
	case kindNumber:
		f, _ := ToFloat(v)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	case kindBool:
		return "b:" + strconv.FormatBool(v.(bool)), true
	case kindTime:
		return "t:" + v.(time.Time).UTC().Format(time.RFC3339Nano), true
	}
	return "s:" + Format(v), true
}

// Format renders a value as display text; missing values render empty.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// JSONValue converts a value into its JSON-friendly form: timestamps become
// RFC 3339 strings, everything else is already a native JSON scalar.
func JSONValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return floatValue(x)
	}
	return v
}

// JSONRow converts a row with JSONValue.
func JSONRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = JSONValue(v)
	}
	return out
}

// RowMap renders a row as a column->value mapping for tool results.
func (t *Table) RowMap(row []any) map[string]any {
	out := make(map[string]any, len(t.Columns))
	for i, c := range t.Columns {
		out[c] = JSONValue(row[i])
	}
	return out
}
