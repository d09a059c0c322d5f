package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vinodismyname/sheetagent/pkg/cellref"
	"github.com/vinodismyname/sheetagent/pkg/pagination"
)

var (
	v    *validator.Validate
	once sync.Once
)

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		// Report json names so messages match tool argument names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		// Custom: workbook path must have a supported extension
		_ = v.RegisterValidation("filepath_ext", func(fl validator.FieldLevel) bool {
			s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			if s == "" {
				return false
			}
			return strings.HasSuffix(s, ".xlsx") || strings.HasSuffix(s, ".xlsm") || strings.HasSuffix(s, ".xltx") || strings.HasSuffix(s, ".xltm")
		})
		// Custom: single A1 cell reference
		_ = v.RegisterValidation("cellref", func(fl validator.FieldLevel) bool {
			_, err := cellref.Parse(fl.Field().String())
			return err == nil
		})
		// Custom: A1 cell or A1:B2 range
		_ = v.RegisterValidation("rangeref", func(fl validator.FieldLevel) bool {
			_, err := cellref.ParseArea(fl.Field().String())
			return err == nil
		})
		// Custom: row slice "all" or "start:end"
		_ = v.RegisterValidation("rowspec", func(fl validator.FieldLevel) bool {
			_, _, err := ParseRowSpec(fl.Field().String())
			return err == nil
		})
		// Custom: cursor must be decodable via pagination.DecodeCursor
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			_, err := pagination.DecodeCursor(s)
			return err == nil
		})
	})
	return v
}

// ParseRowSpec parses "all" (or "") into (0, -1) and "start:end" into a
// half-open row interval. Either bound of "start:end" may be omitted.
func ParseRowSpec(spec string) (start, end int, err error) {
	s := strings.TrimSpace(spec)
	if s == "" || strings.EqualFold(s, "all") {
		return 0, -1, nil
	}
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("rows %q: expected \"all\" or \"start:end\"", spec)
	}
	start, end = 0, -1
	if lo = strings.TrimSpace(lo); lo != "" {
		if _, err := fmt.Sscanf(lo, "%d", &start); err != nil || start < 0 {
			return 0, 0, fmt.Errorf("rows %q: invalid start", spec)
		}
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		if _, err := fmt.Sscanf(hi, "%d", &end); err != nil || end < start {
			return 0, 0, fmt.Errorf("rows %q: invalid end", spec)
		}
	}
	return start, end, nil
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for MCP tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	err := Validator().Struct(s)
	if err == nil {
		return ""
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return "VALIDATION: invalid inputs"
	}
	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("VALIDATION: %s is required", field)
	case "required_without":
		return fmt.Sprintf("VALIDATION: %s is required (or supply %s)", field, toSnake(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("VALIDATION: %s cannot be combined with %s", field, toSnake(fe.Param()))
	case "oneof":
		return fmt.Sprintf("VALIDATION: %s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "filepath_ext":
		return "VALIDATION: path must be an Excel file (.xlsx, .xlsm, .xltx, .xltm)"
	case "cellref":
		return fmt.Sprintf("VALIDATION: %s must be a cell reference like A1", field)
	case "rangeref":
		return fmt.Sprintf("VALIDATION: %s must be a cell or range like A1 or A1:C5", field)
	case "rowspec":
		return fmt.Sprintf("VALIDATION: %s must be \"all\" or \"start:end\"", field)
	case "cursor":
		return "CURSOR_INVALID: failed to decode cursor; restart pagination"
	case "min", "max", "gte", "lte":
		return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("VALIDATION: invalid %s", field)
}

// toSnake converts a Go field name like SourceColumn into source_column.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
