// Package expr parses row filter conditions such as
//
//	department == 'Tech' and salary >= 50000
//	`unit price` > 2.5 or region in ['north', 'south']
//	not (status != 'open') & owner.notnull()
//
// into an AST that is compiled once against a column list and evaluated per
// row. Comparisons are numeric when both sides coerce to numbers; a missing
// value only equals None.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vinodismyname/sheetagent/internal/table"
)

var (
	// ErrSyntax reports a malformed expression.
	ErrSyntax = errors.New("expr: syntax error")
	// ErrUnknownColumn reports a column reference that does not exist.
	ErrUnknownColumn = errors.New("expr: unknown column")
)

// Node is an expression tree node.
type Node interface {
	eval(row []any) any
	bind(cols map[string]int) error
	String() string
}

// Expr is a parsed condition.
type Expr struct {
	src   string
	root  Node
	bound bool
}

// Parse parses src without resolving column names.
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
	}
	return &Expr{src: src, root: root}, nil
}

// Compile parses src and resolves its column references against columns.
func Compile(src string, columns []string) (*Expr, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := e.Bind(columns); err != nil {
		return nil, err
	}
	return e, nil
}

// Bind resolves column references to positions in columns.
func (e *Expr) Bind(columns []string) error {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	if err := e.root.bind(idx); err != nil {
		return err
	}
	e.bound = true
	return nil
}

// Match evaluates the condition for one row. An unbound expression matches
// nothing.
func (e *Expr) Match(row []any) bool {
	if !e.bound {
		return false
	}
	return truthy(e.root.eval(row))
}

// Columns lists the column names the expression references.
func (e *Expr) Columns() []string {
	var out []string
	seen := map[string]bool{}
	walk(e.root, func(n Node) {
		if c, ok := n.(*Column); ok && !seen[c.Name] {
			seen[c.Name] = true
			out = append(out, c.Name)
		}
	})
	return out
}

// String renders the normalized AST.
func (e *Expr) String() string { return e.root.String() }

// Source returns the original text.
func (e *Expr) Source() string { return e.src }

// --- AST ---

// Column references a column by name.
type Column struct {
	Name  string
	index int
}

func (c *Column) eval(row []any) any {
	if c.index < 0 || c.index >= len(row) {
		return nil
	}
	return row[c.index]
}

func (c *Column) bind(cols map[string]int) error {
	i, ok := cols[c.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, c.Name)
	}
	c.index = i
	return nil
}

func (c *Column) String() string { return "`" + c.Name + "`" }

// Literal is a constant value.
type Literal struct {
	Value any
}

func (l *Literal) eval([]any) any             { return l.Value }
func (l *Literal) bind(map[string]int) error { return nil }
func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "None"
	case string:
		return strconv.Quote(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	}
	return table.Format(l.Value)
}

// Logical joins two conditions with "and" or "or".
type Logical struct {
	Op          string
	Left, Right Node
}

func (l *Logical) eval(row []any) any {
	left := truthy(l.Left.eval(row))
	if l.Op == "and" {
		return left && truthy(l.Right.eval(row))
	}
	return left || truthy(l.Right.eval(row))
}

func (l *Logical) bind(cols map[string]int) error {
	if err := l.Left.bind(cols); err != nil {
		return err
	}
	return l.Right.bind(cols)
}

func (l *Logical) String() string {
	return "(" + l.Left.String() + " " + l.Op + " " + l.Right.String() + ")"
}

// Not negates a condition.
type Not struct {
	X Node
}

func (n *Not) eval(row []any) any               { return !truthy(n.X.eval(row)) }
func (n *Not) bind(cols map[string]int) error { return n.X.bind(cols) }
func (n *Not) String() string                 { return "not " + n.X.String() }

// Compare applies a comparison operator.
type Compare struct {
	Op          string
	Left, Right Node
}

func (c *Compare) eval(row []any) any {
	return compare(c.Op, c.Left.eval(row), c.Right.eval(row))
}

func (c *Compare) bind(cols map[string]int) error {
	if err := c.Left.bind(cols); err != nil {
		return err
	}
	return c.Right.bind(cols)
}

func (c *Compare) String() string {
	return "(" + c.Left.String() + " " + c.Op + " " + c.Right.String() + ")"
}

// In tests membership in a literal list.
type In struct {
	X      Node
	List   []Node
	Negate bool
}

func (n *In) eval(row []any) any {
	v := n.X.eval(row)
	found := false
	for _, item := range n.List {
		if compare("==", v, item.eval(row)) {
			found = true
			break
		}
	}
	return found != n.Negate
}

func (n *In) bind(cols map[string]int) error {
	if err := n.X.bind(cols); err != nil {
		return err
	}
	for _, item := range n.List {
		if err := item.bind(cols); err != nil {
			return err
		}
	}
	return nil
}

func (n *In) String() string {
	items := make([]string, len(n.List))
	for i, item := range n.List {
		items[i] = item.String()
	}
	op := " in "
	if n.Negate {
		op = " not in "
	}
	return "(" + n.X.String() + op + "[" + strings.Join(items, ", ") + "])"
}

// Call is a method applied to a column: isnull, notnull, str.contains,
// str.startswith, str.endswith.
type Call struct {
	X      Node
	Method string
	Arg    string
}

func (c *Call) eval(row []any) any {
	v := c.X.eval(row)
	switch c.Method {
	case "isnull":
		return v == nil
	case "notnull":
		return v != nil
	}
	if v == nil {
		return false
	}
	s := table.Format(v)
	switch c.Method {
	case "str.contains":
		return strings.Contains(s, c.Arg)
	case "str.startswith":
		return strings.HasPrefix(s, c.Arg)
	case "str.endswith":
		return strings.HasSuffix(s, c.Arg)
	}
	return false
}

func (c *Call) bind(cols map[string]int) error { return c.X.bind(cols) }

func (c *Call) String() string {
	if c.Arg == "" && (c.Method == "isnull" || c.Method == "notnull") {
		return c.X.String() + "." + c.Method + "()"
	}
	return c.X.String() + "." + c.Method + "(" + strconv.Quote(c.Arg) + ")"
}

func walk(n Node, fn func(Node)) {
	fn(n)
	switch x := n.(type) {
	case *Logical:
		walk(x.Left, fn)
		walk(x.Right, fn)
	case *Not:
		walk(x.X, fn)
	case *Compare:
		walk(x.Left, fn)
		walk(x.Right, fn)
	case *In:
		walk(x.X, fn)
		for _, item := range x.List {
			walk(item, fn)
		}
	case *Call:
		walk(x.X, fn)
	}
}

// --- evaluation ---

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}

// compare evaluates a op b. Missing values are only equal to each other and
// never ordered.
func compare(op string, a, b any) bool {
	if a == nil || b == nil {
		switch op {
		case "==":
			return a == nil && b == nil
		case "!=":
			return !(a == nil && b == nil)
		}
		return false
	}
	a, b = coerce(a, b)
	if !sameKind(a, b) {
		return op == "!="
	}
	c := table.Compare(a, b)
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

// coerce aligns operand types: numeric text against numbers becomes a
// number, date text against timestamps becomes a timestamp.
func coerce(a, b any) (any, any) {
	switch {
	case table.IsNumber(a) && !table.IsNumber(b):
		if s, ok := b.(string); ok {
			if f, ok := table.ToFloat(s); ok {
				return a, f
			}
		}
	case table.IsNumber(b) && !table.IsNumber(a):
		if s, ok := a.(string); ok {
			if f, ok := table.ToFloat(s); ok {
				return f, b
			}
		}
	}
	if _, ok := a.(time.Time); ok {
		if s, ok := b.(string); ok {
			if ts, ok := table.ParseCell(s).(time.Time); ok {
				return a, ts
			}
		}
	}
	if _, ok := b.(time.Time); ok {
		if s, ok := a.(string); ok {
			if ts, ok := table.ParseCell(s).(time.Time); ok {
				return ts, b
			}
		}
	}
	return a, b
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case int64, float64:
		return table.IsNumber(b)
	case bool:
		_, ok := b.(bool)
		return ok
	case time.Time:
		_, ok := b.(time.Time)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	}
	return false
}
