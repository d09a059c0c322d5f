package expr

import (
	"fmt"
	"strconv"
	"strings"
)

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s", what)
	}
	return t, nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	found := t.text
	if t.kind == tokEOF {
		found = "end of input"
	}
	return fmt.Errorf("%w: %s, found %q at %d", ErrSyntax, fmt.Sprintf(format, args...), found, t.pos)
}

// or := and { ("or" | "|") and }
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.keyword("or") && !t.is(tokOp, "|") {
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "or", Left: left, Right: right}
	}
}

// and := not { ("and" | "&") not }
func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.keyword("and") && !t.is(tokOp, "&") {
			return left, nil
		}
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "and", Left: left, Right: right}
	}
}

// not := ("not" | "~") not | comparison
func (p *parser) parseNot() (Node, error) {
	t := p.peek()
	if t.keyword("not") || t.is(tokOp, "~") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{X: x}, nil
	}
	return p.parseComparison()
}

// comparison := operand [ ("in" | "not" "in") list | { cmpop operand } ]
//
// Chained comparisons (a < b < c) fold into a conjunction of pairs.
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	switch {
	case t.keyword("in"):
		p.next()
		return p.parseIn(left, false)
	case t.keyword("not") && p.toks[p.pos+1].keyword("in"):
		p.next()
		p.next()
		return p.parseIn(left, true)
	}

	var out Node
	prev := left
	for {
		t := p.peek()
		if t.kind != tokOp || !isComparison(t.text) {
			break
		}
		p.next()
		right, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		cmp := &Compare{Op: t.text, Left: prev, Right: right}
		if out == nil {
			out = cmp
		} else {
			out = &Logical{Op: "and", Left: out, Right: cmp}
		}
		prev = right
	}
	if out == nil {
		return left, nil
	}
	return out, nil
}

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *parser) parseIn(x Node, negate bool) (Node, error) {
	open := p.next()
	var closer tokenKind
	switch open.kind {
	case tokLBracket:
		closer = tokRBracket
	case tokLParen:
		closer = tokRParen
	default:
		return nil, p.errorf(open, "expected list after 'in'")
	}
	n := &In{X: x, Negate: negate}
	if p.peek().kind == closer {
		p.next()
		return n, nil
	}
	for {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		n.List = append(n.List, item)
		t := p.next()
		if t.kind == closer {
			return n, nil
		}
		if t.kind != tokComma {
			return nil, p.errorf(t, "expected ',' or end of list")
		}
		if p.peek().kind == closer {
			p.next()
			return n, nil
		}
	}
}

// postfix := operand { "." method "(" [string] ")" }
func (p *parser) parsePostfix() (Node, error) {
	x, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokDot {
		p.next()
		name, err := p.expect(tokIdent, "method name")
		if err != nil {
			return nil, err
		}
		method := strings.ToLower(name.text)
		if method == "str" {
			if _, err := p.expect(tokDot, "'.' after str"); err != nil {
				return nil, err
			}
			sub, err := p.expect(tokIdent, "string method")
			if err != nil {
				return nil, err
			}
			method = "str." + strings.ToLower(sub.text)
		}
		call := &Call{X: x}
		switch method {
		case "isnull", "isna":
			call.Method = "isnull"
		case "notnull", "notna":
			call.Method = "notnull"
		case "str.contains", "str.startswith", "str.endswith":
			call.Method = method
		default:
			return nil, p.errorf(name, "unknown method %q", method)
		}
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		if strings.HasPrefix(call.Method, "str.") {
			arg, err := p.expect(tokString, "string argument")
			if err != nil {
				return nil, err
			}
			call.Arg = arg.text
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		x = call
	}
	return x, nil
}

// operand := ident | `quoted ident` | string | ["-"] number | True | False |
// None | "(" or ")"
func (p *parser) parseOperand() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	case tokString:
		return &Literal{Value: t.text}, nil
	case tokNumber:
		return number(t, false, p)
	case tokMinus:
		n, err := p.expect(tokNumber, "number after '-'")
		if err != nil {
			return nil, err
		}
		return number(n, true, p)
	case tokQuotedIdent:
		return &Column{Name: t.text, index: -1}, nil
	case tokIdent:
		switch t.text {
		case "True", "true":
			return &Literal{Value: true}, nil
		case "False", "false":
			return &Literal{Value: false}, nil
		case "None", "null", "NaN", "nan":
			return &Literal{Value: nil}, nil
		}
		if t.keyword("and") || t.keyword("or") || t.keyword("not") || t.keyword("in") {
			return nil, p.errorf(t, "expected operand")
		}
		return &Column{Name: t.text, index: -1}, nil
	}
	return nil, p.errorf(t, "expected operand")
}

func number(t token, negative bool, p *parser) (Node, error) {
	text := t.text
	if negative {
		text = "-" + text
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return &Literal{Value: i}, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf(t, "malformed number")
	}
	return &Literal{Value: f}, nil
}
