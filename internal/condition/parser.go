package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.val, word)
}

// or = and ( "OR" and )*
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

// and = unary ( "AND" unary )*
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

// unary = "NOT" unary | "(" or ")" | comparison
func (p *parser) parseUnary() (node, error) {
	if p.keyword("NOT") {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at position %d, got %q", t.pos, t.val)
		}
		return inner, nil
	}
	return p.parseComparison()
}

// comparison = path "exists" | operand op operand
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.keyword("exists") {
		f, ok := left.(field)
		if !ok {
			return nil, fmt.Errorf("exists needs a field path")
		}
		p.next()
		return existsNode{path: string(f)}, nil
	}

	t := p.next()
	var op string
	switch {
	case t.kind == tokOp:
		op = t.val
	case t.kind == tokIdent && (strings.EqualFold(t.val, "contains") || strings.EqualFold(t.val, "matches")):
		op = strings.ToLower(t.val)
	default:
		return nil, fmt.Errorf("expected comparison operator at position %d, got %q", t.pos, t.val)
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	cmp := comparison{op: op, left: left, right: right}
	if op == "matches" {
		lit, ok := right.(literal)
		pattern, isString := lit.v.(string)
		if !ok || !isString {
			return nil, fmt.Errorf("matches needs a string pattern")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("matches: invalid pattern %q: %w", pattern, err)
		}
		cmp.re = re
	}
	return cmp, nil
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return literal{t.val}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return literal{f}, nil
	case tokBool:
		return literal{t.val == "true"}, nil
	case tokNull:
		return literal{nil}, nil
	case tokIdent:
		return field(t.val), nil
	default:
		return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.val)
	}
}
