// Package condition implements the boolean filter language used by event
// processors, e.g.
//
//	context.event_source == "browser" AND NOT data.problem_id exists
//
// Field paths are dotted and resolved like router match params. A
// comparison against a missing field is false (and != is true).
package condition

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
)

// Filter is a compiled expression.
type Filter struct {
	src  string
	root node
}

// Compile parses src into a Filter.
func Compile(src string) (*Filter, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("condition %q: unexpected %q at position %d", src, t.val, t.pos)
	}
	return &Filter{src: src, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Filter {
	f, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return f
}

// Match evaluates the filter against rec.
func (f *Filter) Match(rec map[string]interface{}) (bool, error) {
	return f.root.eval(rec)
}

func (f *Filter) String() string { return f.src }

type node interface {
	eval(rec map[string]interface{}) (bool, error)
}

type andNode struct{ left, right node }

func (n andNode) eval(rec map[string]interface{}) (bool, error) {
	ok, err := n.left.eval(rec)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(rec)
}

type orNode struct{ left, right node }

func (n orNode) eval(rec map[string]interface{}) (bool, error) {
	ok, err := n.left.eval(rec)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(rec)
}

type notNode struct{ inner node }

func (n notNode) eval(rec map[string]interface{}) (bool, error) {
	ok, err := n.inner.eval(rec)
	return !ok, err
}

type existsNode struct{ path string }

func (n existsNode) eval(rec map[string]interface{}) (bool, error) {
	_, ok := event.Resolve(rec, n.path)
	return ok, nil
}

type operand interface {
	value(rec map[string]interface{}) (interface{}, bool)
}

type literal struct{ v interface{} }

func (l literal) value(map[string]interface{}) (interface{}, bool) { return l.v, true }

type field string

func (f field) value(rec map[string]interface{}) (interface{}, bool) {
	return event.Resolve(rec, string(f))
}

type comparison struct {
	op          string
	left, right operand
	re          *regexp.Regexp
}

func (c comparison) eval(rec map[string]interface{}) (bool, error) {
	l, lok := c.left.value(rec)
	r, rok := c.right.value(rec)
	if !lok || !rok {
		return c.op == "!=", nil
	}
	switch c.op {
	case "==":
		return Equal(l, r), nil
	case "!=":
		return !Equal(l, r), nil
	case ">", ">=", "<", "<=":
		return ordered(c.op, l, r)
	case "contains":
		return contains(l, r), nil
	case "matches":
		s, ok := l.(string)
		return ok && c.re.MatchString(s), nil
	}
	return false, fmt.Errorf("unknown operator %q", c.op)
}

// Equal compares two decoded values. Numbers are compared by value so an int
// from YAML equals a float64 from JSON; maps and lists must match element by
// element.
func Equal(a, b interface{}) bool {
	af, aNum := number(a)
	bf, bNum := number(b)
	if aNum || bNum {
		return aNum && bNum && math.Abs(af-bf) < 1e-9
	}
	switch at := a.(type) {
	case nil:
		return b == nil
	case string:
		bs, ok := b.(string)
		return ok && at == bs
	case bool:
		bb, ok := b.(bool)
		return ok && at == bb
	case []interface{}:
		bl, ok := b.([]interface{})
		if !ok || len(at) != len(bl) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bl[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		bm, ok := b.(map[string]interface{})
		if !ok || len(at) != len(bm) {
			return false
		}
		for k, v := range at {
			bv, ok := bm[k]
			if !ok || !Equal(v, bv) {
				return false
			}
		}
		return true
	}
	return false
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func ordered(op string, l, r interface{}) (bool, error) {
	lf, lok := number(l)
	rf, rok := number(r)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s needs numeric operands, got %T and %T", op, l, r)
	}
	switch op {
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	case "<":
		return lf < rf, nil
	default:
		return lf <= rf, nil
	}
}

func contains(l, r interface{}) bool {
	switch lt := l.(type) {
	case string:
		rs, ok := r.(string)
		return ok && strings.Contains(lt, rs)
	case []interface{}:
		for _, e := range lt {
			if Equal(e, r) {
				return true
			}
		}
	}
	return false
}
