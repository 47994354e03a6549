package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jmerrifield20/SecretTriage/internal/value"
)

var errDivZero = errors.New("division by zero")

func (n *literal) eval(value.Value) (value.Value, error) { return n.v, nil }

func (n *variable) eval(in value.Value) (value.Value, error) { return in, nil }

func (n *unaryOp) eval(in value.Value) (value.Value, error) {
	x, err := n.x.eval(in)
	if err != nil {
		return value.Null(), err
	}
	if n.op == "not" {
		return value.Bool(!x.Truthy()), nil
	}
	f, ok := x.Numeric()
	if !ok {
		return value.Null(), fmt.Errorf("bad operand type for unary %s: %s", n.op, x.Kind())
	}
	if n.op == "-" {
		return value.Number(-f), nil
	}
	return value.Number(f), nil
}

// eval short-circuits and yields the deciding operand, not a coerced bool.
func (n *logicalOp) eval(in value.Value) (value.Value, error) {
	l, err := n.l.eval(in)
	if err != nil {
		return value.Null(), err
	}
	if n.and != l.Truthy() {
		return l, nil
	}
	return n.r.eval(in)
}

func (n *binaryOp) eval(in value.Value) (value.Value, error) {
	l, err := n.l.eval(in)
	if err != nil {
		return value.Null(), err
	}
	r, err := n.r.eval(in)
	if err != nil {
		return value.Null(), err
	}

	switch n.op {
	case "==":
		return value.Bool(equal(l, r)), nil
	case "!=":
		return value.Bool(!equal(l, r)), nil
	case "<", "<=", ">", ">=":
		c, ok := value.Compare(l, r)
		if !ok {
			return value.Null(), fmt.Errorf("cannot compare %s %s %s", l.Kind(), n.op, r.Kind())
		}
		return value.Bool(orderHolds(n.op, c)), nil
	case "in", "not in":
		needle, lok := l.AsString()
		hay, rok := r.AsString()
		if !lok || !rok {
			return value.Null(), fmt.Errorf("'in' requires strings, got %s and %s", l.Kind(), r.Kind())
		}
		found := strings.Contains(hay, needle)
		return value.Bool(found == (n.op == "in")), nil
	case "+":
		if ls, ok := l.AsString(); ok {
			rs, ok := r.AsString()
			if !ok {
				return value.Null(), fmt.Errorf("cannot concatenate string and %s", r.Kind())
			}
			if len(ls)+len(rs) > maxStringLen {
				return value.Null(), fmt.Errorf("string result exceeds %d bytes", maxStringLen)
			}
			return value.String(ls + rs), nil
		}
	}

	a, aok := l.Numeric()
	b, bok := r.Numeric()
	if !aok || !bok {
		return value.Null(), fmt.Errorf("unsupported operand types for %s: %s and %s", n.op, l.Kind(), r.Kind())
	}
	switch n.op {
	case "+":
		return value.Number(a + b), nil
	case "-":
		return value.Number(a - b), nil
	case "*":
		return value.Number(a * b), nil
	case "/":
		if b == 0 {
			return value.Null(), errDivZero
		}
		return value.Number(a / b), nil
	case "%":
		if b == 0 {
			return value.Null(), errDivZero
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return value.Number(m), nil
	}
	return value.Null(), fmt.Errorf("unknown operator %q", n.op)
}

func (n *call) eval(in value.Value) (value.Value, error) {
	args := make([]value.Value, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(in)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}
	out, err := n.fn(args)
	if err != nil {
		return value.Null(), fmt.Errorf("%s(): %w", n.name, err)
	}
	return out, nil
}

// equal is LooseEqual plus null == null.
func equal(l, r value.Value) bool {
	if l.IsNull() || r.IsNull() {
		return l.IsNull() && r.IsNull()
	}
	return value.LooseEqual(l, r)
}

func orderHolds(op string, c int) bool {
	switch op {
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
