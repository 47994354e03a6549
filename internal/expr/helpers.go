package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmerrifield20/SecretTriage/internal/value"
)

type helperFunc func(args []value.Value) (value.Value, error)

// helpers is the complete set of callable names. None of them can reach
// process state; each is a pure function over scalars.
var helpers = map[string]helperFunc{
	"len":   helperLen,
	"str":   helperStr,
	"int":   helperInt,
	"float": helperFloat,
	"abs":   helperAbs,
	"min":   func(args []value.Value) (value.Value, error) { return extremum(args, -1) },
	"max":   func(args []value.Value) (value.Value, error) { return extremum(args, 1) },
	"sum":   helperSum,
}

// HelperNames returns the names callable from an expression.
//
// str renders booleans as "True" and "False" and null as "None". Integers
// and floats share one number type, so whole numbers render without a
// fraction: str(1.0) is "1", the same as str(1).
func HelperNames() []string {
	return []string{"len", "str", "int", "float", "abs", "min", "max", "sum"}
}

// finite reports whether f is neither NaN nor infinite. Helpers never hand a
// non-finite number back to an expression.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func exactlyOne(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Null(), fmt.Errorf("takes exactly one argument (%d given)", len(args))
	}
	return args[0], nil
}

func helperLen(args []value.Value) (value.Value, error) {
	x, err := exactlyOne(args)
	if err != nil {
		return value.Null(), err
	}
	s, ok := x.AsString()
	if !ok {
		return value.Null(), fmt.Errorf("object of type %s has no len()", x.Kind())
	}
	return value.Int(utf8.RuneCountInString(s)), nil
}

func helperStr(args []value.Value) (value.Value, error) {
	x, err := exactlyOne(args)
	if err != nil {
		return value.Null(), err
	}
	if b, ok := x.AsBool(); ok {
		if b {
			return value.String("True"), nil
		}
		return value.String("False"), nil
	}
	if x.IsNull() {
		return value.String("None"), nil
	}
	return value.String(x.String()), nil
}

func helperInt(args []value.Value) (value.Value, error) {
	x, err := exactlyOne(args)
	if err != nil {
		return value.Null(), err
	}
	if s, ok := x.AsString(); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return value.Null(), fmt.Errorf("invalid literal %q", s)
		}
		return value.Number(float64(i)), nil
	}
	f, ok := x.Numeric()
	if !ok || !finite(f) {
		return value.Null(), fmt.Errorf("cannot convert %s to int", x.Kind())
	}
	return value.Number(math.Trunc(f)), nil
}

func helperFloat(args []value.Value) (value.Value, error) {
	x, err := exactlyOne(args)
	if err != nil {
		return value.Null(), err
	}
	if s, ok := x.AsString(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || !finite(f) {
			return value.Null(), fmt.Errorf("could not convert %q to a finite float", s)
		}
		return value.Number(f), nil
	}
	f, ok := x.Numeric()
	if !ok || !finite(f) {
		return value.Null(), fmt.Errorf("cannot convert %s to float", x.Kind())
	}
	return value.Number(f), nil
}

func helperAbs(args []value.Value) (value.Value, error) {
	x, err := exactlyOne(args)
	if err != nil {
		return value.Null(), err
	}
	f, ok := x.Numeric()
	if !ok {
		return value.Null(), fmt.Errorf("bad operand type %s", x.Kind())
	}
	return value.Number(math.Abs(f)), nil
}

// helperSum adds its numeric arguments. There are no collection values in
// the language, so it is variadic rather than taking an iterable.
func helperSum(args []value.Value) (value.Value, error) {
	total := 0.0
	for _, a := range args {
		f, ok := a.Numeric()
		if !ok {
			return value.Null(), fmt.Errorf("unsupported operand type %s", a.Kind())
		}
		total += f
	}
	if !finite(total) {
		return value.Null(), errors.New("sum overflows")
	}
	return value.Number(total), nil
}

// extremum implements min (sign -1) and max (sign 1). A single string argument
// yields its smallest or largest character.
func extremum(args []value.Value, sign int) (value.Value, error) {
	switch len(args) {
	case 0:
		return value.Null(), errors.New("expected at least one argument")
	case 1:
		s, ok := args[0].AsString()
		if !ok {
			return value.Null(), fmt.Errorf("%s object is not iterable", args[0].Kind())
		}
		if s == "" {
			return value.Null(), errors.New("arg is an empty sequence")
		}
		best, _ := utf8.DecodeRuneInString(s)
		for _, r := range s {
			if (sign < 0 && r < best) || (sign > 0 && r > best) {
				best = r
			}
		}
		return value.String(string(best)), nil
	}

	best := args[0]
	for _, a := range args[1:] {
		c, ok := value.Compare(a, best)
		if !ok {
			return value.Null(), fmt.Errorf("cannot compare %s and %s", a.Kind(), best.Kind())
		}
		if c*sign > 0 {
			best = a
		}
	}
	return best, nil
}
