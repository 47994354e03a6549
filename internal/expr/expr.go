// Package expr implements the restricted expression language used by
// custom_expr features.
//
// Expressions are parsed into an AST when a feature snapshot is compiled and
// evaluated by walking that tree. The grammar has arithmetic, comparisons,
// boolean connectives, string containment and calls to a fixed set of helpers
// (len, str, int, float, abs, min, max, sum). The only free name is the single
// bound variable. There is no attribute access, indexing, assignment or any
// other way to name something outside the expression, so a stored expression
// can compute a value and nothing else.
package expr

import (
	"errors"
	"fmt"

	"github.com/jmerrifield20/SecretTriage/internal/value"
)

const (
	maxSourceLen = 4096
	maxDepth     = 64
	maxArgs      = 32
	maxStringLen = 64 << 10
)

// NameError reports an identifier outside the allow-list.
type NameError struct {
	Name string
	Pos  int
}

func (e *NameError) Error() string {
	return fmt.Sprintf("name %q is not allowed (at %d)", e.Name, e.Pos)
}

// ErrEmpty is returned by Compile for a blank expression.
var ErrEmpty = errors.New("empty expression")

// Program is a compiled expression bound to one variable name.
// A Program is immutable and safe for concurrent use.
type Program struct {
	src     string
	varName string
	root    node
}

// Compile parses src and resolves every name against varName and the helper
// set. Any syntax or name outside the grammar is an error; nothing is
// evaluated during compilation.
func Compile(src, varName string) (*Program, error) {
	if len(src) > maxSourceLen {
		return nil, fmt.Errorf("expression longer than %d bytes", maxSourceLen)
	}
	if !validIdent(varName) {
		return nil, fmt.Errorf("invalid variable name %q", varName)
	}
	if _, clash := helpers[varName]; clash {
		return nil, fmt.Errorf("variable name %q shadows a helper", varName)
	}

	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if len(toks) == 1 {
		return nil, ErrEmpty
	}

	p := &parser{toks: toks, varName: varName}
	root, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("compile: unexpected %s at %d", t, t.pos)
	}
	return &Program{src: src, varName: varName, root: root}, nil
}

// Eval runs the program with the bound variable set to in.
func (p *Program) Eval(in value.Value) (value.Value, error) {
	return p.root.eval(in)
}

// Source returns the expression text.
func (p *Program) Source() string { return p.src }

// Var returns the bound variable name.
func (p *Program) Var() string { return p.varName }

// Eval compiles and evaluates src in one step.
func Eval(src, varName string, in value.Value) (value.Value, error) {
	prog, err := Compile(src, varName)
	if err != nil {
		return value.Null(), err
	}
	return prog.Eval(in)
}

func validIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentStart(s[i]) && !isDigit(s[i]) {
			return false
		}
	}
	switch s {
	case "and", "or", "not", "in", "true", "false", "True", "False", "null", "None":
		return false
	}
	return true
}
