package expr

import (
	"fmt"

	"github.com/jmerrifield20/SecretTriage/internal/value"
)

// node is an AST node. The set of node types is closed: literals, the bound
// variable, operators and helper calls.
type node interface {
	eval(in value.Value) (value.Value, error)
}

type literal struct{ v value.Value }

type variable struct{}

type unaryOp struct {
	op string
	x  node
}

type binaryOp struct {
	op   string
	l, r node
}

type logicalOp struct {
	and  bool
	l, r node
}

type call struct {
	name string
	fn   helperFunc
	args []node
}

type parser struct {
	toks    []token
	pos     int
	depth   int
	varName string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) isWord(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("expression nested deeper than %d", maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpr() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isWord("or") || p.isOp("||") {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &logicalOp{and: false, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (node, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isWord("and") || p.isOp("&&") {
		p.next()
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &logicalOp{and: true, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isWord("not") || p.isOp("!") {
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryOp{op: "not", x: x}, nil
	}
	return p.parseCmp()
}

var cmpOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

func (p *parser) parseCmp() (node, error) {
	l, err := p.parseSum()
	if err != nil {
		return nil, err
	}

	var op string
	switch t := p.peek(); {
	case t.kind == tokOp && cmpOps[t.text]:
		op = t.text
		p.next()
	case p.isWord("in"):
		op = "in"
		p.next()
	case p.isWord("not") && p.pos+1 < len(p.toks) &&
		p.toks[p.pos+1].kind == tokIdent && p.toks[p.pos+1].text == "in":
		op = "not in"
		p.next()
		p.next()
	default:
		return l, nil
	}

	r, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); (t.kind == tokOp && cmpOps[t.text]) || p.isWord("in") {
		return nil, fmt.Errorf("chained comparison at %d is not supported", t.pos)
	}
	return &binaryOp{op: op, l: l, r: r}, nil
}

func (p *parser) parseSum() (node, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = &binaryOp{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseTerm() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%") {
		op := p.next().text
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &binaryOp{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.next().text
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryOp{op: op, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &literal{v: value.Number(t.num)}, nil
	case tokString:
		return &literal{v: value.String(t.text)}, nil
	case tokOp:
		if t.text == "(" {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.isOp(")") {
				return nil, fmt.Errorf("expected ')' at %d, got %s", p.peek().pos, p.peek())
			}
			p.next()
			return x, nil
		}
		return nil, fmt.Errorf("unexpected %s at %d", t, t.pos)
	case tokIdent:
		return p.parseName(t)
	}
	return nil, fmt.Errorf("unexpected %s", t)
}

// parseName resolves an identifier. Only the bound variable, the literal
// keywords and helper calls are accepted; every other name fails compilation.
func (p *parser) parseName(t token) (node, error) {
	switch t.text {
	case "true", "True":
		return &literal{v: value.Bool(true)}, nil
	case "false", "False":
		return &literal{v: value.Bool(false)}, nil
	case "null", "None":
		return &literal{v: value.Null()}, nil
	}

	if t.text == p.varName {
		if p.isOp("(") {
			return nil, fmt.Errorf("%q is not callable", t.text)
		}
		return &variable{}, nil
	}

	fn, ok := helpers[t.text]
	if !ok {
		return nil, &NameError{Name: t.text, Pos: t.pos}
	}
	if !p.isOp("(") {
		return nil, fmt.Errorf("helper %q must be called", t.text)
	}
	p.next()

	c := &call{name: t.text, fn: fn}
	if p.isOp(")") {
		p.next()
		return c, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.args = append(c.args, arg)
		if len(c.args) > maxArgs {
			return nil, fmt.Errorf("too many arguments to %s", t.text)
		}
		if p.isOp(",") {
			p.next()
			continue
		}
		if p.isOp(")") {
			p.next()
			return c, nil
		}
		return nil, fmt.Errorf("expected ',' or ')' at %d, got %s", p.peek().pos, p.peek())
	}
}
