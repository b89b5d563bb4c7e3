package pointcut

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/roach88/weave/internal/ir"
)

// ParseError reports a malformed pointcut expression.
type ParseError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pointcut %q: %s at offset %d", e.Expr, e.Msg, e.Offset)
}

// IsParseError reports whether err (or anything it wraps) is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse compiles a pointcut expression into a Predicate.
//
// Grammar:
//
//	expr    = or
//	or      = and { "||" and }
//	and     = unary { "&&" unary }
//	unary   = "!" unary | primary
//	primary = "(" expr ")" | designator "(" [ arg { "," arg } ] ")"
//
// Designators:
//
//	execution(<name glob>)     operation name
//	within(<group glob>[+])    operation group, "+" includes subgroups
//	@annotation(<tag>)         operation tag
//	args(<kind>, ..., [..])    parameter kinds, ".." allows more
//	any()                      every operation
func Parse(expr string) (Predicate, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: expr, toks: toks}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.fail(tok, "unexpected %q", tok.text)
	}
	return pred, nil
}

// MustParse is like Parse but panics on error.
// Use only for expressions known at compile time.
func MustParse(expr string) Predicate {
	pred, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return pred
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokLParen
	tokRParen
	tokComma
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isWordByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_.*?[]-+@/^", c) >= 0
}

func lex(expr string) ([]token, error) {
	var toks []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '!':
			toks = append(toks, token{tokNot, "!", i})
			i++
		case strings.HasPrefix(expr[i:], "&&"):
			toks = append(toks, token{tokAnd, "&&", i})
			i += 2
		case strings.HasPrefix(expr[i:], "||"):
			toks = append(toks, token{tokOr, "||", i})
			i += 2
		case isWordByte(c):
			start := i
			for i < len(expr) && isWordByte(expr[i]) {
				i++
			}
			toks = append(toks, token{tokWord, expr[start:i], start})
		default:
			return nil, errors.WithStack(&ParseError{Expr: expr, Offset: i, Msg: fmt.Sprintf("unexpected character %q", c)})
		}
	}
	return append(toks, token{tokEOF, "end of expression", len(expr)}), nil
}

type parser struct {
	expr string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) fail(tok token, format string, args ...any) error {
	return errors.WithStack(&ParseError{Expr: p.expr, Offset: tok.pos, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, p.fail(tok, "expected %s, found %q", what, tok.text)
	}
	return tok, nil
}

func (p *parser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []Predicate{left}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	return Or(operands...), nil
}

func (p *parser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := []Predicate{left}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	return And(operands...), nil
}

func (p *parser) parseUnary() (Predicate, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Predicate, error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		return inner, nil
	case tokWord:
		return p.parseDesignator(tok)
	default:
		return nil, p.fail(tok, "expected designator or \"(\", found %q", tok.text)
	}
}

func (p *parser) parseDesignator(name token) (Predicate, error) {
	if _, err := p.expect(tokLParen, `"(" after `+name.text); err != nil {
		return nil, err
	}
	args, err := p.parseArgs()
	if err != nil {
		return nil, err
	}

	switch name.text {
	case "execution":
		pattern, err := p.single(name, args)
		if err != nil {
			return nil, err
		}
		if err := checkGlob(pattern); err != nil {
			return nil, errors.Wrapf(err, "execution(%s)", pattern)
		}
		return Name(pattern), nil
	case "within":
		pattern, err := p.single(name, args)
		if err != nil {
			return nil, err
		}
		if err := checkGlob(strings.TrimSuffix(pattern, "+")); err != nil {
			return nil, errors.Wrapf(err, "within(%s)", pattern)
		}
		return Group(pattern), nil
	case "@annotation":
		tag, err := p.single(name, args)
		if err != nil {
			return nil, err
		}
		return Tag(tag), nil
	case "args":
		return p.argsPredicate(name, args)
	case "any":
		if len(args) != 0 {
			return nil, p.fail(name, "any() takes no arguments")
		}
		return Any(), nil
	default:
		return nil, p.fail(name, "unknown designator %q", name.text)
	}
}

func (p *parser) parseArgs() ([]token, error) {
	var args []token
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.expect(tokWord, "argument")
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.next()
		switch tok.kind {
		case tokRParen:
			return args, nil
		case tokComma:
		default:
			return nil, p.fail(tok, `expected "," or ")", found %q`, tok.text)
		}
	}
}

func (p *parser) single(name token, args []token) (string, error) {
	if len(args) != 1 {
		return "", p.fail(name, "%s() takes exactly one argument, got %d", name.text, len(args))
	}
	return args[0].text, nil
}

func (p *parser) argsPredicate(name token, args []token) (Predicate, error) {
	kinds := make([]ir.Kind, 0, len(args))
	open := false
	for i, arg := range args {
		if arg.text == ".." {
			if i != len(args)-1 {
				return nil, p.fail(arg, `".." must be the last argument`)
			}
			open = true
			continue
		}
		k := ir.Kind(arg.text)
		if !k.ValidParam() {
			return nil, p.fail(arg, "unknown kind %q in %s()", arg.text, name.text)
		}
		kinds = append(kinds, k)
	}
	return Args(open, kinds...), nil
}

func checkGlob(pattern string) error {
	if pattern == "" {
		return errors.New("empty pattern")
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return errors.Wrap(err, "invalid glob")
	}
	return nil
}
