package condition

import "fmt"

// ParseError describes a rejected condition expression. No partial tree is
// produced alongside one.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition: parse error at %d: %s", e.Pos, e.Msg)
}

type tokenKind uint8

const (
	tokenIdent tokenKind = iota
	tokenLeftParen
	tokenRightParen
	tokenComma
	tokenInvalid
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input []rune
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: []rune(input)}
}

// peekRune returns the next unconsumed rune without advancing.
func (l *lexer) peekRune() (rune, bool) {
	if l.pos >= len(l.input) {
		return 0, false
	}
	return l.input[l.pos], true
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{}, false
	}
	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokenLeftParen, pos: start}, true
	case c == ')':
		l.pos++
		return token{kind: tokenRightParen, pos: start}, true
	case c == ',':
		l.pos++
		return token{kind: tokenComma, pos: start}, true
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenIdent, text: string(l.input[start:l.pos]), pos: start}, true
	default:
		l.pos++
		return token{kind: tokenInvalid, text: string(c), pos: start}, true
	}
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '_'
}

type parser struct {
	lex  *lexer
	curr *token
}

// Parse builds a Condition from its textual form:
//
//	cond := Not(cond) | And(cond, cond{, cond}) | Or(cond, cond{, cond}) | identifier
//
// And/Or require at least two arguments. An identifier other than the three
// operators directly followed by '(' is rejected rather than read as an atom.
func Parse(input string) (*Condition, error) {
	p := &parser{lex: newLexer(input)}
	p.advance()
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if p.curr != nil {
		return nil, p.errExpected("unexpected trailing input")
	}
	return cond, nil
}

// MustParse parses or panics; for statically known expressions.
func MustParse(input string) *Condition {
	c, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return c
}

func (p *parser) advance() {
	if tok, ok := p.lex.next(); ok {
		p.curr = &tok
	} else {
		p.curr = nil
	}
}

// errExpected reports a positioned error for the current token, naming the
// offending character when the lexer could not tokenize it.
func (p *parser) errExpected(msg string) *ParseError {
	if p.curr == nil {
		return &ParseError{Pos: p.lex.pos, Msg: msg}
	}
	if p.curr.kind == tokenInvalid {
		return &ParseError{Pos: p.curr.pos, Msg: fmt.Sprintf("invalid character %q", p.curr.text)}
	}
	return &ParseError{Pos: p.curr.pos, Msg: msg}
}

func (p *parser) parseCondition() (*Condition, error) {
	if p.curr == nil || p.curr.kind != tokenIdent {
		return nil, p.errExpected("expected 'Not', 'And', 'Or' or identifier")
	}
	switch p.curr.text {
	case "Not":
		return p.parseNot()
	case "And":
		kind, children, err := p.parseGroup("And")
		if err != nil {
			return nil, err
		}
		return &Condition{kind: kind, children: children}, nil
	case "Or":
		kind, children, err := p.parseGroup("Or")
		if err != nil {
			return nil, err
		}
		return &Condition{kind: kind, children: children}, nil
	default:
		// An unknown identifier immediately followed by '(' is an invalid
		// operator, not an atom.
		if next, ok := p.lex.peekRune(); ok && next == '(' {
			return nil, &ParseError{
				Pos: p.curr.pos,
				Msg: fmt.Sprintf("invalid operator %q, only 'And', 'Or', 'Not' are allowed", p.curr.text),
			}
		}
		name := p.curr.text
		p.advance()
		return ID(name), nil
	}
}

func (p *parser) parseNot() (*Condition, error) {
	p.advance() // "Not"
	if p.curr == nil || p.curr.kind != tokenLeftParen {
		return nil, p.errExpected("expected '(' after 'Not'")
	}
	p.advance() // '('
	inner, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if p.curr == nil || p.curr.kind != tokenRightParen {
		return nil, p.errExpected("expected ')' after inner condition")
	}
	p.advance() // ')'
	return &Condition{kind: KindNot, children: []*Condition{inner}}, nil
}

func (p *parser) parseGroup(op string) (Kind, []*Condition, error) {
	pos := p.curr.pos
	p.advance() // operator
	if p.curr == nil || p.curr.kind != tokenLeftParen {
		return 0, nil, p.errExpected(fmt.Sprintf("expected '(' after %q", op))
	}
	p.advance() // '('

	var children []*Condition
	first, err := p.parseCondition()
	if err != nil {
		return 0, nil, err
	}
	children = append(children, first)

	for p.curr != nil && p.curr.kind == tokenComma {
		p.advance() // ','
		next, err := p.parseCondition()
		if err != nil {
			return 0, nil, err
		}
		children = append(children, next)
	}

	if p.curr == nil || p.curr.kind != tokenRightParen {
		return 0, nil, p.errExpected("expected ')' after inner conditions")
	}
	p.advance() // ')'

	if len(children) < 2 {
		return 0, nil, &ParseError{Pos: pos, Msg: fmt.Sprintf("expected at least 2 conditions after %q", op)}
	}
	kind := KindAnd
	if op == "Or" {
		kind = KindOr
	}
	return kind, children, nil
}
