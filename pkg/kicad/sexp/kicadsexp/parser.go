package kicadsexp

import (
	"io"
)

// Parser reads top-level s-expressions one at a time. Lists are built with
// an explicit stack, so nesting depth is bounded by memory only.
type Parser struct {
	lex *lexer
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{lex: newLexer(r)}
}

type frame struct {
	list *List
	pos  Pos
}

// Next returns the next top-level expression, or io.EOF once the input holds
// nothing but whitespace.
func (p *Parser) Next() (Sexp, error) {
	var stack []frame

	for {
		tok, err := p.lex.next()
		if err != nil {
			return nil, err
		}

		var expr Sexp
		switch tok.kind {
		case tokEOF:
			if len(stack) == 0 {
				return nil, io.EOF
			}
			return nil, &SyntaxError{Pos: stack[len(stack)-1].pos, Msg: "unclosed list"}
		case tokOpen:
			stack = append(stack, frame{list: &List{}, pos: tok.pos})
			continue
		case tokClose:
			if len(stack) == 0 {
				return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected ')'"}
			}
			expr = stack[len(stack)-1].list
			stack = stack[:len(stack)-1]
		case tokSymbol:
			expr = Symbol(tok.text)
		case tokString:
			expr = String(tok.text)
		}

		if len(stack) == 0 {
			return expr, nil
		}
		top := stack[len(stack)-1].list
		top.elements = append(top.elements, expr)
	}
}

// ParseAll parses every top-level expression in the input.
func (p *Parser) ParseAll() ([]Sexp, error) {
	var result []Sexp
	for {
		expr, err := p.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		result = append(result, expr)
	}
}
