package kicadsexp

import (
	"bufio"
	"fmt"
	"io"
)

// Pos is a 1-based line and byte column in the input.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// SyntaxError reports malformed input and where it was found.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokOpen
	tokClose
	tokSymbol
	tokString
)

type token struct {
	kind tokenKind
	text string
	pos  Pos
}

// lexer splits a byte stream into parentheses, bare symbols and quoted
// strings. Board files are UTF-8, but every delimiter is ASCII, so the
// lexer works on bytes and passes multi-byte runes through untouched.
type lexer struct {
	r   *bufio.Reader
	pos Pos // position of the next unread byte
	buf []byte
}

func newLexer(r io.Reader) *lexer {
	return &lexer{
		r:   bufio.NewReader(r),
		pos: Pos{Line: 1, Col: 1},
	}
}

func (l *lexer) next() (token, error) {
	for {
		start := l.pos
		b, err := l.read()
		if err == io.EOF {
			return token{kind: tokEOF, pos: start}, nil
		}
		if err != nil {
			return token{}, err
		}

		switch {
		case isSpace(b):
			continue
		case b == '(':
			return token{kind: tokOpen, text: "(", pos: start}, nil
		case b == ')':
			return token{kind: tokClose, text: ")", pos: start}, nil
		case b == '"':
			return l.quoted(start)
		default:
			return l.bare(start, b)
		}
	}
}

func (l *lexer) read() (byte, error) {
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b == '\n' {
		l.pos.Line++
		l.pos.Col = 1
	} else {
		l.pos.Col++
	}
	return b, nil
}

// peek returns the next byte without consuming it.
func (l *lexer) peek() (byte, error) {
	b, err := l.r.ReadByte()
	if err != nil {
		return 0, err
	}
	return b, l.r.UnreadByte()
}

// bare reads a symbol: keywords, numbers and unquoted identifiers.
func (l *lexer) bare(start Pos, first byte) (token, error) {
	l.buf = append(l.buf[:0], first)
	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return token{}, err
		}
		if isSpace(b) || b == '(' || b == ')' || b == '"' {
			break
		}
		l.read()
		l.buf = append(l.buf, b)
	}
	return token{kind: tokSymbol, text: string(l.buf), pos: start}, nil
}

// quoted reads a string after its opening quote and resolves escapes.
// Unknown escapes keep the escaped byte.
func (l *lexer) quoted(start Pos) (token, error) {
	l.buf = l.buf[:0]
	for {
		b, err := l.read()
		if err == io.EOF {
			return token{}, &SyntaxError{Pos: start, Msg: "unterminated string"}
		}
		if err != nil {
			return token{}, err
		}

		switch b {
		case '"':
			return token{kind: tokString, text: string(l.buf), pos: start}, nil
		case '\\':
			esc, err := l.read()
			if err == io.EOF {
				return token{}, &SyntaxError{Pos: start, Msg: "unterminated string"}
			}
			if err != nil {
				return token{}, err
			}
			switch esc {
			case 'n':
				esc = '\n'
			case 't':
				esc = '\t'
			case 'r':
				esc = '\r'
			}
			l.buf = append(l.buf, esc)
		default:
			l.buf = append(l.buf, b)
		}
	}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
