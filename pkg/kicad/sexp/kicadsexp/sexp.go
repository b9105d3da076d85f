// Package kicadsexp provides a lightweight streaming S-expression parser
// and writer for KiCad board files. Unlike general-purpose sexp libraries,
// it keeps quoted strings distinct from bare symbols so a parsed file can be
// edited and written back without changing its meaning.
package kicadsexp

import (
	"io"
	"strings"
)

// Sexp represents an S-expression node.
// It can be either a leaf (atom) or a list.
type Sexp interface {
	// IsLeaf returns true if this is an atom (not a list)
	IsLeaf() bool

	// Head returns the first element of a list (the atom itself for atoms)
	Head() Sexp

	// String returns the string representation
	String() string
}

// Symbol represents a bare atom (keyword, number, identifier)
type Symbol string

func (s Symbol) IsLeaf() bool   { return true }
func (s Symbol) Head() Sexp     { return s }
func (s Symbol) String() string { return string(s) }

// String represents a quoted atom. The value is stored unescaped.
type String string

func (s String) IsLeaf() bool   { return true }
func (s String) Head() Sexp     { return s }
func (s String) String() string { return quote(string(s)) }

// AtomValue returns the textual value of a Symbol or String atom.
func AtomValue(s Sexp) (string, bool) {
	switch v := s.(type) {
	case Symbol:
		return string(v), true
	case String:
		return string(v), true
	}
	return "", false
}

// List represents a list of S-expressions
type List struct {
	elements []Sexp
}

// NewList builds a list from the given elements.
func NewList(elements ...Sexp) *List {
	return &List{elements: elements}
}

func (l *List) IsLeaf() bool { return false }

func (l *List) Head() Sexp {
	if len(l.elements) == 0 {
		return nil
	}
	return l.elements[0]
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, elem := range l.elements {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(elem.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Get returns the element at the given index
func (l *List) Get(index int) Sexp {
	if index < 0 || index >= len(l.elements) {
		return nil
	}
	return l.elements[index]
}

// Len returns the number of elements in the list
func (l *List) Len() int {
	return len(l.elements)
}

// Elements returns the list elements. The slice is shared with the list.
func (l *List) Elements() []Sexp {
	return l.elements
}

// Append adds elements to the end of the list.
func (l *List) Append(elems ...Sexp) {
	l.elements = append(l.elements, elems...)
}

// Replace substitutes the first element identical to target with the given
// elements, keeping their position, and reports whether target was found.
func (l *List) Replace(target Sexp, with ...Sexp) bool {
	for i, elem := range l.elements {
		if elem == target {
			out := make([]Sexp, 0, len(l.elements)-1+len(with))
			out = append(out, l.elements[:i]...)
			out = append(out, with...)
			out = append(out, l.elements[i+1:]...)
			l.elements = out
			return true
		}
	}
	return false
}

// Parse parses S-expressions from an io.Reader.
func Parse(r io.Reader) ([]Sexp, error) {
	parser := NewParser(r)
	return parser.ParseAll()
}

// ParseString parses S-expressions from a string (convenience function)
func ParseString(s string) ([]Sexp, error) {
	return Parse(strings.NewReader(s))
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
