package kicadsexp

import (
	"bufio"
	"io"
	"strings"
)

// maxInlineWidth is the longest list that is kept on a single line.
const maxInlineWidth = 100

// Write serializes expressions to w, one top-level expression per line.
// Lists holding only atoms or flat lists stay on one line when short enough;
// anything deeper is broken up with one child list per tab-indented line,
// which is the layout KiCad itself produces.
func Write(w io.Writer, exprs ...Sexp) error {
	bw := bufio.NewWriter(w)
	for _, expr := range exprs {
		writeNode(bw, expr, 0)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Format returns the serialized form of a single expression.
func Format(expr Sexp) string {
	var b strings.Builder
	_ = Write(&b, expr)
	return b.String()
}

func writeNode(w *bufio.Writer, node Sexp, depth int) {
	list, ok := node.(*List)
	if !ok {
		w.WriteString(node.String())
		return
	}

	if nesting(list) <= 2 {
		if inline := list.String(); len(inline) <= maxInlineWidth {
			w.WriteString(inline)
			return
		}
	}

	w.WriteByte('(')
	for i, elem := range list.elements {
		if sub, ok := elem.(*List); ok {
			w.WriteByte('\n')
			w.WriteString(strings.Repeat("\t", depth+1))
			writeNode(w, sub, depth+1)
			continue
		}
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(elem.String())
	}
	if hasSublist(list) {
		w.WriteByte('\n')
		w.WriteString(strings.Repeat("\t", depth))
	}
	w.WriteByte(')')
}

// nesting returns 0 for atoms, 1 for flat lists, and so on.
func nesting(node Sexp) int {
	list, ok := node.(*List)
	if !ok {
		return 0
	}
	deepest := 0
	for _, elem := range list.elements {
		if d := nesting(elem); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

func hasSublist(list *List) bool {
	for _, elem := range list.elements {
		if _, ok := elem.(*List); ok {
			return true
		}
	}
	return false
}
