package sexp

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp/kicadsexp"
)

// S-expression navigation helpers

// FindNode searches for a child list with the given key (first symbol)
// Example: FindNode(sexp, "start") finds (start 100 50) in a segment
func FindNode(s kicadsexp.Sexp, key string) (*kicadsexp.List, bool) {
	list, ok := s.(*kicadsexp.List)
	if !ok {
		return nil, false
	}

	for _, item := range list.Elements() {
		sub, ok := item.(*kicadsexp.List)
		if !ok {
			continue
		}
		if name, err := GetNodeName(sub); err == nil && name == key {
			return sub, true
		}
	}

	return nil, false
}

// FindAllNodes finds all child lists with the given key
func FindAllNodes(s kicadsexp.Sexp, key string) []*kicadsexp.List {
	var results []*kicadsexp.List

	list, ok := s.(*kicadsexp.List)
	if !ok {
		return results
	}

	for _, item := range list.Elements() {
		sub, ok := item.(*kicadsexp.List)
		if !ok {
			continue
		}
		if name, err := GetNodeName(sub); err == nil && name == key {
			results = append(results, sub)
		}
	}

	return results
}

// GetListItems returns all items in a list (excluding the first symbol/key)
// Example: GetListItems((layers "F.Cu" "B.Cu")) returns ["F.Cu", "B.Cu"]
func GetListItems(s kicadsexp.Sexp) []kicadsexp.Sexp {
	list, ok := s.(*kicadsexp.List)
	if !ok || list.Len() <= 1 {
		return []kicadsexp.Sexp{}
	}
	return list.Elements()[1:]
}

// Typed value extraction helpers

// GetString extracts the text of the atom at the given index, quoted or not.
// Index 0 is the key, 1 is first value, etc.
func GetString(s kicadsexp.Sexp, index int) (string, error) {
	list, ok := s.(*kicadsexp.List)
	if !ok {
		return "", fmt.Errorf("expected list, got leaf")
	}

	if index < 0 || index >= list.Len() {
		return "", fmt.Errorf("index %d out of bounds (length %d)", index, list.Len())
	}

	value, ok := kicadsexp.AtomValue(list.Get(index))
	if !ok {
		return "", fmt.Errorf("expected atom at index %d, got %T", index, list.Get(index))
	}
	return value, nil
}

// GetInt extracts an int value at the given index
func GetInt(s kicadsexp.Sexp, index int) (int, error) {
	str, err := GetString(s, index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}

	return val, nil
}

// GetLength extracts a millimetre value at the given index as nanometres
func GetLength(s kicadsexp.Sexp, index int) (int64, error) {
	str, err := GetString(s, index)
	if err != nil {
		return 0, err
	}
	return ParseMM(str)
}

// GetPositionXY extracts X,Y coordinates from (start X Y), (end X Y), (at X Y ...)
func GetPositionXY(s kicadsexp.Sexp) (Position, error) {
	if s.IsLeaf() {
		return Position{}, fmt.Errorf("expected position list")
	}

	x, err := GetLength(s, 1)
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse X: %w", err)
	}

	y, err := GetLength(s, 2)
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse Y: %w", err)
	}

	return Position{X: x, Y: y}, nil
}

// HasSymbol checks if a list contains a specific bare symbol
func HasSymbol(s kicadsexp.Sexp, symbol string) bool {
	list, ok := s.(*kicadsexp.List)
	if !ok {
		return false
	}

	for _, item := range list.Elements() {
		if sym, ok := item.(kicadsexp.Symbol); ok && string(sym) == symbol {
			return true
		}
	}

	return false
}

// GetNodeName returns the first symbol of a list (the node type/name)
func GetNodeName(s kicadsexp.Sexp) (string, error) {
	if s.IsLeaf() {
		if sym, ok := s.(kicadsexp.Symbol); ok {
			return string(sym), nil
		}
		return "", fmt.Errorf("expected symbol leaf")
	}

	head := s.Head()
	if sym, ok := head.(kicadsexp.Symbol); ok {
		return string(sym), nil
	}

	return "", fmt.Errorf("expected symbol at head of list")
}

// GetUUID extracts the identifier of an item from its (uuid "...") child,
// falling back to the pre-KiCad 8 (tstamp ...) form. The keyword found is
// returned alongside so writers can answer in the same dialect.
func GetUUID(s kicadsexp.Sexp) (UUID, string, error) {
	for _, key := range []string{"uuid", "tstamp"} {
		node, ok := FindNode(s, key)
		if !ok {
			continue
		}
		id, err := GetString(node, 1)
		if err != nil {
			return "", key, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		return UUID(id), key, nil
	}
	return "", "", fmt.Errorf("missing uuid")
}

// Node builders

// Mm returns a bare millimetre atom for the given nanometre value.
func Mm(nm int64) kicadsexp.Symbol {
	return kicadsexp.Symbol(FormatMM(nm))
}

// XY builds a (key X Y) node in millimetres.
func XY(key string, p Position) *kicadsexp.List {
	return kicadsexp.NewList(kicadsexp.Symbol(key), Mm(p.X), Mm(p.Y))
}
