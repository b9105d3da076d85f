// Package units parses operator-entered lengths such as "1.4", "1.4mm",
// "55mil" or "0.5 in" into nanometres.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Nanometres per unit.
var scale = map[string]float64{
	"nm":   1,
	"um":   1e3,
	"µm":   1e3,
	"mm":   1e6,
	"cm":   1e7,
	"mil":  25400,
	"mils": 25400,
	"thou": 25400,
	"in":   25.4e6,
	"inch": 25.4e6,
}

// DefaultUnit applies when a length has no suffix.
const DefaultUnit = "mm"

// LengthLexer tokenizes a single length literal.
var LengthLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`},
	{Name: "Unit", Pattern: `(?i)(?:mils|mil|thou|inch|in|mm|cm|um|µm|nm)`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// LengthExpr is the grammar for one length literal.
type LengthExpr struct {
	Value float64 `parser:"@Number"`
	Unit  string  `parser:"@Unit?"`
}

var lengthParser = participle.MustBuild[LengthExpr](
	participle.Lexer(LengthLexer),
	participle.Elide("Whitespace"),
)

// ParseLength parses s into nanometres, rounding half away from zero.
func ParseLength(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("empty length")
	}

	expr, err := lengthParser.ParseString("", s)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q: %w", s, err)
	}

	unit := strings.ToLower(expr.Unit)
	if unit == "" {
		unit = DefaultUnit
	}
	factor, ok := scale[unit]
	if !ok {
		return 0, fmt.Errorf("invalid length %q: unknown unit %q", s, expr.Unit)
	}

	nm := expr.Value * factor
	if math.IsInf(nm, 0) || math.IsNaN(nm) || math.Abs(nm) > math.MaxInt64/2 {
		return 0, fmt.Errorf("invalid length %q: out of range", s)
	}
	return int64(math.Round(nm)), nil
}

// Length is a nanometre value that implements pflag.Value and
// encoding.TextUnmarshaler, so it can be bound to flags and TOML fields.
type Length int64

// String renders the length in millimetres.
func (l Length) String() string {
	return fmt.Sprintf("%gmm", float64(l)/scale["mm"])
}

// Set implements pflag.Value.
func (l *Length) Set(s string) error {
	nm, err := ParseLength(s)
	if err != nil {
		return err
	}
	*l = Length(nm)
	return nil
}

// Type implements pflag.Value.
func (l *Length) Type() string {
	return "length"
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Length) UnmarshalText(text []byte) error {
	return l.Set(string(text))
}

// UnmarshalTOML accepts a quoted length with an optional unit, or a bare
// TOML number taken as millimetres.
func (l *Length) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		return l.Set(v)
	case int64:
		return l.Set(strconv.FormatInt(v, 10))
	case float64:
		return l.Set(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return fmt.Errorf("invalid length %v: expected a string or number", v)
}

// MarshalText implements encoding.TextMarshaler.
func (l Length) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
