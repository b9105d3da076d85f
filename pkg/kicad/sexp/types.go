// Package sexp provides shared S-expression helpers for KiCad files.
// Coordinates are carried as integer nanometres, KiCad's internal unit;
// board files spell them as decimal millimetres with at most six fraction
// digits, so the conversion in both directions is exact.
package sexp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate conversion constants
const (
	NanometersPerMM = 1_000_000
	MMToNanometers  = 1e6 // Convert mm to nm (multiply by this)
)

// Position is a 2D coordinate in nanometres
type Position struct {
	X int64
	Y int64
}

// UUID represents a unique identifier (uuid in KiCad 8+, tstamp before)
type UUID string

// FromMM converts millimetres to nanometres, rounding half away from zero.
func FromMM(mm float64) int64 {
	return int64(math.Round(mm * MMToNanometers))
}

// ParseMM parses a decimal millimetre token as written in board files.
func ParseMM(s string) (int64, error) {
	mm, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse length %q: %w", s, err)
	}
	if math.IsInf(mm, 0) || math.IsNaN(mm) {
		return 0, fmt.Errorf("length %q is not finite", s)
	}
	return FromMM(mm), nil
}

// FormatMM renders nanometres as the shortest exact decimal millimetre string.
// 1400000 -> "1.4", -500000 -> "-0.5", 2000000 -> "2".
func FormatMM(nm int64) string {
	sign := ""
	if nm < 0 {
		sign = "-"
		nm = -nm
	}
	whole := nm / NanometersPerMM
	frac := nm % NanometersPerMM
	if frac == 0 {
		return sign + strconv.FormatInt(whole, 10)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fracStr)
}
