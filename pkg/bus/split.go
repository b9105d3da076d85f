// Package bus replaces straight track segments with a bus of parallel
// segments centred on the original track.
//
// The work is split in three parts. Select filters a layout's segments by
// net. Split turns one segment into a Cluster of replacement segments and
// never touches the layout. A Driver runs both over a Model and commits one
// Transaction per segment.
//
// Geometry is computed in float64 and every emitted coordinate is rounded
// half away from zero to whole nanometres. The perpendicular used for the
// fan-out is always (dx, dy) -> (-dy, dx), so with KiCad's y-down screen
// coordinates the first segment of a cluster lies to the right of the
// direction of travel.
package bus

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Validate checks the configuration. It is called once per batch by the
// driver and again by every Split.
func (c SplitConfig) Validate() error {
	if c.Count < 1 {
		return newError(CodeInvalidSplitCount, "split count %d must be at least 1", c.Count)
	}
	if c.Width <= 0 {
		return newError(CodeInvalidWidth, "split width %d nm must be positive", c.Width)
	}
	if c.Separation < 0 {
		return newError(CodeInvalidSeparation, "separation %d nm must not be negative", c.Separation)
	}
	return nil
}

// GroupWidth is the overall width of the bus, edge to edge.
func GroupWidth(c SplitConfig) Length {
	n := Length(c.Count)
	return n*c.Width + (n-1)*c.Separation
}

// Offsets returns the signed centreline offset of every bus member from the
// original centreline, in nanometres. Offsets are exact multiples of 0.5.
func Offsets(c SplitConfig) []float64 {
	if c.Count < 1 {
		return nil
	}
	offsets := make([]float64, c.Count)
	gw := GroupWidth(c)
	pitch := c.Width + c.Separation
	for i := range offsets {
		// 2*offset is integral: -gw + 2*i*pitch + width
		twice := -gw + 2*Length(i)*pitch + c.Width
		offsets[i] = float64(twice) / 2
	}
	return offsets
}

// Perpendicular rotates v a quarter turn: (x, y) -> (-y, x).
func Perpendicular(v r2.Vec) r2.Vec {
	return r2.Vec{X: -v.Y, Y: v.X}
}

// Split computes the replacement cluster for one segment. The returned
// segments carry no handles; the Model issues them when the cluster's
// transaction is applied.
func Split(seg Segment, cfg SplitConfig) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if seg.Start == seg.End {
		return nil, &Error{
			Code:    CodeDegenerateSegment,
			Message: "zero-length segment has no direction",
			Handle:  seg.Handle,
		}
	}

	dir := r2.Vec{
		X: float64(seg.End.X - seg.Start.X),
		Y: float64(seg.End.Y - seg.Start.Y),
	}
	perp := Perpendicular(r2.Unit(dir))

	cluster := &Cluster{
		Original: seg,
		Segments: make([]Segment, 0, cfg.Count),
	}
	for _, offset := range Offsets(cfg) {
		shift := r2.Scale(offset, perp)
		dx := int64(math.Round(shift.X))
		dy := int64(math.Round(shift.Y))

		cluster.Segments = append(cluster.Segments, Segment{
			Start: seg.Start.Add(dx, dy),
			End:   seg.End.Add(dx, dy),
			Layer: seg.Layer,
			Net:   seg.Net,
			Width: cfg.Width,
		})
	}

	return cluster, nil
}
