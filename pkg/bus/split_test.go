package bus

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func seg(x1, y1, x2, y2 int64) Segment {
	return Segment{
		Handle: "orig",
		Start:  Point{X: x1, Y: y1},
		End:    Point{X: x2, Y: y2},
		Layer:  "F.Cu",
		Net:    Net{Number: 3, Name: "VBUS"},
		Width:  250000,
	}
}

// offsetOf returns the signed perpendicular distance of s from the centreline
// of orig, using the same rotation as Split.
func offsetOf(orig, s Segment) float64 {
	dx := float64(orig.End.X - orig.Start.X)
	dy := float64(orig.End.Y - orig.Start.Y)
	l := math.Hypot(dx, dy)
	px, py := -dy/l, dx/l
	return float64(s.Start.X-orig.Start.X)*px + float64(s.Start.Y-orig.Start.Y)*py
}

func TestSplitHorizontalExample(t *testing.T) {
	cfg := SplitConfig{Width: 140000, Separation: 20000, Count: 2}

	cluster, err := Split(seg(0, 0, 1000, 0), cfg)
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}

	want := []Segment{
		{Start: Point{0, -80000}, End: Point{1000, -80000}, Layer: "F.Cu", Net: Net{3, "VBUS"}, Width: 140000},
		{Start: Point{0, 80000}, End: Point{1000, 80000}, Layer: "F.Cu", Net: Net{3, "VBUS"}, Width: 140000},
	}
	if diff := cmp.Diff(want, cluster.Segments); diff != "" {
		t.Errorf("Split() segments mismatch (-want +got):\n%s", diff)
	}
	if cluster.Original.Handle != "orig" {
		t.Errorf("Original.Handle = %q, want orig", cluster.Original.Handle)
	}
}

func TestSplitSingleIsRewiden(t *testing.T) {
	orig := seg(1000, 2000, 51000, 37000)
	cluster, err := Split(orig, SplitConfig{Width: 600000, Separation: 200000, Count: 1})
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	if len(cluster.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(cluster.Segments))
	}
	got := cluster.Segments[0]
	if got.Start != orig.Start || got.End != orig.End {
		t.Errorf("single split moved the path: %+v -> %+v", orig, got)
	}
	if got.Width != 600000 {
		t.Errorf("Width = %d, want 600000", got.Width)
	}
}

func TestSplitProperties(t *testing.T) {
	segments := []Segment{
		seg(0, 0, 10_000_000, 0),
		seg(0, 0, 0, 10_000_000),
		seg(5_000_000, 5_000_000, -3_000_000, 1_000_000),
		seg(100, 100, 7_100_100, 7_100_100),
		seg(0, 0, 1, 0),
	}
	configs := []SplitConfig{
		{Width: 1400000, Separation: 200000, Count: 2},
		{Width: 250000, Separation: 0, Count: 3},
		{Width: 3, Separation: 0, Count: 2},
		{Width: 100000, Separation: 150000, Count: 8},
		{Width: 1, Separation: 1, Count: 5},
	}

	for _, orig := range segments {
		for _, cfg := range configs {
			name := fmt.Sprintf("%v-%v/%d,%d,%d", orig.Start, orig.End, cfg.Width, cfg.Separation, cfg.Count)
			t.Run(name, func(t *testing.T) {
				cluster, err := Split(orig, cfg)
				if err != nil {
					t.Fatalf("Split() unexpected error: %v", err)
				}
				if len(cluster.Segments) != cfg.Count {
					t.Fatalf("got %d segments, want %d", len(cluster.Segments), cfg.Count)
				}

				n := len(cluster.Segments)
				var sum float64
				for i, s := range cluster.Segments {
					if s.Layer != orig.Layer || s.Net != orig.Net {
						t.Errorf("segment %d layer/net = %s/%v, want %s/%v", i, s.Layer, s.Net, orig.Layer, orig.Net)
					}
					if s.Width != cfg.Width {
						t.Errorf("segment %d width = %d, want %d", i, s.Width, cfg.Width)
					}
					if s.Handle != "" {
						t.Errorf("segment %d has handle %q before apply", i, s.Handle)
					}
					// start and end shift together
					if s.End.X-s.Start.X != orig.End.X-orig.Start.X || s.End.Y-s.Start.Y != orig.End.Y-orig.Start.Y {
						t.Errorf("segment %d is not parallel to the original", i)
					}

					mirror := cluster.Segments[n-1-i]
					if s.Start.X-orig.Start.X != -(mirror.Start.X - orig.Start.X) ||
						s.Start.Y-orig.Start.Y != -(mirror.Start.Y - orig.Start.Y) {
						t.Errorf("segments %d and %d are not mirrored about the centreline", i, n-1-i)
					}

					sum += offsetOf(orig, s)
					if i > 0 && offsetOf(orig, s) <= offsetOf(orig, cluster.Segments[i-1]) {
						t.Errorf("segment %d offset does not increase", i)
					}
				}
				if math.Abs(sum) > float64(n) {
					t.Errorf("offsets sum to %f, want ~0", sum)
				}
			})
		}
	}
}

func TestOffsets(t *testing.T) {
	tests := []struct {
		name string
		cfg  SplitConfig
		want []float64
	}{
		{"two", SplitConfig{Width: 140000, Separation: 20000, Count: 2}, []float64{-80000, 80000}},
		{"one", SplitConfig{Width: 500, Separation: 100, Count: 1}, []float64{0}},
		{"three touching", SplitConfig{Width: 10, Separation: 0, Count: 3}, []float64{-10, 0, 10}},
		{"odd half", SplitConfig{Width: 3, Separation: 0, Count: 2}, []float64{-1.5, 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Offsets(tt.cfg)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Offsets() mismatch (-want +got):\n%s", diff)
			}

			gw := GroupWidth(tt.cfg)
			want := Length(tt.cfg.Count)*tt.cfg.Width + Length(tt.cfg.Count-1)*tt.cfg.Separation
			if gw != want {
				t.Errorf("GroupWidth() = %d, want %d", gw, want)
			}

			// consecutive spacing adds up to groupWidth - width
			var spacing float64
			for i := 1; i < len(got); i++ {
				step := got[i] - got[i-1]
				if step != float64(tt.cfg.Width+tt.cfg.Separation) {
					t.Errorf("step %d = %f, want %d", i, step, tt.cfg.Width+tt.cfg.Separation)
				}
				spacing += step
			}
			if spacing != float64(gw-tt.cfg.Width) {
				t.Errorf("total spacing = %f, want %d", spacing, gw-tt.cfg.Width)
			}
		})
	}
}

func TestSplitRoundsHalfAwayFromZero(t *testing.T) {
	// width 3 on a horizontal track puts the two members at y = -1.5 and +1.5
	cluster, err := Split(seg(0, 0, 100, 0), SplitConfig{Width: 3, Separation: 0, Count: 2})
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	if got := cluster.Segments[0].Start.Y; got != -2 {
		t.Errorf("first member y = %d, want -2", got)
	}
	if got := cluster.Segments[1].Start.Y; got != 2 {
		t.Errorf("second member y = %d, want 2", got)
	}
}

func TestSplitRotationSense(t *testing.T) {
	// travelling +y, the perpendicular (-dy, dx) points to -x
	cluster, err := Split(seg(0, 0, 0, 1000), SplitConfig{Width: 100, Separation: 0, Count: 2})
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	if got := cluster.Segments[0].Start.X; got != 50 {
		t.Errorf("first member x = %d, want 50", got)
	}
	if got := cluster.Segments[1].Start.X; got != -50 {
		t.Errorf("second member x = %d, want -50", got)
	}
}

func TestSplitValidation(t *testing.T) {
	valid := SplitConfig{Width: 100, Separation: 10, Count: 2}

	tests := []struct {
		name    string
		segment Segment
		cfg     SplitConfig
		want    error
	}{
		{"zero count", seg(0, 0, 10, 0), SplitConfig{Width: 100, Count: 0}, ErrInvalidSplitCount},
		{"negative count", seg(0, 0, 10, 0), SplitConfig{Width: 100, Count: -3}, ErrInvalidSplitCount},
		{"zero width", seg(0, 0, 10, 0), SplitConfig{Width: 0, Count: 2}, ErrInvalidWidth},
		{"negative width", seg(0, 0, 10, 0), SplitConfig{Width: -1, Count: 2}, ErrInvalidWidth},
		{"negative separation", seg(0, 0, 10, 0), SplitConfig{Width: 100, Separation: -1, Count: 2}, ErrInvalidSeparation},
		{"zero length", seg(5, 5, 5, 5), valid, ErrDegenerateSegment},
		{"count checked before geometry", seg(5, 5, 5, 5), SplitConfig{Width: 100, Count: 0}, ErrInvalidSplitCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster, err := Split(tt.segment, tt.cfg)
			if err == nil {
				t.Fatalf("Split() expected error, got cluster %+v", cluster)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Split() error = %v, want %v", err, tt.want)
			}
			if cluster != nil {
				t.Errorf("Split() returned a cluster alongside an error")
			}
		})
	}
}

func TestClusterTransaction(t *testing.T) {
	cluster, err := Split(seg(0, 0, 1000, 0), SplitConfig{Width: 100, Separation: 50, Count: 3})
	if err != nil {
		t.Fatalf("Split() unexpected error: %v", err)
	}
	cluster.Group = GroupSpec{Name: "bus"}

	tx := cluster.Transaction()
	if tx.Remove != "orig" {
		t.Errorf("Remove = %q, want orig", tx.Remove)
	}
	if tx.Group.Name != "bus" {
		t.Errorf("Group.Name = %q, want bus", tx.Group.Name)
	}
	if diff := cmp.Diff(cluster.Segments, tx.Add); diff != "" {
		t.Errorf("Add mismatch (-cluster +tx):\n%s", diff)
	}

	tx.Add[0].Width = 1
	if cluster.Segments[0].Width == 1 {
		t.Error("Transaction shares its Add slice with the cluster")
	}
}
