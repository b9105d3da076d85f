package pcb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/bus"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp/kicadsexp"
)

// stableIDs makes Apply issue id-1, id-2, ... for the duration of the test.
func stableIDs(t *testing.T) {
	t.Helper()
	n := 0
	prev := newID
	newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	t.Cleanup(func() { newID = prev })
}

func segmentFor(t *testing.T, b *Board, handle string) bus.Segment {
	t.Helper()
	for _, s := range b.Segments() {
		if string(s.Handle) == handle {
			return s
		}
	}
	t.Fatalf("segment %s not found", handle)
	return bus.Segment{}
}

func TestApplyReplacesSegmentInPlace(t *testing.T) {
	stableIDs(t)
	board := mustParse(t, kicad8Board)

	orig := segmentFor(t, board, "seg-a")
	cluster, err := bus.Split(orig, bus.SplitConfig{Width: 200_000, Separation: 100_000, Count: 2})
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	cluster.Group = bus.GroupSpec{Name: "VBUS bus"}

	applied, err := board.Apply(cluster.Transaction())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	want := &bus.Applied{Segments: []bus.Handle{"id-1", "id-2"}, Group: "id-3"}
	if diff := cmp.Diff(want, applied); diff != "" {
		t.Errorf("Applied mismatch (-want +got):\n%s", diff)
	}

	var handles []string
	for _, s := range board.Segments() {
		handles = append(handles, string(s.Handle))
	}
	if diff := cmp.Diff([]string{"id-1", "id-2", "seg-b", "seg-c"}, handles); diff != "" {
		t.Errorf("segment order mismatch (-want +got):\n%s", diff)
	}

	first := board.Tracks[0]
	if first.Start != (Position{X: 10_000_000, Y: 19_850_000}) || first.Width != 200_000 || first.Net.Name != "VBUS" {
		t.Errorf("first new track = %+v", first)
	}

	var out bytes.Buffer
	if err := board.Write(&out); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		`(segment (start 10 19.85) (end 30 19.85) (width 0.2) (layer "F.Cu") (net 2) (uuid "id-1"))`,
		`(segment (start 10 20.15) (end 30 20.15) (width 0.2) (layer "F.Cu") (net 2) (uuid "id-2"))`,
		`(group "VBUS bus" (uuid "id-3") (members "id-1" "id-2"))`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output is missing %s\n%s", want, text)
		}
	}
	if strings.Contains(text, `"seg-a"`) {
		t.Error("original segment still present in output")
	}
	if !strings.Contains(text, `(arc (start 30 40) (mid 31 41) (end 32 42)`) {
		t.Error("arc was not preserved")
	}

	// the written board parses back with the same content
	reparsed := mustParse(t, text)
	if diff := cmp.Diff(board.Segments(), reparsed.Segments()); diff != "" {
		t.Errorf("re-parsed segments mismatch (-applied +reparsed):\n%s", diff)
	}
	if len(reparsed.Groups) != 1 || reparsed.Groups[0].Name != "VBUS bus" {
		t.Errorf("re-parsed groups = %+v", reparsed.Groups)
	}
}

func TestApplyRejectsWithoutChange(t *testing.T) {
	good := bus.Segment{
		Start: bus.Point{X: 0, Y: 0},
		End:   bus.Point{X: 1_000_000, Y: 0},
		Layer: "F.Cu",
		Net:   bus.Net{Number: 2, Name: "VBUS"},
		Width: 200_000,
	}

	tests := []struct {
		name string
		tx   bus.Transaction
	}{
		{"unknown original", bus.Transaction{Remove: "nope", Add: []bus.Segment{good}}},
		{"arc is not a segment", bus.Transaction{Remove: "arc-a", Add: []bus.Segment{good}}},
		{"non-copper layer", bus.Transaction{Remove: "seg-a", Add: []bus.Segment{good, func() bus.Segment {
			s := good
			s.Layer = "F.SilkS"
			return s
		}()}}},
		{"undeclared layer", bus.Transaction{Remove: "seg-a", Add: []bus.Segment{func() bus.Segment {
			s := good
			s.Layer = "In7.Cu"
			return s
		}()}}},
		{"zero width", bus.Transaction{Remove: "seg-a", Add: []bus.Segment{func() bus.Segment {
			s := good
			s.Width = 0
			return s
		}()}}},
		{"unknown net", bus.Transaction{Remove: "seg-a", Add: []bus.Segment{func() bus.Segment {
			s := good
			s.Net = bus.Net{Number: 42}
			return s
		}()}}},
		{"preassigned handle", bus.Transaction{Remove: "seg-a", Add: []bus.Segment{func() bus.Segment {
			s := good
			s.Handle = "seg-b"
			return s
		}()}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := mustParse(t, kicad8Board)
			before := kicadsexp.Format(board.root)

			applied, err := board.Apply(tt.tx)
			if !errors.Is(err, bus.ErrTransactionRejected) {
				t.Fatalf("Apply() error = %v, want ErrTransactionRejected", err)
			}
			if applied != nil {
				t.Error("Apply() returned handles for a rejected transaction")
			}
			if after := kicadsexp.Format(board.root); after != before {
				t.Errorf("board changed after rejection:\n%s", after)
			}
			if len(board.Tracks) != 3 || len(board.Groups) != 0 {
				t.Errorf("tracks/groups = %d/%d, want 3/0", len(board.Tracks), len(board.Groups))
			}
		})
	}
}

func TestApplyRejectsIdentifierCollision(t *testing.T) {
	prev := newID
	newID = func() string { return "seg-b" }
	t.Cleanup(func() { newID = prev })

	board := mustParse(t, kicad8Board)
	orig := segmentFor(t, board, "seg-a")
	cluster, err := bus.Split(orig, bus.SplitConfig{Width: 100_000, Count: 1})
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}

	if _, err := board.Apply(cluster.Transaction()); !errors.Is(err, bus.ErrTransactionRejected) {
		t.Errorf("Apply() error = %v, want ErrTransactionRejected", err)
	}
}

func TestApplyKiCad7Dialect(t *testing.T) {
	stableIDs(t)
	board := mustParse(t, kicad7Board)

	orig := board.Segments()[0]
	cluster, err := bus.Split(orig, bus.SplitConfig{Width: 100_000, Separation: 100_000, Count: 2})
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if _, err := board.Apply(cluster.Transaction()); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	var out bytes.Buffer
	if err := board.Write(&out); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		`(net 1) (tstamp id-1))`,
		`(group "" (id id-3) (members id-1 id-2))`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output is missing %s\n%s", want, text)
		}
	}
}

func TestApplyNamedNets(t *testing.T) {
	stableIDs(t)
	board := mustParse(t, `(kicad_pcb (version 20250114) (generator "pcbnew")
	(layers (0 "F.Cu" signal) (2 "B.Cu" signal))
	(segment (start 0 0) (end 1 0) (width 0.2) (layer "F.Cu") (net "CLK") (uuid "s1"))
)`)

	cluster, err := bus.Split(board.Segments()[0], bus.SplitConfig{Width: 100_000, Count: 1})
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if _, err := board.Apply(cluster.Transaction()); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	var out bytes.Buffer
	if err := board.Write(&out); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !strings.Contains(out.String(), `(net "CLK") (uuid "id-1")`) {
		t.Errorf("named net not preserved:\n%s", out.String())
	}
}

func TestDriverOnBoard(t *testing.T) {
	stableIDs(t)
	board := mustParse(t, kicad8Board)

	driver := bus.NewDriver(
		bus.WithLogger(log.New(io.Discard)),
		bus.WithGroupName("{net} bus"),
	)
	summary, err := driver.Run(context.Background(), board, "VBUS", bus.SplitConfig{Width: 200_000, Separation: 100_000, Count: 3})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.Processed != 2 || summary.Created != 6 || summary.Failed != 0 {
		t.Errorf("summary processed/created/failed = %d/%d/%d, want 2/6/0", summary.Processed, summary.Created, summary.Failed)
	}

	if got := len(board.GetNetTracks("VBUS")); got != 6 {
		t.Errorf("VBUS tracks = %d, want 6", got)
	}
	if got := len(board.GetNetTracks("GND")); got != 1 {
		t.Errorf("GND tracks = %d, want 1", got)
	}
	if board.Arcs != 1 || len(board.Vias) != 1 {
		t.Error("arcs and vias must not be touched")
	}
	if len(board.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(board.Groups))
	}
	for _, g := range board.Groups {
		if g.Name != "VBUS bus" || len(g.Members) != 3 {
			t.Errorf("group = %+v", g)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.kicad_pcb")
	if err := os.WriteFile(path, []byte(kicad8Board), 0o600); err != nil {
		t.Fatal(err)
	}

	board, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}

	backup := path + ".bak"
	if err := CopyFile(path, backup); err != nil {
		t.Fatalf("CopyFile() error: %v", err)
	}
	if err := board.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	again, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() after write error: %v", err)
	}
	if diff := cmp.Diff(board.Segments(), again.Segments()); diff != "" {
		t.Errorf("round trip mismatch (-before +after):\n%s", diff)
	}

	saved, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(saved) != kicad8Board {
		t.Error("backup does not match the original file")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("directory has %d entries, want board and backup only", len(entries))
	}
}
