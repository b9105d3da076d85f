package pcb

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/bus"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp/kicadsexp"
)

// newID issues identifiers for new segments and groups. Tests replace it to
// get stable output.
var newID = uuid.NewString

// Apply implements bus.Model. The original (segment ...) node is replaced in
// place by the new segment nodes and a (group ...) node listing them is
// appended to the board. Every check runs before the tree is touched, so a
// rejected transaction leaves the board exactly as it was.
func (b *Board) Apply(tx bus.Transaction) (*bus.Applied, error) {
	index := b.trackIndex(UUID(tx.Remove))
	if index < 0 {
		return nil, fmt.Errorf("%w: unknown segment %q", bus.ErrTransactionRejected, tx.Remove)
	}
	original := b.nodes[UUID(tx.Remove)]

	for i, seg := range tx.Add {
		if err := b.checkSegment(seg); err != nil {
			return nil, fmt.Errorf("%w: new segment %d: %v", bus.ErrTransactionRejected, i, err)
		}
	}

	ids := make([]UUID, len(tx.Add)+1)
	seen := make(map[UUID]bool, len(ids))
	for i := range ids {
		id := UUID(newID())
		if _, taken := b.nodes[id]; taken || seen[id] {
			return nil, fmt.Errorf("%w: identifier %s already in use", bus.ErrTransactionRejected, id)
		}
		seen[id] = true
		ids[i] = id
	}
	groupID := ids[len(tx.Add)]

	nodes := make([]kicadsexp.Sexp, len(tx.Add))
	tracks := make([]Track, len(tx.Add))
	applied := &bus.Applied{
		Segments: make([]bus.Handle, len(tx.Add)),
		Group:    bus.Handle(groupID),
	}
	for i, seg := range tx.Add {
		track := b.newTrack(ids[i], seg)
		node := b.segmentNode(track)
		nodes[i] = node
		tracks[i] = track
		applied.Segments[i] = bus.Handle(ids[i])
	}

	// Mutations below cannot fail once the original node is located.
	if !b.root.Replace(original, nodes...) {
		return nil, fmt.Errorf("%w: segment %q is not a top-level item", bus.ErrTransactionRejected, tx.Remove)
	}
	group := Group{Handle: groupID, Name: tx.Group.Name, Members: ids[:len(tx.Add)]}
	b.root.Append(b.groupNode(group))
	b.Groups = append(b.Groups, group)

	delete(b.nodes, UUID(tx.Remove))
	for i, node := range nodes {
		b.nodes[ids[i]] = node.(*kicadsexp.List)
	}
	rest := append(tracks, b.Tracks[index+1:]...)
	b.Tracks = append(b.Tracks[:index], rest...)

	log.Debug("applied split", "original", tx.Remove, "segments", len(tx.Add), "group", groupID)

	return applied, nil
}

func (b *Board) trackIndex(handle UUID) int {
	for i, t := range b.Tracks {
		if t.Handle == handle {
			return i
		}
	}
	return -1
}

func (b *Board) checkSegment(seg bus.Segment) error {
	if seg.Handle != "" {
		return fmt.Errorf("already has handle %q", seg.Handle)
	}
	if seg.Width <= 0 {
		return fmt.Errorf("width %d is not positive", seg.Width)
	}

	layer := string(seg.Layer)
	if len(b.layerMap) == 0 {
		if !strings.HasSuffix(layer, ".Cu") {
			return fmt.Errorf("invalid layer %q", layer)
		}
	} else if !b.layerMap.IsCopper(layer) {
		return fmt.Errorf("invalid layer %q", layer)
	}

	if !b.netNames && len(b.Nets) > 0 {
		if _, ok := b.netMap.GetByNumber(seg.Net.Number); !ok {
			return fmt.Errorf("unknown net %d", seg.Net.Number)
		}
	}
	return nil
}

func (b *Board) newTrack(id UUID, seg bus.Segment) Track {
	track := Track{
		Handle: id,
		Start:  Position{X: seg.Start.X, Y: seg.Start.Y},
		End:    Position{X: seg.End.X, Y: seg.End.Y},
		Width:  int64(seg.Width),
		Layer:  string(seg.Layer),
	}
	if net, ok := b.netMap.GetByNumber(seg.Net.Number); ok && !b.netNames {
		track.Net = net
	} else if net, ok := b.netMap.GetByName(seg.Net.Name); ok {
		track.Net = net
	} else {
		track.Net = &Net{Number: seg.Net.Number, Name: seg.Net.Name}
	}
	return track
}

// segmentNode builds a (segment ...) node in the board's own dialect.
func (b *Board) segmentNode(t Track) *kicadsexp.List {
	var net kicadsexp.Sexp = kicadsexp.Symbol(fmt.Sprint(t.Net.Number))
	if b.netNames {
		net = kicadsexp.String(t.Net.Name)
	}

	return kicadsexp.NewList(
		kicadsexp.Symbol("segment"),
		sexp.XY("start", t.Start),
		sexp.XY("end", t.End),
		kicadsexp.NewList(kicadsexp.Symbol("width"), sexp.Mm(t.Width)),
		kicadsexp.NewList(kicadsexp.Symbol("layer"), kicadsexp.String(t.Layer)),
		kicadsexp.NewList(kicadsexp.Symbol("net"), net),
		b.idNode(b.idKey, t.Handle),
	)
}

// groupNode builds a (group ...) node. KiCad 8 quotes identifiers and keys
// the group by uuid; earlier versions use a bare (id ...).
func (b *Board) groupNode(g Group) *kicadsexp.List {
	key := "id"
	if b.idKey == "uuid" {
		key = "uuid"
	}

	members := kicadsexp.NewList(kicadsexp.Symbol("members"))
	for _, m := range g.Members {
		members.Append(b.idAtom(m))
	}

	return kicadsexp.NewList(
		kicadsexp.Symbol("group"),
		kicadsexp.String(g.Name),
		b.idNode(key, g.Handle),
		members,
	)
}

func (b *Board) idNode(key string, id UUID) *kicadsexp.List {
	return kicadsexp.NewList(kicadsexp.Symbol(key), b.idAtom(id))
}

func (b *Board) idAtom(id UUID) kicadsexp.Sexp {
	if b.idKey == "uuid" {
		return kicadsexp.String(id)
	}
	return kicadsexp.Symbol(id)
}
