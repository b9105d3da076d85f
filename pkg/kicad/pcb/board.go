package pcb

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/bus"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp/kicadsexp"
)

// Board represents a complete KiCad PCB.
//
// The parsed s-expression tree is retained so edits made through Apply can be
// written back with everything the parser does not model left untouched.
// A Board is not safe for concurrent use.
type Board struct {
	Version    int         // File format version
	Generator  string      // Generator info (e.g., "pcbnew")
	Layers     []Layer     // Layer definitions
	Nets       []Net       // Electrical nets
	Footprints []Footprint // Component footprints
	Tracks     []Track     // Straight track segments
	Arcs       int         // Arc tracks, counted but never edited
	Vias       []Via       // Vias
	Groups     []Group     // Grouped elements

	root     *kicadsexp.List
	layerMap LayerMap
	netMap   *NetMap
	nodes    map[UUID]*kicadsexp.List // segment nodes by handle
	idKey    string                   // "uuid" or "tstamp"
	netNames bool                     // segments reference nets by name
}

// Footprint represents a component footprint
type Footprint struct {
	Library   string   // Library identifier (e.g., "Resistor_SMD:R_0603")
	Reference string   // Reference designator (e.g., "R1")
	Layer     string   // Layer (F.Cu or B.Cu typically)
	Position  Position // Placement origin
	Pads      []Pad    // Pads
}

// Pad represents a footprint pad
type Pad struct {
	Number string // Pad number/name
	Type   string // Pad type (thru_hole, smd, etc.)
	Shape  string // Pad shape (circle, rect, oval, etc.)
	Net    *Net   // Connected net (if any)
}

// Track represents a straight copper track segment
type Track struct {
	Handle UUID     // uuid/tstamp of the segment
	Start  Position // Start point
	End    Position // End point
	Width  int64    // Track width in nanometres
	Layer  string   // Layer name
	Net    *Net     // Connected net
	Locked bool     // Whether track is locked
}

// Via represents a via
type Via struct {
	Position Position // Via position
	Size     int64    // Via diameter
	Drill    int64    // Drill diameter
	Layers   []string // Layer pair
	Net      *Net     // Connected net
	Locked   bool     // Whether via is locked
}

// Group represents a logical grouping of elements
type Group struct {
	Handle  UUID   // uuid/id of the group
	Name    string // Group name
	Members []UUID // UUIDs of member elements
}

// GetNet returns a net by name, or nil if not found
func (b *Board) GetNet(name string) *Net {
	net, _ := b.netMap.GetByName(name)
	return net
}

// GetNetTracks returns the straight tracks of a net in file order.
func (b *Board) GetNetTracks(netName string) []Track {
	var tracks []Track
	for _, track := range b.Tracks {
		if track.Net != nil && track.Net.Name == netName {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

// PadRef is a pad together with the reference of its footprint.
type PadRef struct {
	Reference string
	Pad       Pad
}

// NetInfo contains information about a net and its connections
type NetInfo struct {
	Net    *Net
	Pads   []PadRef
	Tracks []Track
	Vias   []Via
}

// GetNetInfo returns everything connected to a net, or nil if the board does
// not define it.
func (b *Board) GetNetInfo(netName string) *NetInfo {
	net := b.GetNet(netName)
	if net == nil {
		return nil
	}

	info := &NetInfo{Net: net, Tracks: b.GetNetTracks(netName)}
	for _, fp := range b.Footprints {
		for _, pad := range fp.Pads {
			if pad.Net != nil && pad.Net.Name == netName {
				info.Pads = append(info.Pads, PadRef{Reference: fp.Reference, Pad: pad})
			}
		}
	}
	for _, via := range b.Vias {
		if via.Net != nil && via.Net.Name == netName {
			info.Vias = append(info.Vias, via)
		}
	}
	return info
}

// NetStat counts the items connected to one net.
type NetStat struct {
	Name   string
	Pads   int
	Tracks int
	Vias   int
}

// NetStats counts pads, straight tracks and vias of every named net in one
// pass over the board, sorted by net name.
func (b *Board) NetStats() []NetStat {
	index := make(map[string]int)
	var stats []NetStat
	for _, net := range b.Nets {
		if net.Name == "" {
			continue
		}
		if _, dup := index[net.Name]; !dup {
			index[net.Name] = len(stats)
			stats = append(stats, NetStat{Name: net.Name})
		}
	}

	lookup := func(net *Net) *NetStat {
		if net == nil {
			return nil
		}
		if i, ok := index[net.Name]; ok {
			return &stats[i]
		}
		return nil
	}
	for _, fp := range b.Footprints {
		for _, pad := range fp.Pads {
			if s := lookup(pad.Net); s != nil {
				s.Pads++
			}
		}
	}
	for _, track := range b.Tracks {
		if s := lookup(track.Net); s != nil {
			s.Tracks++
		}
	}
	for _, via := range b.Vias {
		if s := lookup(via.Net); s != nil {
			s.Vias++
		}
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// CopperLayers returns the names of the declared copper layers, front to
// back.
func (b *Board) CopperLayers() []string {
	return b.layerMap.Copper()
}

// Segments implements bus.Model. Only straight segments are reported, in
// file order; arcs and vias are never candidates for splitting.
func (b *Board) Segments() []bus.Segment {
	segs := make([]bus.Segment, len(b.Tracks))
	for i, t := range b.Tracks {
		segs[i] = t.toSegment()
	}
	return segs
}

func (t Track) toSegment() bus.Segment {
	s := bus.Segment{
		Handle: bus.Handle(t.Handle),
		Start:  bus.Point{X: t.Start.X, Y: t.Start.Y},
		End:    bus.Point{X: t.End.X, Y: t.End.Y},
		Layer:  bus.Layer(t.Layer),
		Width:  bus.Length(t.Width),
	}
	if t.Net != nil {
		s.Net = bus.Net{Number: t.Net.Number, Name: t.Net.Name}
	}
	return s
}
