package pcb

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp/kicadsexp"
)

// Minimum supported KiCad version (6.0 = 20211014)
const MinSupportedVersion = 20211014

// UUIDKeywordVersion is the first format version (KiCad 8.0) that writes
// (uuid "...") instead of (tstamp ...).
const UUIDKeywordVersion = 20240108

// ParseFile reads and parses a KiCad board file
func ParseFile(filename string) (*Board, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads and parses a KiCad board from an io.Reader
func Parse(r io.Reader) (*Board, error) {
	sexps, err := kicadsexp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse s-expression: %w", err)
	}

	if len(sexps) == 0 {
		return nil, fmt.Errorf("empty file or no valid s-expressions found")
	}

	// The root should be a (kicad_pcb ...) expression
	root, ok := sexps[0].(*kicadsexp.List)
	if !ok {
		return nil, fmt.Errorf("not a KiCad PCB file: root is not a list")
	}

	rootName, err := sexp.GetNodeName(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get root node name: %w", err)
	}

	if rootName != "kicad_pcb" {
		return nil, fmt.Errorf("not a KiCad PCB file: expected 'kicad_pcb', got '%s'", rootName)
	}

	version, generator, err := parseHeader(root)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	board := &Board{
		Version:   version,
		Generator: generator,
		root:      root,
		nodes:     make(map[UUID]*kicadsexp.List),
	}

	if layersNode, found := sexp.FindNode(root, "layers"); found {
		layers, err := parseLayers(layersNode)
		if err != nil {
			return nil, fmt.Errorf("failed to parse layers section: %w", err)
		}
		board.Layers = layers
	}
	board.layerMap = NewLayerMap(board.Layers)

	nets, err := parseNets(root)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nets: %w", err)
	}
	board.Nets = nets
	board.netMap = NewNetMap(board.Nets)

	if err := board.parseTracks(); err != nil {
		return nil, fmt.Errorf("failed to parse tracks: %w", err)
	}
	board.Arcs = len(sexp.FindAllNodes(root, "arc"))

	vias, err := parseVias(root, board.netMap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vias: %w", err)
	}
	board.Vias = vias

	board.Footprints = parseFootprints(root, board.netMap)
	board.Groups = parseGroups(root)

	if board.idKey == "" {
		board.idKey = "tstamp"
		if version >= UUIDKeywordVersion {
			board.idKey = "uuid"
		}
	}

	log.Debug("parsed board",
		"version", board.Version,
		"nets", len(board.Nets),
		"segments", len(board.Tracks),
		"arcs", board.Arcs,
		"vias", len(board.Vias),
		"footprints", len(board.Footprints))

	return board, nil
}

// parseHeader extracts version and generator information from the root node
// Expected format: (kicad_pcb (version 20221018) (generator pcbnew) ...)
func parseHeader(root kicadsexp.Sexp) (version int, generator string, err error) {
	versionNode, found := sexp.FindNode(root, "version")
	if !found {
		return 0, "", fmt.Errorf("missing required 'version' field")
	}

	ver, err := sexp.GetInt(versionNode, 1)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}

	// Validate version (must be KiCad 6.0 or later)
	if ver < MinSupportedVersion {
		return 0, "", fmt.Errorf("unsupported KiCad version: %d (minimum required: %d / KiCad 6.0)", ver, MinSupportedVersion)
	}

	// Find generator/host node (optional in some files)
	gen := "unknown"
	if hostNode, found := sexp.FindNode(root, "host"); found {
		// Format: (host tool build)
		if toolName, err := sexp.GetString(hostNode, 1); err == nil {
			gen = toolName
		}
	} else if genNode, found := sexp.FindNode(root, "generator"); found {
		if generatorName, err := sexp.GetString(genNode, 1); err == nil {
			gen = generatorName
		}
	}

	return ver, gen, nil
}

// parseLayers extracts layer definitions
// Expected format: (layers (0 "F.Cu" signal) (31 "B.Cu" signal) ...)
func parseLayers(node kicadsexp.Sexp) ([]Layer, error) {
	layerNodes := sexp.GetListItems(node)
	if len(layerNodes) == 0 {
		return nil, fmt.Errorf("no layers defined")
	}

	var layers []Layer

	for _, layerNode := range layerNodes {
		if layerNode.IsLeaf() {
			continue
		}

		// Parse individual layer: (number "name" type ["user name"])
		number, err := sexp.GetInt(layerNode, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to parse layer number: %w", err)
		}

		name, err := sexp.GetString(layerNode, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to parse layer name: %w", err)
		}

		layerType, err := sexp.GetString(layerNode, 2)
		if err != nil {
			// Layer type is optional in some cases
			layerType = "user"
		}

		layers = append(layers, Layer{
			Number: number,
			Name:   name,
			Type:   layerType,
		})
	}

	return layers, nil
}

// parseNets extracts net definitions from the root node
// Expected format: (net 0 "") (net 1 "GND") (net 2 "+5V") ...
func parseNets(root kicadsexp.Sexp) ([]Net, error) {
	netNodes := sexp.FindAllNodes(root, "net")
	nets := make([]Net, 0, len(netNodes))

	for _, netNode := range netNodes {
		number, err := sexp.GetInt(netNode, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to parse net number: %w", err)
		}

		// Name is optional (net 0 often has empty name)
		name, _ := sexp.GetString(netNode, 2)

		nets = append(nets, Net{
			Number: number,
			Name:   name,
		})
	}

	return nets, nil
}

// resolveNet returns the net referenced by an item's (net ...) child.
// Boards written with numbered nets use (net 3); newer ones may spell the
// name instead, (net "VBUS"). The second result reports the latter form.
func resolveNet(node kicadsexp.Sexp, netMap *NetMap) (*Net, bool) {
	netNode, found := sexp.FindNode(node, "net")
	if !found {
		return nil, false
	}

	if _, quoted := netNode.Get(1).(kicadsexp.String); !quoted {
		num, err := sexp.GetInt(netNode, 1)
		if err != nil {
			return nil, false
		}
		if net, ok := netMap.GetByNumber(num); ok {
			return net, false
		}
		return &Net{Number: num}, false
	}

	name, _ := sexp.GetString(netNode, 1)
	if net, ok := netMap.GetByName(name); ok {
		return net, true
	}
	return &Net{Number: -1, Name: name}, true
}

// parseTracks extracts all straight track segments from the root node and
// indexes their nodes by handle.
func (b *Board) parseTracks() error {
	segmentNodes := sexp.FindAllNodes(b.root, "segment")
	b.Tracks = make([]Track, 0, len(segmentNodes))

	for i, node := range segmentNodes {
		track, key, err := parseSegment(node, b.netMap)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if track.Net != nil {
			if _, named := resolveNet(node, b.netMap); named {
				b.netNames = true
			}
		}

		if key != "" && b.idKey == "" {
			b.idKey = key
		}
		if track.Handle == "" {
			track.Handle = UUID(fmt.Sprintf("segment-%d", i))
		} else if _, dup := b.nodes[track.Handle]; dup {
			log.Warn("duplicate segment uuid", "uuid", track.Handle, "index", i)
			track.Handle = UUID(fmt.Sprintf("segment-%d", i))
		}

		b.nodes[track.Handle] = node
		b.Tracks = append(b.Tracks, *track)
	}

	return nil
}

// parseSegment extracts a track segment
// Expected format: (segment (start x y) (end x y) (width w) (layer "F.Cu") (net n) (uuid "..."))
func parseSegment(node kicadsexp.Sexp, netMap *NetMap) (*Track, string, error) {
	track := &Track{}

	startNode, found := sexp.FindNode(node, "start")
	if !found {
		return nil, "", fmt.Errorf("missing required 'start' field")
	}
	start, err := sexp.GetPositionXY(startNode)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse start: %w", err)
	}
	track.Start = start

	endNode, found := sexp.FindNode(node, "end")
	if !found {
		return nil, "", fmt.Errorf("missing required 'end' field")
	}
	end, err := sexp.GetPositionXY(endNode)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse end: %w", err)
	}
	track.End = end

	widthNode, found := sexp.FindNode(node, "width")
	if !found {
		return nil, "", fmt.Errorf("missing required 'width' field")
	}
	width, err := sexp.GetLength(widthNode, 1)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse width: %w", err)
	}
	track.Width = width

	layerNode, found := sexp.FindNode(node, "layer")
	if !found {
		return nil, "", fmt.Errorf("missing required 'layer' field")
	}
	layer, err := sexp.GetString(layerNode, 1)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse layer: %w", err)
	}
	track.Layer = layer

	track.Net, _ = resolveNet(node, netMap)
	track.Locked = isLocked(node)

	// A missing identifier is tolerated; the caller issues a local handle.
	id, key, err := sexp.GetUUID(node)
	if err == nil {
		track.Handle = id
	}

	return track, key, nil
}

// isLocked reports both the KiCad 6 bare "locked" flag and (locked yes).
func isLocked(node kicadsexp.Sexp) bool {
	if sexp.HasSymbol(node, "locked") {
		return true
	}
	if lockedNode, found := sexp.FindNode(node, "locked"); found {
		v, _ := sexp.GetString(lockedNode, 1)
		return v == "yes"
	}
	return false
}

// parseVias extracts all via definitions from the root node
// Expected format: (via (at x y) (size s) (drill d) (layers "F.Cu" "B.Cu") (net n) ...)
func parseVias(root kicadsexp.Sexp, netMap *NetMap) ([]Via, error) {
	viaNodes := sexp.FindAllNodes(root, "via")
	vias := make([]Via, 0, len(viaNodes))

	for i, node := range viaNodes {
		via := Via{Locked: isLocked(node)}

		atNode, found := sexp.FindNode(node, "at")
		if !found {
			return nil, fmt.Errorf("via %d: missing required 'at' position", i)
		}
		pos, err := sexp.GetPositionXY(atNode)
		if err != nil {
			return nil, fmt.Errorf("via %d: %w", i, err)
		}
		via.Position = pos

		if sizeNode, found := sexp.FindNode(node, "size"); found {
			if via.Size, err = sexp.GetLength(sizeNode, 1); err != nil {
				return nil, fmt.Errorf("via %d: failed to parse size: %w", i, err)
			}
		}
		if drillNode, found := sexp.FindNode(node, "drill"); found {
			if via.Drill, err = sexp.GetLength(drillNode, 1); err != nil {
				return nil, fmt.Errorf("via %d: failed to parse drill: %w", i, err)
			}
		}

		if layersNode, found := sexp.FindNode(node, "layers"); found {
			for _, item := range sexp.GetListItems(layersNode) {
				if name, ok := kicadsexp.AtomValue(item); ok {
					via.Layers = append(via.Layers, name)
				}
			}
		}

		via.Net, _ = resolveNet(node, netMap)
		vias = append(vias, via)
	}

	return vias, nil
}

// parseFootprints extracts footprints and their pad net connections.
// Footprints that cannot be read are skipped with a warning; they never
// take part in splitting.
func parseFootprints(root kicadsexp.Sexp, netMap *NetMap) []Footprint {
	fpNodes := sexp.FindAllNodes(root, "footprint")
	footprints := make([]Footprint, 0, len(fpNodes))

	for i, node := range fpNodes {
		fp, err := parseFootprint(node, netMap)
		if err != nil {
			log.Warn("skipping footprint", "index", i, "err", err)
			continue
		}
		footprints = append(footprints, *fp)
	}

	return footprints
}

// parseFootprint extracts a footprint (component) definition
// Expected format: (footprint "library:name" (layer "F.Cu") (at x y [angle]) ... (pad ...))
func parseFootprint(node kicadsexp.Sexp, netMap *NetMap) (*Footprint, error) {
	library, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse footprint name: %w", err)
	}
	fp := &Footprint{Library: library}

	if layerNode, found := sexp.FindNode(node, "layer"); found {
		fp.Layer, _ = sexp.GetString(layerNode, 1)
	}
	if atNode, found := sexp.FindNode(node, "at"); found {
		if fp.Position, err = sexp.GetPositionXY(atNode); err != nil {
			return nil, fmt.Errorf("failed to parse footprint position: %w", err)
		}
	}

	// KiCad 8 carries the reference as a property, older files as fp_text.
	for _, prop := range sexp.FindAllNodes(node, "property") {
		if key, _ := sexp.GetString(prop, 1); key == "Reference" {
			fp.Reference, _ = sexp.GetString(prop, 2)
		}
	}
	for _, text := range sexp.FindAllNodes(node, "fp_text") {
		if kind, _ := sexp.GetString(text, 1); kind == "reference" && fp.Reference == "" {
			fp.Reference, _ = sexp.GetString(text, 2)
		}
	}

	for _, padNode := range sexp.FindAllNodes(node, "pad") {
		number, err := sexp.GetString(padNode, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pad number: %w", err)
		}
		pad := Pad{Number: number}
		pad.Type, _ = sexp.GetString(padNode, 2)
		pad.Shape, _ = sexp.GetString(padNode, 3)
		pad.Net, _ = resolveNet(padNode, netMap)
		fp.Pads = append(fp.Pads, pad)
	}

	return fp, nil
}

// parseGroups extracts groups
// Expected format: (group "name" (uuid "...") (members "..." "..."))
// or, before KiCad 8: (group "name" (id ...) (members ... ...))
func parseGroups(root kicadsexp.Sexp) []Group {
	groupNodes := sexp.FindAllNodes(root, "group")
	groups := make([]Group, 0, len(groupNodes))

	for _, node := range groupNodes {
		g := Group{}
		// The name is optional in some writers
		if name, ok := kicadsexp.AtomValue(node.Get(1)); ok {
			g.Name = name
		}
		for _, key := range []string{"uuid", "id"} {
			if idNode, found := sexp.FindNode(node, key); found {
				id, _ := sexp.GetString(idNode, 1)
				g.Handle = UUID(id)
				break
			}
		}
		if membersNode, found := sexp.FindNode(node, "members"); found {
			for _, item := range sexp.GetListItems(membersNode) {
				if id, ok := kicadsexp.AtomValue(item); ok {
					g.Members = append(g.Members, UUID(id))
				}
			}
		}
		groups = append(groups, g)
	}

	return groups
}
