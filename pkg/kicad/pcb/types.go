package pcb

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp"
)

// Shared with the s-expression helpers.
type (
	Position = sexp.Position
	UUID     = sexp.UUID
)

// Layer is one entry of the board's (layers ...) table.
type Layer struct {
	Number int    // ordinal in the layer stack
	Name   string // canonical name, e.g. "F.Cu"
	Type   string // signal, power, mixed, jumper or user
}

// IsCopper reports whether tracks can be drawn on the layer.
func (l Layer) IsCopper() bool {
	switch l.Type {
	case "signal", "power", "mixed", "jumper":
		return true
	}
	return false
}

// Net represents an electrical net
type Net struct {
	Number int    // Net number (ordinal), -1 when the file names nets only
	Name   string // Net name
}

// LayerMap indexes the declared layers by name.
type LayerMap map[string]Layer

// NewLayerMap creates a LayerMap from a slice of layers
func NewLayerMap(layers []Layer) LayerMap {
	lm := make(LayerMap, len(layers))
	for _, layer := range layers {
		lm[layer.Name] = layer
	}
	return lm
}

// IsCopper reports whether name is a declared copper layer.
func (lm LayerMap) IsCopper(name string) bool {
	layer, ok := lm[name]
	return ok && layer.IsCopper()
}

// Copper returns the copper layer names, front to back.
func (lm LayerMap) Copper() []string {
	layers := make([]Layer, 0, len(lm))
	for _, layer := range lm {
		if layer.IsCopper() {
			layers = append(layers, layer)
		}
	}
	// KiCad 6-8 number B.Cu 31 and inner layers 1..30; KiCad 9 numbers
	// F.Cu 0, B.Cu 2 and inner layers from 4 up. Either way B.Cu goes last.
	sort.Slice(layers, func(i, j int) bool {
		if (layers[i].Name == "B.Cu") != (layers[j].Name == "B.Cu") {
			return layers[j].Name == "B.Cu"
		}
		return layers[i].Number < layers[j].Number
	})

	names := make([]string, len(layers))
	for i, layer := range layers {
		names[i] = layer.Name
	}
	return names
}

// NetMap provides lookup of nets by number or name
type NetMap struct {
	byNumber map[int]*Net
	byName   map[string]*Net
}

// NewNetMap creates a NetMap from a slice of nets. The map points into nets.
func NewNetMap(nets []Net) *NetMap {
	nm := &NetMap{
		byNumber: make(map[int]*Net, len(nets)),
		byName:   make(map[string]*Net, len(nets)),
	}

	for i := range nets {
		net := &nets[i]
		nm.byNumber[net.Number] = net
		// net 0 is the unnamed "no net"
		if net.Name != "" {
			nm.byName[net.Name] = net
		}
	}

	return nm
}

// GetByName retrieves a net by its name (e.g., "GND", "+5V")
func (nm *NetMap) GetByName(name string) (*Net, bool) {
	net, ok := nm.byName[name]
	return net, ok
}

// GetByNumber retrieves a net by its number
func (nm *NetMap) GetByNumber(num int) (*Net, bool) {
	net, ok := nm.byNumber[num]
	return net, ok
}
