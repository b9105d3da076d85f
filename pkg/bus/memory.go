package bus

import (
	"fmt"
	"sync"
)

// Group is a named set of segment handles held by a MemoryModel.
type Group struct {
	Handle  Handle
	Name    string
	Members []Handle
}

// MemoryModel is an in-memory Model, used by tests and for planning runs
// without a board file.
type MemoryModel struct {
	mu       sync.RWMutex
	layers   map[Layer]bool
	segments []Segment
	groups   []Group
	nextID   int
}

// NewMemoryModel creates a model holding segs. Segments without a handle are
// given one.
func NewMemoryModel(segs ...Segment) *MemoryModel {
	m := &MemoryModel{}
	for _, seg := range segs {
		if seg.Handle == "" {
			seg.Handle = m.issue("s")
		}
		m.segments = append(m.segments, seg)
	}
	return m
}

// RestrictLayers limits the layers new segments may be placed on. With no
// restriction every layer is accepted.
func (m *MemoryModel) RestrictLayers(layers ...Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers = make(map[Layer]bool, len(layers))
	for _, l := range layers {
		m.layers[l] = true
	}
}

// Segments implements Model.
func (m *MemoryModel) Segments() []Segment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// Groups returns the groups created so far.
func (m *MemoryModel) Groups() []Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Group, len(m.groups))
	copy(out, m.groups)
	return out
}

// Apply implements Model. The original segment's slot is taken by the new
// segments so enumeration order stays stable.
func (m *MemoryModel) Apply(tx Transaction) (*Applied, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := -1
	for i, seg := range m.segments {
		if seg.Handle == tx.Remove {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: unknown segment %q", ErrTransactionRejected, tx.Remove)
	}
	for i, seg := range tx.Add {
		if seg.Handle != "" {
			return nil, fmt.Errorf("%w: new segment %d already has handle %q", ErrTransactionRejected, i, seg.Handle)
		}
		if seg.Width <= 0 {
			return nil, fmt.Errorf("%w: new segment %d has width %d", ErrTransactionRejected, i, seg.Width)
		}
		if m.layers != nil && !m.layers[seg.Layer] {
			return nil, fmt.Errorf("%w: invalid layer %q", ErrTransactionRejected, seg.Layer)
		}
	}

	applied := &Applied{Segments: make([]Handle, len(tx.Add))}
	added := make([]Segment, len(tx.Add))
	for i, seg := range tx.Add {
		seg.Handle = m.issue("s")
		added[i] = seg
		applied.Segments[i] = seg.Handle
	}
	applied.Group = m.issue("g")

	rest := append(added, m.segments[index+1:]...)
	m.segments = append(m.segments[:index], rest...)
	m.groups = append(m.groups, Group{
		Handle:  applied.Group,
		Name:    tx.Group.Name,
		Members: append([]Handle(nil), applied.Segments...),
	})

	return applied, nil
}

func (m *MemoryModel) issue(prefix string) Handle {
	m.nextID++
	return Handle(fmt.Sprintf("%s%d", prefix, m.nextID))
}
