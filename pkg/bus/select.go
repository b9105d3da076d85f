package bus

// Select returns the segments on the named net, in the order given.
// No match yields an empty slice, not an error.
func Select(segments []Segment, netName string) []Segment {
	selected := make([]Segment, 0)
	for _, seg := range segments {
		if seg.Net.Name == netName {
			selected = append(selected, seg)
		}
	}
	return selected
}

// NetNames returns the distinct net names present in segments, in order of
// first appearance.
func NetNames(segments []Segment) []string {
	seen := make(map[string]bool)
	var names []string
	for _, seg := range segments {
		if seen[seg.Net.Name] {
			continue
		}
		seen[seg.Net.Name] = true
		names = append(names, seg.Net.Name)
	}
	return names
}
