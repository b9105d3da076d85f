package bus

// Length is a distance in nanometres, the layout's native unit.
type Length int64

// Point is a position in nanometres.
type Point struct {
	X int64
	Y int64
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy int64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Layer names a conductive plane, e.g. "F.Cu".
type Layer string

// Net is an electrical net as numbered and named by the layout.
type Net struct {
	Number int
	Name   string
}

// Handle identifies a segment or group inside a Model. Handles are issued
// by the model; a segment that has not been applied yet has none.
type Handle string

// Segment is one straight track segment.
type Segment struct {
	Handle Handle
	Start  Point
	End    Point
	Layer  Layer
	Net    Net
	Width  Length
}

// SplitConfig holds the bus parameters shared by every split in a batch.
type SplitConfig struct {
	Width      Length // width of each replacement segment, > 0
	Separation Length // gap between neighbouring segments, >= 0
	Count      int    // number of replacement segments, >= 1
}

// GroupSpec describes the group created around a cluster.
type GroupSpec struct {
	Name string
}

// Cluster is the result of splitting one segment: Count new segments ordered
// by increasing perpendicular offset, plus the group that will hold them.
// Original is kept for reference only and is never part of Segments.
type Cluster struct {
	Original Segment
	Segments []Segment
	Group    GroupSpec
}

// Transaction is the set of layout edits implied by one cluster. A Model
// applies all of it or none of it.
type Transaction struct {
	Remove Handle
	Add    []Segment
	Group  GroupSpec
}

// Transaction returns the edits that replace the original with the cluster.
func (c *Cluster) Transaction() Transaction {
	add := make([]Segment, len(c.Segments))
	copy(add, c.Segments)
	return Transaction{
		Remove: c.Original.Handle,
		Add:    add,
		Group:  c.Group,
	}
}

// Applied reports the handles a Model issued for a committed transaction.
type Applied struct {
	Segments []Handle
	Group    Handle
}

// Model is the layout being edited.
type Model interface {
	// Segments enumerates every straight segment in native order.
	Segments() []Segment

	// Apply commits a transaction atomically. On error the layout is
	// unchanged.
	Apply(tx Transaction) (*Applied, error)
}
