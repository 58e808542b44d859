package snapshot

import (
	"errors"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrInvalidNodeID is returned by [Snapshot.AddNode] when the node ID is
	// empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Snapshot.AddNode] when a node with
	// the same ID already exists.
	ErrDuplicateNodeID = errors.New("duplicate node ID")
)

// CommunityID is a community assignment for one community algorithm.
// Negative values mean the node was not assigned to any community.
type CommunityID int

// Unassigned marks a node that belongs to no community ("noise").
const Unassigned CommunityID = -1

// Assigned reports whether c names a real community.
func (c CommunityID) Assigned() bool { return c >= 0 }

// Score is a centrality score together with the tier label the analysis
// stage precomputed for it.
type Score struct {
	Value   float64
	Tier    Tier
	HasTier bool
}

// Attribute is a weighted attribute key attached to a node, such as a
// destination language and its translation volume.
type Attribute struct {
	Key    string
	Weight float64
}

// Node is an author in the graph.
//
// Identity fields are set when the snapshot is built and never change. The
// fields below the separator are per-render state owned by the layout and
// filter stages.
type Node struct {
	ID          string
	Label       string
	TotalWeight float64

	// Communities maps a community algorithm name ("louvain", "leiden",
	// ...) to the node's community under that algorithm.
	Communities map[string]CommunityID

	Centrality      map[Metric]Score
	ExtraCentrality map[string]Score // metrics without a Metric constant

	// ConcentrationRaw and ConcentrationNorm drive radial placement. NaN
	// means the value is absent.
	ConcentrationRaw  float64
	ConcentrationNorm float64

	Attributes []Attribute

	// ---- per-render state ----

	Pos            r2.Vec  // canvas position
	Tier           Tier    // tier under the active thresholds
	Radial         float64 // distance from centre divided by the usable radius
	Visible        bool    // base visibility after edge-weight filtering
	ClusterVisible bool    // passes every filter step
}

// Score returns the concentration score used for tiering: the normalized
// value when present, otherwise the raw value. NaN means no score.
func (n *Node) Score() float64 {
	if !math.IsNaN(n.ConcentrationNorm) {
		return n.ConcentrationNorm
	}
	return n.ConcentrationRaw
}

// HasScore reports whether the node has a finite concentration score.
func (n *Node) HasScore() bool {
	s := n.Score()
	return !math.IsNaN(s) && !math.IsInf(s, 0)
}

// Community returns the node's community under the given algorithm, or
// Unassigned if the node has none.
func (n *Node) Community(key string) CommunityID {
	if c, ok := n.Communities[key]; ok && c.Assigned() {
		return c
	}
	return Unassigned
}

// HasAttribute reports whether the node carries the attribute key.
func (n *Node) HasAttribute(key string) bool {
	for _, a := range n.Attributes {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SharesAttribute reports whether n and o have at least one attribute key
// in common.
func (n *Node) SharesAttribute(o *Node) bool {
	for _, a := range n.Attributes {
		if o.HasAttribute(a.Key) {
			return true
		}
	}
	return false
}

// SharesCommunity reports whether n and o are assigned to the same
// community under some algorithm. Unassigned never matches.
func (n *Node) SharesCommunity(o *Node) bool {
	for k, c := range n.Communities {
		if c.Assigned() && o.Community(k) == c {
			return true
		}
	}
	return false
}

// CentralityScore returns the score for m. Unknown metrics are looked up by
// name in ExtraCentrality.
func (n *Node) CentralityScore(m Metric, name string) (Score, bool) {
	if m != MetricUnknown {
		s, ok := n.Centrality[m]
		return s, ok
	}
	s, ok := n.ExtraCentrality[name]
	return s, ok
}

// EdgeKey is the canonical key of an undirected edge: A <= B.
type EdgeKey struct {
	A, B string
}

// NewEdgeKey returns the canonical key for the pair, sorting the ids.
func NewEdgeKey(a, b string) EdgeKey {
	if b < a {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// Has reports whether id is one of the endpoints.
func (k EdgeKey) Has(id string) bool { return k.A == id || k.B == id }

// Other returns the endpoint opposite id. If id is not an endpoint the
// result is undefined.
func (k EdgeKey) Other(id string) string {
	if k.A == id {
		return k.B
	}
	return k.A
}

func (k EdgeKey) String() string { return k.A + "--" + k.B }

// Edge is an undirected weighted link between two authors.
type Edge struct {
	Key              EdgeKey
	Weight           float64
	SharedAttributes int
	SharedVolume     float64
}

// Meta describes which analytic results the snapshot carries.
type Meta struct {
	MinEdgeWeight       float64
	CommunityAlgorithms []string
	CentralityMetrics   []string
}

// Snapshot is a loaded author graph.
//
// The zero value is not usable; use New. Snapshot is not safe for concurrent
// mutation; the interaction controller serializes access.
type Snapshot struct {
	meta      Meta
	order     []string
	nodes     map[string]*Node
	edges     []Edge
	edgeIndex map[EdgeKey]int
	incident  map[string][]int // node id -> indices into edges
}

// New creates an empty snapshot.
func New(meta Meta) *Snapshot {
	return &Snapshot{
		meta:      meta,
		nodes:     make(map[string]*Node),
		edgeIndex: make(map[EdgeKey]int),
		incident:  make(map[string][]int),
	}
}

// Meta returns the snapshot metadata.
func (s *Snapshot) Meta() Meta { return s.meta }

// AddNode adds a node and marks it visible. Nil maps are initialized.
// Absent concentration scores must be passed as NaN; a zero value is a
// real score of zero.
func (s *Snapshot) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := s.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Label == "" {
		n.Label = n.ID
	}
	if n.Communities == nil {
		n.Communities = map[string]CommunityID{}
	}
	if n.Centrality == nil {
		n.Centrality = map[Metric]Score{}
	}
	if n.ExtraCentrality == nil {
		n.ExtraCentrality = map[string]Score{}
	}
	n.Visible = true
	n.ClusterVisible = true
	node := &n
	s.nodes[n.ID] = node
	s.order = append(s.order, n.ID)
	return nil
}

// AddEdge adds an undirected edge and reports whether it was kept. Edges
// with an unknown endpoint, self-loops and duplicates of an existing key
// are dropped.
func (s *Snapshot) AddEdge(e Edge) bool {
	e.Key = NewEdgeKey(e.Key.A, e.Key.B)
	if e.Key.A == e.Key.B {
		return false
	}
	if _, ok := s.nodes[e.Key.A]; !ok {
		return false
	}
	if _, ok := s.nodes[e.Key.B]; !ok {
		return false
	}
	if _, dup := s.edgeIndex[e.Key]; dup {
		return false
	}
	i := len(s.edges)
	s.edges = append(s.edges, e)
	s.edgeIndex[e.Key] = i
	s.incident[e.Key.A] = append(s.incident[e.Key.A], i)
	s.incident[e.Key.B] = append(s.incident[e.Key.B], i)
	return true
}

// Node returns the node with the given id.
func (s *Snapshot) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes returns every node in insertion order. The pointers refer to the
// snapshot's nodes, so per-render fields can be written through them.
func (s *Snapshot) Nodes() []*Node {
	out := make([]*Node, len(s.order))
	for i, id := range s.order {
		out[i] = s.nodes[id]
	}
	return out
}

// IDs returns every node id in insertion order.
func (s *Snapshot) IDs() []string { return slices.Clone(s.order) }

// Edges returns a copy of the edge list in insertion order.
func (s *Snapshot) Edges() []Edge { return slices.Clone(s.edges) }

// Edge looks up an edge by its endpoints in either order.
func (s *Snapshot) Edge(a, b string) (Edge, bool) {
	i, ok := s.edgeIndex[NewEdgeKey(a, b)]
	if !ok {
		return Edge{}, false
	}
	return s.edges[i], true
}

// Incident returns the edges touching id in insertion order.
func (s *Snapshot) Incident(id string) []Edge {
	idx := s.incident[id]
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = s.edges[j]
	}
	return out
}

// Neighbors returns the ids adjacent to id in edge insertion order.
func (s *Snapshot) Neighbors(id string) []string {
	idx := s.incident[id]
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = s.edges[j].Key.Other(id)
	}
	return out
}

// NodeCount returns the number of nodes.
func (s *Snapshot) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of edges.
func (s *Snapshot) EdgeCount() int { return len(s.edges) }

// Attributes returns every distinct attribute key, sorted.
func (s *Snapshot) Attributes() []string {
	seen := make(map[string]struct{})
	for _, n := range s.nodes {
		for _, a := range n.Attributes {
			seen[a.Key] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// CommunityKeys returns the community algorithms present on any node,
// sorted. Declared algorithms from Meta are included even when no node
// carries them.
func (s *Snapshot) CommunityKeys() []string {
	seen := make(map[string]struct{})
	for _, k := range s.meta.CommunityAlgorithms {
		seen[k] = struct{}{}
	}
	for _, n := range s.nodes {
		for k := range n.Communities {
			seen[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// CommunitySizes counts members per assigned community under key.
// Unassigned nodes are not counted.
func (s *Snapshot) CommunitySizes(key string) map[CommunityID]int {
	sizes := make(map[CommunityID]int)
	for _, n := range s.nodes {
		if c := n.Community(key); c.Assigned() {
			sizes[c]++
		}
	}
	return sizes
}

// Clone returns a deep copy. Controllers clone the snapshot they are given
// so per-render fields of one view never leak into another.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		meta: Meta{
			MinEdgeWeight:       s.meta.MinEdgeWeight,
			CommunityAlgorithms: slices.Clone(s.meta.CommunityAlgorithms),
			CentralityMetrics:   slices.Clone(s.meta.CentralityMetrics),
		},
		order:     slices.Clone(s.order),
		nodes:     make(map[string]*Node, len(s.nodes)),
		edges:     slices.Clone(s.edges),
		edgeIndex: maps.Clone(s.edgeIndex),
		incident:  make(map[string][]int, len(s.incident)),
	}
	for id, n := range s.nodes {
		cp := *n
		cp.Communities = maps.Clone(n.Communities)
		cp.Centrality = maps.Clone(n.Centrality)
		cp.ExtraCentrality = maps.Clone(n.ExtraCentrality)
		cp.Attributes = slices.Clone(n.Attributes)
		c.nodes[id] = &cp
	}
	for id, idx := range s.incident {
		c.incident[id] = slices.Clone(idx)
	}
	return c
}
