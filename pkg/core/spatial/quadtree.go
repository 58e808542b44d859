// Package spatial provides a point-region quadtree for hit-testing laid-out
// nodes.
//
// A [Quadtree] is built once from a set of positions and never updated; the
// interaction controller rebuilds it whenever layout or visibility change.
// Build is O(n log n) for well-spread input. Queries are inclusive: an item at
// exactly distance r from the query point is within radius r.
package spatial

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// leafCapacity is the number of items a leaf holds before it splits.
	leafCapacity = 8

	// maxDepth bounds subdivision so coincident points cannot recurse
	// forever; leaves at this depth grow without splitting.
	maxDepth = 16
)

// Item is an indexed point.
type Item struct {
	ID  string
	Pos r2.Vec
}

// Quadtree is an immutable point-region quadtree.
type Quadtree struct {
	root *quad
	size int
}

type quad struct {
	bounds   r2.Box
	depth    int
	items    []Item
	children *[4]quad
}

// Build indexes items. Items with a non-finite coordinate are skipped.
func Build(items []Item) *Quadtree {
	pts := make([]Item, 0, len(items))
	for _, it := range items {
		if finite(it.Pos.X) && finite(it.Pos.Y) {
			pts = append(pts, it)
		}
	}
	qt := &Quadtree{size: len(pts)}
	if len(pts) == 0 {
		return qt
	}
	qt.root = &quad{bounds: boundsOf(pts)}
	for _, it := range pts {
		qt.root.insert(it)
	}
	return qt
}

// Len returns the number of indexed items.
func (q *Quadtree) Len() int { return q.size }

// Bounds returns the square region covered by the root, or the zero box for
// an empty tree.
func (q *Quadtree) Bounds() r2.Box {
	if q.root == nil {
		return r2.Box{}
	}
	return q.root.bounds
}

// Nearest returns the item closest to p with distance <= r. Equidistant
// items are broken by ascending ID.
func (q *Quadtree) Nearest(p r2.Vec, r float64) (Item, bool) {
	if q.root == nil || r < 0 || math.IsNaN(r) {
		return Item{}, false
	}
	s := nearestSearch{p: p, best: r}
	s.visit(q.root)
	return s.item, s.found
}

// Within returns every item within distance r of p, nearest first, ties by
// ascending ID.
func (q *Quadtree) Within(p r2.Vec, r float64) []Item {
	if q.root == nil || r < 0 || math.IsNaN(r) {
		return nil
	}
	var out []Item
	q.root.collect(p, r, &out)
	slices.SortFunc(out, func(a, b Item) int {
		if c := cmp.Compare(dist(a.Pos, p), dist(b.Pos, p)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (n *quad) insert(it Item) {
	if n.children == nil {
		if len(n.items) < leafCapacity || n.depth >= maxDepth {
			n.items = append(n.items, it)
			return
		}
		n.split()
	}
	n.children[n.childFor(it.Pos)].insert(it)
}

func (n *quad) split() {
	mid := center(n.bounds)
	lo, hi := n.bounds.Min, n.bounds.Max
	n.children = &[4]quad{
		{bounds: r2.Box{Min: lo, Max: mid}},
		{bounds: r2.Box{Min: r2.Vec{X: mid.X, Y: lo.Y}, Max: r2.Vec{X: hi.X, Y: mid.Y}}},
		{bounds: r2.Box{Min: r2.Vec{X: lo.X, Y: mid.Y}, Max: r2.Vec{X: mid.X, Y: hi.Y}}},
		{bounds: r2.Box{Min: mid, Max: hi}},
	}
	for i := range n.children {
		n.children[i].depth = n.depth + 1
	}
	items := n.items
	n.items = nil
	for _, it := range items {
		n.children[n.childFor(it.Pos)].insert(it)
	}
}

func (n *quad) childFor(p r2.Vec) int {
	mid := center(n.bounds)
	i := 0
	if p.X >= mid.X {
		i |= 1
	}
	if p.Y >= mid.Y {
		i |= 2
	}
	return i
}

func (n *quad) collect(p r2.Vec, r float64, out *[]Item) {
	if boxDist(n.bounds, p) > r {
		return
	}
	for _, it := range n.items {
		if dist(it.Pos, p) <= r {
			*out = append(*out, it)
		}
	}
	if n.children != nil {
		for i := range n.children {
			n.children[i].collect(p, r, out)
		}
	}
}

type nearestSearch struct {
	p     r2.Vec
	best  float64
	item  Item
	found bool
}

func (s *nearestSearch) visit(n *quad) {
	if boxDist(n.bounds, s.p) > s.best {
		return
	}
	for _, it := range n.items {
		d := dist(it.Pos, s.p)
		if d > s.best {
			continue
		}
		if d < s.best || !s.found || it.ID < s.item.ID {
			s.item, s.best, s.found = it, d, true
		}
	}
	if n.children == nil {
		return
	}
	// Visit the child containing p first to tighten the bound early.
	first := n.childFor(s.p)
	s.visit(&n.children[first])
	for i := range n.children {
		if i != first {
			s.visit(&n.children[i])
		}
	}
}

func boundsOf(items []Item) r2.Box {
	lo := items[0].Pos
	hi := items[0].Pos
	for _, it := range items[1:] {
		lo.X, lo.Y = math.Min(lo.X, it.Pos.X), math.Min(lo.Y, it.Pos.Y)
		hi.X, hi.Y = math.Max(hi.X, it.Pos.X), math.Max(hi.Y, it.Pos.Y)
	}
	// Square the region so quadrants stay square; pad so no point sits on
	// the max edge.
	side := math.Max(math.Max(hi.X-lo.X, hi.Y-lo.Y), 1) * 1.001
	return r2.Box{Min: lo, Max: r2.Vec{X: lo.X + side, Y: lo.Y + side}}
}

func center(b r2.Box) r2.Vec { return r2.Scale(0.5, r2.Add(b.Min, b.Max)) }

func boxDist(b r2.Box, p r2.Vec) float64 {
	dx := math.Max(math.Max(b.Min.X-p.X, 0), p.X-b.Max.X)
	dy := math.Max(math.Max(b.Min.Y-p.Y, 0), p.Y-b.Max.Y)
	return math.Hypot(dx, dy)
}

func dist(a, b r2.Vec) float64 { return r2.Norm(r2.Sub(a, b)) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
