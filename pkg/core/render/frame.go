package render

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// Zoom limits for Transform.ZoomAt.
const (
	MinScale = 0.1
	MaxScale = 20.0
)

// Transform maps canvas coordinates to screen coordinates:
// screen = canvas * Scale + (TX, TY).
type Transform struct {
	Scale float64 `json:"scale"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
}

// Identity is the transform that leaves coordinates unchanged.
func Identity() Transform { return Transform{Scale: 1} }

// ToScreen maps a canvas point to the screen.
func (t Transform) ToScreen(p r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(t.Scale, p), r2.Vec{X: t.TX, Y: t.TY})
}

// ToCanvas maps a screen point back to the canvas.
func (t Transform) ToCanvas(p r2.Vec) r2.Vec {
	return r2.Scale(1/t.Scale, r2.Sub(p, r2.Vec{X: t.TX, Y: t.TY}))
}

// Pan shifts the transform by a screen-space offset.
func (t Transform) Pan(dx, dy float64) Transform {
	t.TX += dx
	t.TY += dy
	return t
}

// ZoomAt scales by factor keeping the screen point anchor fixed. The
// resulting scale is clamped to [MinScale, MaxScale].
func (t Transform) ZoomAt(factor float64, anchor r2.Vec) Transform {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return t
	}
	next := math.Max(MinScale, math.Min(MaxScale, t.Scale*factor))
	c := t.ToCanvas(anchor)
	return Transform{
		Scale: next,
		TX:    anchor.X - c.X*next,
		TY:    anchor.Y - c.Y*next,
	}
}

// FrameNode is a visible node as drawn.
type FrameNode struct {
	ID          string               `json:"id"`
	Label       string               `json:"label"`
	X           float64              `json:"x"`
	Y           float64              `json:"y"`
	Tier        snapshot.Tier        `json:"tier"`
	Community   snapshot.CommunityID `json:"community"`
	Radial      float64              `json:"radial"`
	Score       *float64             `json:"score,omitempty"`
	Weight      float64              `json:"weight"`
	Highlighted bool                 `json:"highlighted,omitempty"`
	Selected    bool                 `json:"selected,omitempty"`
	Hovered     bool                 `json:"hovered,omitempty"`
}

// FrameEdge is a visible edge as drawn.
type FrameEdge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
}

// Frame is everything needed to draw one view state. It shares no memory
// with the controller that built it.
type Frame struct {
	Canvas       layout.Canvas          `json:"canvas"`
	Transform    Transform              `json:"transform"`
	CenterX      float64                `json:"centerX"`
	CenterY      float64                `json:"centerY"`
	Bands        []layout.Band          `json:"bands"`
	Sectors      []layout.Sector        `json:"sectors"`
	Thresholds   layout.Thresholds      `json:"thresholds"`
	CommunityKey string                 `json:"communityKey"`
	Communities  []snapshot.CommunityID `json:"communities"`
	Nodes        []FrameNode            `json:"nodes"`
	Edges        []FrameEdge            `json:"edges"`
	Filters      *filter.State          `json:"filters"`
	Selection    string                 `json:"selection"`
	Hover        string                 `json:"hover,omitempty"`
	TotalNodes   int                    `json:"totalNodes"`
	TotalEdges   int                    `json:"totalEdges"`
}

// NewFrameNode copies the drawable fields of n.
func NewFrameNode(n *snapshot.Node, communityKey string) FrameNode {
	fn := FrameNode{
		ID:        n.ID,
		Label:     n.Label,
		X:         n.Pos.X,
		Y:         n.Pos.Y,
		Tier:      n.Tier,
		Community: n.Community(communityKey),
		Radial:    n.Radial,
		Weight:    n.TotalWeight,
	}
	if n.HasScore() {
		s := n.Score()
		fn.Score = &s
	}
	return fn
}

// Sort orders nodes by id and edges by endpoint ids.
func (f *Frame) Sort() {
	slices.SortFunc(f.Nodes, func(a, b FrameNode) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(f.Edges, func(a, b FrameEdge) int {
		if c := cmp.Compare(a.A, b.A); c != 0 {
			return c
		}
		return cmp.Compare(a.B, b.B)
	})
}

// Node returns the visible node with the given id.
func (f *Frame) Node(id string) (FrameNode, bool) {
	i, ok := slices.BinarySearchFunc(f.Nodes, id, func(n FrameNode, id string) int { return cmp.Compare(n.ID, id) })
	if !ok {
		return FrameNode{}, false
	}
	return f.Nodes[i], true
}
