package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/render"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
)

// =============================================================================
// Layout - Positioned View Export
// =============================================================================

// Layout is the serialized form of one rendered view: canvas geometry,
// bands and sectors, and every visible node with its position and colour.
// Downstream tools can draw it without re-running the layout engine.
type Layout struct {
	Width   float64 `json:"width" bson:"width"`
	Height  float64 `json:"height" bson:"height"`
	CenterX float64 `json:"centerX" bson:"center_x"`
	CenterY float64 `json:"centerY" bson:"center_y"`
	Radius  float64 `json:"radius" bson:"radius"`

	Thresholds   layout.Thresholds `json:"thresholds" bson:"thresholds"`
	CommunityKey string            `json:"communityKey,omitempty" bson:"community_key,omitempty"`
	Bands        []layout.Band     `json:"bands" bson:"bands"`
	Sectors      []layout.Sector   `json:"sectors" bson:"sectors"`
	Colors       map[string]string `json:"colors,omitempty" bson:"colors,omitempty"` // community id -> hex

	Nodes []PlacedNode `json:"nodes" bson:"nodes"`
	Links []Link       `json:"links" bson:"links"`

	Filters    *filter.State `json:"filters,omitempty" bson:"-"`
	TotalNodes int           `json:"totalNodes" bson:"total_nodes"`
	TotalEdges int           `json:"totalEdges" bson:"total_edges"`
}

// PlacedNode is a visible node with its canvas position.
type PlacedNode struct {
	ID          string   `json:"id" bson:"id"`
	Label       string   `json:"label" bson:"label"`
	X           float64  `json:"x" bson:"x"`
	Y           float64  `json:"y" bson:"y"`
	Tier        string   `json:"tier" bson:"tier"`
	Community   int      `json:"community" bson:"community"`
	Radial      float64  `json:"radial" bson:"radial"`
	Score       *float64 `json:"score,omitempty" bson:"score,omitempty"`
	Color       string   `json:"color" bson:"color"`
	Highlighted bool     `json:"highlighted,omitempty" bson:"highlighted,omitempty"`
	Selected    bool     `json:"selected,omitempty" bson:"selected,omitempty"`
}

// FromFrame exports a render frame. A nil palette is built from the frame's
// community order.
func FromFrame(f *render.Frame, p *render.Palette) Layout {
	if p == nil {
		p = render.NewPalette(f.Communities)
	}
	l := Layout{
		Width:        f.Canvas.Width,
		Height:       f.Canvas.Height,
		CenterX:      f.CenterX,
		CenterY:      f.CenterY,
		Thresholds:   f.Thresholds,
		CommunityKey: f.CommunityKey,
		Bands:        append([]layout.Band(nil), f.Bands...),
		Sectors:      append([]layout.Sector(nil), f.Sectors...),
		Nodes:        make([]PlacedNode, 0, len(f.Nodes)),
		Links:        make([]Link, 0, len(f.Edges)),
		TotalNodes:   f.TotalNodes,
		TotalEdges:   f.TotalEdges,
	}
	if f.Filters != nil {
		l.Filters = f.Filters.Clone()
	}
	for _, b := range f.Bands {
		l.Radius = max(l.Radius, b.Outer)
	}
	if len(f.Communities) > 0 {
		l.Colors = make(map[string]string, len(f.Communities))
		for _, c := range f.Communities {
			l.Colors[strconv.Itoa(int(c))] = p.Color(c)
		}
	}
	for _, n := range f.Nodes {
		l.Nodes = append(l.Nodes, PlacedNode{
			ID:          n.ID,
			Label:       n.Label,
			X:           n.X,
			Y:           n.Y,
			Tier:        n.Tier.String(),
			Community:   int(n.Community),
			Radial:      n.Radial,
			Score:       n.Score,
			Color:       p.Color(n.Community),
			Highlighted: n.Highlighted,
			Selected:    n.Selected,
		})
	}
	for _, e := range f.Edges {
		l.Links = append(l.Links, Link{Source: e.A, Target: e.B, Weight: e.Weight})
	}
	return l
}

// ToFrame rebuilds a render frame from an exported layout so a cached
// layout renders exactly like a fresh one. Community order follows the
// sectors, which keeps palette colours stable.
func ToFrame(l Layout) *render.Frame {
	f := &render.Frame{
		Canvas:       layout.Canvas{Width: l.Width, Height: l.Height},
		Transform:    render.Identity(),
		CenterX:      l.CenterX,
		CenterY:      l.CenterY,
		Bands:        append([]layout.Band(nil), l.Bands...),
		Sectors:      append([]layout.Sector(nil), l.Sectors...),
		Thresholds:   l.Thresholds,
		CommunityKey: l.CommunityKey,
		Nodes:        make([]render.FrameNode, 0, len(l.Nodes)),
		Edges:        make([]render.FrameEdge, 0, len(l.Links)),
		TotalNodes:   l.TotalNodes,
		TotalEdges:   l.TotalEdges,
	}
	if l.Filters != nil {
		f.Filters = l.Filters.Clone()
		f.Selection = f.Filters.SelectionMode().String()
	}
	for _, s := range l.Sectors {
		f.Communities = append(f.Communities, s.Community)
	}
	pos := make(map[string]PlacedNode, len(l.Nodes))
	for _, n := range l.Nodes {
		pos[n.ID] = n
		tier, err := snapshot.ParseTier(n.Tier)
		if err != nil {
			tier = snapshot.TierOuter
		}
		f.Nodes = append(f.Nodes, render.FrameNode{
			ID:          n.ID,
			Label:       n.Label,
			X:           n.X,
			Y:           n.Y,
			Tier:        tier,
			Community:   snapshot.CommunityID(n.Community),
			Radial:      n.Radial,
			Score:       n.Score,
			Highlighted: n.Highlighted,
			Selected:    n.Selected,
		})
	}
	for _, e := range l.Links {
		a, okA := pos[e.Source]
		b, okB := pos[e.Target]
		if !okA || !okB {
			continue
		}
		f.Edges = append(f.Edges, render.FrameEdge{
			A: e.Source, B: e.Target, Weight: e.Weight,
			X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y,
		})
	}
	f.Sort()
	return f
}

// Node returns the placed node with the given id.
func (l *Layout) Node(id string) (PlacedNode, bool) {
	for _, n := range l.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return PlacedNode{}, false
}

// TierCounts returns how many placed nodes fall in each tier.
func (l *Layout) TierCounts() map[snapshot.Tier]int {
	counts := make(map[snapshot.Tier]int, snapshot.NumTiers)
	for _, n := range l.Nodes {
		if t, err := snapshot.ParseTier(n.Tier); err == nil {
			counts[t]++
		}
	}
	return counts
}

// =============================================================================
// Layout Serialization API
// =============================================================================

// MarshalLayout serializes a Layout to pretty-printed JSON bytes.
func MarshalLayout(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// UnmarshalLayout deserializes JSON bytes into a Layout and checks the
// canvas dimensions.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "unmarshal layout")
	}
	if err := errors.ValidateCanvas(l.Width, l.Height); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// WriteLayoutFile writes a Layout to a JSON file.
func WriteLayoutFile(l Layout, path string) error {
	data, err := MarshalLayout(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadLayoutFile reads a Layout from a JSON file.
func ReadLayoutFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalLayout(data)
}
