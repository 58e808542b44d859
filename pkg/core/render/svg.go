package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
)

const interactionCSS = `
    .node { transition: r 0.15s ease; }
    .node.highlight { stroke: ` + HighlightColor + `; stroke-width: 2; }
    .node.hover { stroke-width: 3; }
    .node.selected { stroke: ` + HighlightColor + `; stroke-width: 3; stroke-dasharray: 2 1; }
    .edge { stroke: ` + EdgeColor + `; stroke-opacity: 0.35; }
    .band { fill: none; stroke: ` + BandColor + `; }
    .label { font-family: sans-serif; font-size: 11px; pointer-events: none; }`

type SVGOption func(*svgRenderer)

type svgRenderer struct {
	palette    *Palette
	nodeRadius float64
	labels     bool
	bands      bool
}

func WithPalette(p *Palette) SVGOption { return func(r *svgRenderer) { r.palette = p } }
func WithNodeRadius(px float64) SVGOption {
	return func(r *svgRenderer) { r.nodeRadius = px }
}
func WithLabels() SVGOption   { return func(r *svgRenderer) { r.labels = true } }
func WithoutBands() SVGOption { return func(r *svgRenderer) { r.bands = false } }

func newSVGRenderer(f *Frame, opts ...SVGOption) *svgRenderer {
	r := &svgRenderer{nodeRadius: 4, bands: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.palette == nil {
		r.palette = NewPalette(f.Communities)
	}
	return r
}

// RenderSVG draws the frame. Edges are drawn beneath nodes; highlighted
// nodes get an outline and, with WithLabels, a text label.
func RenderSVG(f *Frame, opts ...SVGOption) []byte {
	r := newSVGRenderer(f, opts...)
	frame := *f
	frame.Nodes = append([]FrameNode(nil), f.Nodes...)
	frame.Edges = append([]FrameEdge(nil), f.Edges...)
	frame.Sort()

	w, h := frame.Canvas.Width, frame.Canvas.Height
	t := frame.Transform
	if t.Scale == 0 {
		t = Identity()
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n", w, h, w, h)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", interactionCSS)
	fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", BackgroundColor)
	fmt.Fprintf(&buf, `  <g transform="translate(%.2f %.2f) scale(%.4f)">`+"\n", t.TX, t.TY, t.Scale)

	if r.bands {
		for _, b := range frame.Bands {
			fmt.Fprintf(&buf, `    <circle class="band" data-tier="%s" cx="%.2f" cy="%.2f" r="%.2f"/>`+"\n",
				b.Tier, frame.CenterX, frame.CenterY, b.Outer)
		}
	}

	for _, e := range frame.Edges {
		fmt.Fprintf(&buf, `    <line class="edge" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="%.2f"/>`+"\n",
			e.X1, e.Y1, e.X2, e.Y2, edgeWidth(e.Weight))
	}

	for _, n := range frame.Nodes {
		class := "node"
		if n.Highlighted {
			class += " highlight"
		}
		if n.Selected {
			class += " selected"
		}
		if n.Hovered {
			class += " hover"
		}
		fmt.Fprintf(&buf, `    <circle id="node-%s" class="%s" data-tier="%s" cx="%.2f" cy="%.2f" r="%.2f" fill="%s"><title>%s</title></circle>`+"\n",
			escapeXML(n.ID), class, n.Tier, n.X, n.Y, r.nodeRadius, r.palette.Color(n.Community), escapeXML(n.Label))
	}

	if r.labels {
		for _, n := range frame.Nodes {
			if !n.Highlighted && !n.Hovered {
				continue
			}
			fmt.Fprintf(&buf, `    <text class="label" x="%.2f" y="%.2f">%s</text>`+"\n",
				n.X+r.nodeRadius+2, n.Y+3, escapeXML(n.Label))
		}
	}

	buf.WriteString("  </g>\n</svg>\n")
	return buf.Bytes()
}

// edgeWidth grows logarithmically so heavy collaborations do not swamp the
// drawing.
func edgeWidth(weight float64) float64 {
	if !(weight > 0) {
		return 0.5
	}
	return 0.5 + math.Log1p(weight)*0.6
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
