package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// pointsPerInch converts canvas pixels to Graphviz points for pinned
// positions; Graphviz positions are in points, node sizes in inches.
const pointsPerInch = 72.0

// ToDOT converts a frame to an undirected Graphviz graph whose node
// positions are pinned to the layout (pos="x,y!"). Graphviz's y axis points
// up, so y is flipped against the canvas height.
func ToDOT(f *Frame, p *Palette) string {
	if p == nil {
		p = NewPalette(f.Communities)
	}
	frame := *f
	frame.Nodes = append([]FrameNode(nil), f.Nodes...)
	frame.Edges = append([]FrameEdge(nil), f.Edges...)
	frame.Sort()

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", BackgroundColor)
	fmt.Fprintf(&buf, "  size=\"%.2f,%.2f!\";\n", f.Canvas.Width/pointsPerInch, f.Canvas.Height/pointsPerInch)
	buf.WriteString("  outputorder=edgesfirst;\n")
	buf.WriteString("  node [shape=circle, style=filled, label=\"\", width=0.11, fixedsize=true, penwidth=0];\n")
	fmt.Fprintf(&buf, "  edge [color=\"%s59\"];\n", EdgeColor)
	buf.WriteString("\n")

	for _, n := range frame.Nodes {
		attrs := fmt.Sprintf("pos=\"%.2f,%.2f!\", fillcolor=%q, tooltip=%q", n.X, f.Canvas.Height-n.Y, p.Color(n.Community), n.Label)
		if n.Highlighted {
			attrs += fmt.Sprintf(", penwidth=1.5, color=%q, xlabel=%q", HighlightColor, n.Label)
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, attrs)
	}

	buf.WriteString("\n")
	for _, e := range frame.Edges {
		fmt.Fprintf(&buf, "  %q -- %q [penwidth=%.2f];\n", e.A, e.B, edgeWidth(e.Weight))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderPNG rasterizes the frame with Graphviz's neato engine, which keeps
// the pinned positions from ToDOT.
func RenderPNG(ctx context.Context, f *Frame, p *Palette) ([]byte, error) {
	return renderDOT(ctx, ToDOT(f, p), graphviz.PNG)
}

// RenderDOTSVG renders the frame through Graphviz instead of the native SVG
// writer. Output differs from RenderSVG but keeps node positions.
func RenderDOTSVG(ctx context.Context, f *Frame, p *Palette) ([]byte, error) {
	return renderDOT(ctx, ToDOT(f, p), graphviz.SVG)
}

func renderDOT(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
