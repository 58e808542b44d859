// Package render paints a laid-out, filtered author graph.
//
// The render pass consumes an immutable [Frame] built by the interaction
// controller and produces bytes only: SVG written directly, Graphviz DOT
// with pinned positions, and PNG rasterized by Graphviz from that DOT.
// Rendering the same Frame twice yields identical output; nodes and edges
// are sorted before drawing.
//
// Community colours come from an explicit [Palette] built from the sector
// order, so the same community keeps the same colour across renders of a
// view and tests do not depend on call order.
package render
