// Package pkg provides the core libraries for orbit author-graph layouts.
//
// # Overview
//
// Orbit places the authors of a collaboration graph on concentric rings:
// the most central authors in the core ring, then the periphery, then the
// outer ring. Each ring is divided into angular sectors, one per detected
// community, so collaborators cluster together. The pkg directory is
// organized into four main areas:
//
//  1. [core] - Domain logic (snapshot model, layout, filters, interaction, rendering)
//  2. [graph] - Wire formats for author graphs and exported layouts
//  3. [pipeline] - Orchestration (load → layout → render) with caching
//  4. Infrastructure - [cache], [storage], [config], [server], [observability]
//
// # Architecture
//
// The typical data flow through orbit:
//
//	graph.json or stored snapshot
//	         ↓
//	    [graph] package (decode, drop degraded records)
//	         ↓
//	    [core/layout] package (tiers, bands, sectors, positions)
//	         ↓
//	    [core/filter] package (visibility and highlights)
//	         ↓
//	    [core/interact] package (selection, hover, pan/zoom, hit testing)
//	         ↓
//	    [core/render] package (SVG, PNG, DOT)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "os"
//
//	    "github.com/matzehuels/orbit/pkg/core/filter"
//	    "github.com/matzehuels/orbit/pkg/core/render"
//	    "github.com/matzehuels/orbit/pkg/graph"
//	    "github.com/matzehuels/orbit/pkg/pipeline"
//	)
//
//	f, _ := os.Open("authors.json")
//	snap, _, _ := graph.ReadGraph(f)
//
//	// Lay out and filter to the 50 heaviest authors.
//	ctrl, _ := pipeline.NewController(snap, pipeline.Options{
//	    Filters: filter.NewState(),
//	})
//	_ = ctrl.Apply(filter.SetTopN(50))
//
//	// Render the current view.
//	svg := render.RenderSVG(ctrl.Frame(), render.WithLabels())
//
// # Main Packages
//
// [core/snapshot] - Immutable author graph: nodes with centrality metrics,
// community assignments and language attributes; undirected weighted edges.
//
// [core/layout] - Tier classification by quantile or explicit thresholds,
// band geometry, community sectors, seeded jitter and overlap relaxation.
//
// [core/spatial] - Point quadtree for nearest-node hit testing.
//
// [core/filter] - Composable filter state and its evaluation: allowlist,
// tiers, attributes, score range, selection neighbourhood, communities,
// focus and query highlighting.
//
// [core/interact] - Stateful view controller that owns one snapshot, its
// layout, filter state and viewport, and turns pointer and key events into
// state changes.
//
// [core/render] - Frames and their renderers: standalone SVG, Graphviz DOT
// and PNG through go-graphviz.
//
// [pipeline] - The load → layout → render pipeline shared by the CLI and
// the HTTP server, with content-addressed caching of every stage.
//
// [cache] - Cache interface with file, Redis and null backends plus key
// derivation.
//
// [storage] - Named snapshot store with file and MongoDB backends.
//
// [server] - chi-based HTTP API exposing interactive views.
//
// [core]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/core
// [core/snapshot]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/core/snapshot
// [core/layout]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/core/layout
// [core/spatial]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/core/spatial
// [core/filter]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/core/filter
// [core/interact]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/core/interact
// [core/render]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/core/render
// [graph]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/graph
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/cache
// [storage]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/storage
// [config]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/config
// [server]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/server
// [observability]: https://pkg.go.dev/github.com/matzehuels/orbit/pkg/observability
package pkg
