// Package snapshot holds the in-memory author graph the layout and filter
// stages operate on.
//
// # Overview
//
// A [Snapshot] is built once per loaded data set and then treated as
// read-only with respect to identity: node ids, labels, scores, community
// assignments and edges never change after construction. Each [Node] also
// carries a handful of per-render fields ([Node.Pos], [Node.Tier],
// [Node.Radial], [Node.Visible], [Node.ClusterVisible]) that the layout
// engine and the filter engine rewrite in place on every pass.
//
// # Building a Snapshot
//
//	s := snapshot.New(snapshot.Meta{CommunityAlgorithms: []string{"louvain"}})
//	_ = s.AddNode(snapshot.Node{ID: "ana", ConcentrationNorm: 0.9})
//	_ = s.AddNode(snapshot.Node{ID: "ben", ConcentrationNorm: 0.5})
//	s.AddEdge(snapshot.Edge{Key: snapshot.NewEdgeKey("ben", "ana"), Weight: 3})
//
// [Snapshot.AddEdge] never fails: edges that reference unknown nodes,
// self-loops and duplicates of an existing canonical key are dropped and
// reported through its boolean result so loaders can count them.
//
// # Edge Keys
//
// Edges are undirected. [NewEdgeKey] sorts its arguments so that A–B and
// B–A map to the same [EdgeKey].
//
// # Metrics
//
// Centrality metrics form a closed set ([Metric]). Names that do not parse
// to a known metric are kept in [Node.ExtraCentrality] instead of being
// discarded, so a newer ingestion stage can ship extra metrics without
// breaking older readers.
package snapshot
