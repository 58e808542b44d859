// Package graph provides the wire formats for author graphs and rendered
// layouts.
//
// # Graph
//
// [Graph] is the node-link JSON document written by the ingestion stage:
//
//	{
//	  "meta":  {"minEdgeWeight": 1, "communityAlgorithms": ["louvain"], ...},
//	  "nodes": [{"id": "ada", "totalWeight": 12,
//	             "centralizationScoreNormalized": 0.8,
//	             "communities": {"louvain": 0},
//	             "languages": [{"language": "de", "weight": 7}],
//	             "centrality": {"degree": 0.4},
//	             "centralityTier": {"degree": "central"}}],
//	  "links": [{"source": "ada", "target": "bo", "weight": 3,
//	             "sharedLanguageCount": 3, "sharedTranslationCount": 40}]
//	}
//
// [ToSnapshot] and [FromSnapshot] convert between the wire type and
// [snapshot.Snapshot]. Conversion never fails on degraded content: links to
// unknown authors, self-loops and repeated pairs are dropped, non-author
// nodes are skipped, unknown metric names land in the node's fallback
// centrality map, and a missing concentration score stays missing (NaN)
// rather than becoming zero. [Stats] counts what was skipped.
//
// Tier labels use the ingestion vocabulary: "central", "periphery" and
// "outer". "central" parses as [snapshot.TierCore].
//
// # Layout
//
// [Layout] is the exported form of one rendered view, built from a
// [render.Frame] by [FromFrame]. It carries positions, tiers, community
// colours and the filter state that produced it.
//
// Both types carry bson tags; the Mongo snapshot store persists [Graph]
// documents directly.
package graph
