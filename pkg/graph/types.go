package graph

import (
	"cmp"
	"math"
	"slices"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// =============================================================================
// Constants
// =============================================================================

// Node types produced by the ingestion stage. Only author nodes are loaded;
// the bipartite author-language export also carries language nodes.
const (
	NodeTypeAuthor   = "author"
	NodeTypeLanguage = "language"
)

// Tier labels as written by the ingestion stage.
const (
	TierLabelCentral   = "central"
	TierLabelPeriphery = "periphery"
	TierLabelOuter     = "outer"
)

// Well-known community algorithm keys. The set is open; any key found on
// nodes is usable as a community key.
const (
	CommunityLouvain = "louvain"
	CommunityLeiden  = "leiden"
	CommunityInfomap = "infomap"
)

// =============================================================================
// Graph - Author Graph Serialization
// =============================================================================

// Graph is the node-link JSON document written by the ingestion stage.
type Graph struct {
	Meta  Meta   `json:"meta" bson:"meta"`
	Nodes []Node `json:"nodes" bson:"nodes"`
	Links []Link `json:"links" bson:"links"`
}

// Meta summarizes the analysis that produced the graph.
type Meta struct {
	MinEdgeWeight       float64        `json:"minEdgeWeight" bson:"min_edge_weight"`
	EdgeCount           int            `json:"edgeCount" bson:"edge_count"`
	NodeCount           int            `json:"nodeCount" bson:"node_count"`
	Communities         map[string]int `json:"communities,omitempty" bson:"communities,omitempty"` // algorithm -> community count
	CommunityAlgorithms []string       `json:"communityAlgorithms,omitempty" bson:"community_algorithms,omitempty"`
	CentralityMetrics   []string       `json:"centralityMetrics,omitempty" bson:"centrality_metrics,omitempty"`
}

// Node is one author.
type Node struct {
	ID                  string   `json:"id" bson:"id"`
	Label               string   `json:"label,omitempty" bson:"label,omitempty"`
	Type                string   `json:"type,omitempty" bson:"type,omitempty"`
	TotalWeight         float64  `json:"totalWeight" bson:"total_weight"`
	LanguageCount       int      `json:"languageCount,omitempty" bson:"language_count,omitempty"`
	CentralizationScore *float64 `json:"centralizationScore,omitempty" bson:"centralization_score,omitempty"`

	CentralizationScoreNormalized *float64 `json:"centralizationScoreNormalized,omitempty" bson:"centralization_score_normalized,omitempty"`

	Communities    map[string]int     `json:"communities,omitempty" bson:"communities,omitempty"`
	Languages      []Language         `json:"languages,omitempty" bson:"languages,omitempty"`
	Centrality     map[string]float64 `json:"centrality,omitempty" bson:"centrality,omitempty"`
	CentralityTier map[string]string  `json:"centralityTier,omitempty" bson:"centrality_tier,omitempty"`
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Language is a destination language and the author's volume in it.
type Language struct {
	Language string  `json:"language" bson:"language"`
	Weight   float64 `json:"weight" bson:"weight"`
}

// Link is an undirected collaboration edge.
type Link struct {
	Source                 string  `json:"source" bson:"source"`
	Target                 string  `json:"target" bson:"target"`
	Weight                 float64 `json:"weight" bson:"weight"`
	SharedLanguageCount    int     `json:"sharedLanguageCount,omitempty" bson:"shared_language_count,omitempty"`
	SharedTranslationCount float64 `json:"sharedTranslationCount,omitempty" bson:"shared_translation_count,omitempty"`
}

// =============================================================================
// Graph ↔ Snapshot Conversion
// =============================================================================

// Stats reports what ToSnapshot had to skip. None of it is fatal.
type Stats struct {
	Nodes          int      // authors loaded
	Edges          int      // links loaded
	SkippedNodes   int      // non-author, unnamed or repeated nodes
	DroppedEdges   int      // self-loops, unknown endpoints, repeated pairs
	UnknownMetrics []string // metric names kept in the fallback map
	UnknownTiers   int      // tier labels that did not parse
}

// ToSnapshot converts the wire format into a snapshot. Degraded input is
// tolerated and counted in Stats rather than rejected.
func ToSnapshot(g Graph) (*snapshot.Snapshot, Stats) {
	var st Stats
	snap := snapshot.New(snapshot.Meta{
		MinEdgeWeight:       g.Meta.MinEdgeWeight,
		CommunityAlgorithms: slices.Clone(g.Meta.CommunityAlgorithms),
		CentralityMetrics:   slices.Clone(g.Meta.CentralityMetrics),
	})

	unknown := map[string]struct{}{}
	for i := range g.Nodes {
		wn := &g.Nodes[i]
		if wn.Type != "" && wn.Type != NodeTypeAuthor {
			st.SkippedNodes++
			continue
		}
		n := toNode(wn, unknown, &st)
		if err := snap.AddNode(n); err != nil {
			st.SkippedNodes++
			continue
		}
		st.Nodes++
	}

	for _, l := range g.Links {
		ok := snap.AddEdge(snapshot.Edge{
			Key:              snapshot.NewEdgeKey(l.Source, l.Target),
			Weight:           l.Weight,
			SharedAttributes: l.SharedLanguageCount,
			SharedVolume:     l.SharedTranslationCount,
		})
		if !ok {
			st.DroppedEdges++
			continue
		}
		st.Edges++
	}

	for name := range unknown {
		st.UnknownMetrics = append(st.UnknownMetrics, name)
	}
	slices.Sort(st.UnknownMetrics)
	return snap, st
}

func toNode(wn *Node, unknown map[string]struct{}, st *Stats) snapshot.Node {
	n := snapshot.Node{
		ID:                wn.ID,
		Label:             wn.DisplayLabel(),
		TotalWeight:       wn.TotalWeight,
		Communities:       make(map[string]snapshot.CommunityID, len(wn.Communities)),
		Centrality:        make(map[snapshot.Metric]snapshot.Score),
		ExtraCentrality:   make(map[string]snapshot.Score),
		ConcentrationRaw:  optional(wn.CentralizationScore),
		ConcentrationNorm: optional(wn.CentralizationScoreNormalized),
	}
	for alg, c := range wn.Communities {
		id := snapshot.CommunityID(c)
		if !id.Assigned() {
			id = snapshot.Unassigned
		}
		n.Communities[alg] = id
	}
	for _, l := range wn.Languages {
		n.Attributes = append(n.Attributes, snapshot.Attribute{Key: l.Language, Weight: l.Weight})
	}

	// Tier labels may exist for metrics whose raw value was not exported.
	names := make(map[string]struct{}, len(wn.Centrality)+len(wn.CentralityTier))
	for name := range wn.Centrality {
		names[name] = struct{}{}
	}
	for name := range wn.CentralityTier {
		names[name] = struct{}{}
	}
	for name := range names {
		s := snapshot.Score{Value: math.NaN()}
		if v, ok := wn.Centrality[name]; ok {
			s.Value = v
		}
		if label, ok := wn.CentralityTier[name]; ok {
			t, err := snapshot.ParseTier(label)
			if err != nil {
				st.UnknownTiers++
			} else {
				s.Tier, s.HasTier = t, true
			}
		}
		if m, ok := snapshot.ParseMetric(name); ok {
			n.Centrality[m] = s
			continue
		}
		n.ExtraCentrality[name] = s
		unknown[name] = struct{}{}
	}
	return n
}

// FromSnapshot converts a snapshot back into the wire format. Nodes are
// written in snapshot order; per-render fields are not part of the format.
func FromSnapshot(s *snapshot.Snapshot) Graph {
	meta := s.Meta()
	g := Graph{
		Meta: Meta{
			MinEdgeWeight:       meta.MinEdgeWeight,
			EdgeCount:           s.EdgeCount(),
			NodeCount:           s.NodeCount(),
			CommunityAlgorithms: slices.Clone(meta.CommunityAlgorithms),
			CentralityMetrics:   slices.Clone(meta.CentralityMetrics),
		},
		Nodes: make([]Node, 0, s.NodeCount()),
		Links: make([]Link, 0, s.EdgeCount()),
	}

	if keys := s.CommunityKeys(); len(keys) > 0 {
		g.Meta.Communities = make(map[string]int, len(keys))
		for _, k := range keys {
			count := 0
			for c := range s.CommunitySizes(k) {
				if c.Assigned() {
					count++
				}
			}
			g.Meta.Communities[k] = count
		}
	}

	for _, n := range s.Nodes() {
		g.Nodes = append(g.Nodes, fromNode(n))
	}
	for _, e := range s.Edges() {
		g.Links = append(g.Links, Link{
			Source:                 e.Key.A,
			Target:                 e.Key.B,
			Weight:                 e.Weight,
			SharedLanguageCount:    e.SharedAttributes,
			SharedTranslationCount: e.SharedVolume,
		})
	}
	return g
}

func fromNode(n *snapshot.Node) Node {
	wn := Node{
		ID:                            n.ID,
		Label:                         n.Label,
		Type:                          NodeTypeAuthor,
		TotalWeight:                   n.TotalWeight,
		LanguageCount:                 len(n.Attributes),
		CentralizationScore:           present(n.ConcentrationRaw),
		CentralizationScoreNormalized: present(n.ConcentrationNorm),
	}
	if len(n.Communities) > 0 {
		wn.Communities = make(map[string]int, len(n.Communities))
		for k, c := range n.Communities {
			wn.Communities[k] = int(c)
		}
	}
	attrs := slices.Clone(n.Attributes)
	slices.SortStableFunc(attrs, func(a, b snapshot.Attribute) int { return cmp.Compare(b.Weight, a.Weight) })
	for _, a := range attrs {
		wn.Languages = append(wn.Languages, Language{Language: a.Key, Weight: a.Weight})
	}

	put := func(name string, s snapshot.Score) {
		if !math.IsNaN(s.Value) {
			if wn.Centrality == nil {
				wn.Centrality = map[string]float64{}
			}
			wn.Centrality[name] = s.Value
		}
		if s.HasTier {
			if wn.CentralityTier == nil {
				wn.CentralityTier = map[string]string{}
			}
			wn.CentralityTier[name] = TierLabel(s.Tier)
		}
	}
	for m, s := range n.Centrality {
		put(m.String(), s)
	}
	for name, s := range n.ExtraCentrality {
		put(name, s)
	}
	return wn
}

// TierLabel returns the ingestion-stage label for t.
func TierLabel(t snapshot.Tier) string {
	switch t {
	case snapshot.TierCore:
		return TierLabelCentral
	case snapshot.TierPeriphery:
		return TierLabelPeriphery
	}
	return TierLabelOuter
}

func optional(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func present(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
