package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
)

const key = "louvain"

type nodeSpec struct {
	id    string
	score float64
	comm  snapshot.CommunityID
	tier  snapshot.Tier
	attrs []string
	total float64
}

func build(t *testing.T, nodes []nodeSpec, edges [][3]any) *snapshot.Snapshot {
	t.Helper()
	s := snapshot.New(snapshot.Meta{CommunityAlgorithms: []string{key}})
	for _, n := range nodes {
		node := snapshot.Node{
			ID:                n.id,
			TotalWeight:       n.total,
			ConcentrationRaw:  math.NaN(),
			ConcentrationNorm: n.score,
			Communities:       map[string]snapshot.CommunityID{key: n.comm},
		}
		for _, a := range n.attrs {
			node.Attributes = append(node.Attributes, snapshot.Attribute{Key: a, Weight: 1})
		}
		if err := s.AddNode(node); err != nil {
			t.Fatal(err)
		}
		p, _ := s.Node(n.id)
		p.Tier = n.tier
	}
	for _, e := range edges {
		s.AddEdge(snapshot.Edge{Key: snapshot.NewEdgeKey(e[0].(string), e[1].(string)), Weight: e[2].(float64)})
	}
	return s
}

// abc is the three-author scenario: A(9, c0) - B(5, c0) - C(1, c1).
func abc(t *testing.T) *snapshot.Snapshot {
	return build(t, []nodeSpec{
		{id: "A", score: 9, comm: 0, tier: snapshot.TierCore, attrs: []string{"de"}, total: 1},
		{id: "B", score: 5, comm: 0, tier: snapshot.TierPeriphery, attrs: []string{"de", "fr"}, total: 2},
		{id: "C", score: 1, comm: 1, tier: snapshot.TierOuter, attrs: []string{"fr"}, total: 1},
	}, [][3]any{{"A", "B", 1.0}, {"B", "C", 1.0}})
}

func keys(ks ...string) []snapshot.EdgeKey {
	var out []snapshot.EdgeKey
	for i := 0; i+1 < len(ks); i += 2 {
		out = append(out, snapshot.NewEdgeKey(ks[i], ks[i+1]))
	}
	if out == nil {
		out = []snapshot.EdgeKey{}
	}
	return out
}

func TestScenarioNoFilters(t *testing.T) {
	res := Evaluate(NewState(), abc(t))
	if !slices.Equal(res.VisibleNodes, []string{"A", "B", "C"}) {
		t.Errorf("VisibleNodes = %v", res.VisibleNodes)
	}
	if !reflect.DeepEqual(res.VisibleEdges, keys("A", "B", "B", "C")) {
		t.Errorf("VisibleEdges = %v", res.VisibleEdges)
	}
	if len(res.Highlighted) != 0 {
		t.Errorf("Highlighted = %v", res.Highlighted)
	}
}

func TestScenarioMinWeightKeepsIsolates(t *testing.T) {
	snap := abc(t)
	st := NewState()
	st.Apply(SetMinWeight(2))
	res := Evaluate(st, snap)
	if len(res.VisibleEdges) != 0 {
		t.Errorf("edges should all be hidden, got %v", res.VisibleEdges)
	}
	if !slices.Equal(res.VisibleNodes, []string{"A", "B", "C"}) {
		t.Errorf("isolates must stay visible, got %v", res.VisibleNodes)
	}
}

func TestScenarioMultiSelectSharedOnly(t *testing.T) {
	snap := abc(t)
	st := NewState()
	st.Apply(Select("A"), Toggle("C"))
	if st.SelectionMode() != SelectionMulti || len(st.Selected) != 2 {
		t.Fatalf("selection = %v (%v)", st.Selected, st.SelectionMode())
	}

	res := Evaluate(st, snap)
	if !slices.Equal(res.VisibleNodes, []string{"A", "B", "C"}) {
		t.Errorf("shared-only off should pull in B, got %v", res.VisibleNodes)
	}
	if len(res.VisibleEdges) != 2 {
		t.Errorf("shared-only off should show both edges, got %v", res.VisibleEdges)
	}

	st.Apply(SetSharedOnly(true))
	res = Evaluate(st, snap)
	if len(res.VisibleEdges) != 0 {
		t.Errorf("shared-only should hide A-B and B-C, got %v", res.VisibleEdges)
	}
	if !res.IsVisible("A") || !res.IsVisible("C") {
		t.Errorf("selected nodes must stay visible, got %v", res.VisibleNodes)
	}
	if res.IsVisible("B") {
		t.Error("B is not selected and must be hidden under shared-only")
	}
	if !slices.Equal(res.Highlighted, []string{"A", "C"}) {
		t.Errorf("Highlighted = %v", res.Highlighted)
	}
}

func TestScenarioSingleSelectSharedOnly(t *testing.T) {
	snap := abc(t)
	st := NewState()
	st.Apply(Select("B"), SetSharedOnly(true))
	if st.SelectionMode() != SelectionSingle {
		t.Fatalf("mode = %v", st.SelectionMode())
	}
	res := Evaluate(st, snap)
	if !slices.Equal(res.VisibleNodes, []string{"A", "B", "C"}) {
		t.Errorf("VisibleNodes = %v", res.VisibleNodes)
	}
	if !reflect.DeepEqual(res.VisibleEdges, keys("A", "B", "B", "C")) {
		t.Errorf("a single selection keeps its neighbour edges, got %v", res.VisibleEdges)
	}
}

func TestHiddenFocusRestrictsNothing(t *testing.T) {
	snap := abc(t)
	st := NewState()
	st.Apply(SetFocus("A"), SetTiers(snapshot.TierPeriphery, snapshot.TierOuter))

	res := Evaluate(st, snap)
	if !slices.Equal(res.VisibleNodes, []string{"B", "C"}) {
		t.Errorf("VisibleNodes = %v, want [B C]", res.VisibleNodes)
	}
	if !reflect.DeepEqual(res.VisibleEdges, keys("B", "C")) {
		t.Errorf("VisibleEdges = %v", res.VisibleEdges)
	}
	if st.Focus != "A" {
		t.Errorf("Evaluate must not mutate state, Focus = %q", st.Focus)
	}
}

func TestSingleSelectionNeighbourhood(t *testing.T) {
	snap := build(t, []nodeSpec{
		{id: "x"}, {id: "y1"}, {id: "y2"}, {id: "y3"}, {id: "far"},
	}, [][3]any{
		{"x", "y1", 1.0}, {"x", "y2", 5.0}, {"y3", "x", 3.0}, {"y1", "far", 9.0},
	})
	tests := []struct {
		name string
		lo   float64
		want []string
	}{
		{"all edges", 0, []string{"x", "y1", "y2", "y3"}},
		{"weight >= 3", 3, []string{"x", "y2", "y3"}},
		{"weight >= 10", 10, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState()
			st.Apply(SetMinWeight(tt.lo), Select("x"))
			ev := NewEvaluator(st, snap)
			if got := ev.Neighbourhood(); !slices.Equal(got, tt.want) {
				t.Errorf("Neighbourhood = %v, want %v", got, tt.want)
			}
			res := Evaluate(st, snap)
			want := slices.Clone(tt.want)
			slices.Sort(want)
			got := slices.Clone(res.VisibleNodes)
			slices.Sort(got)
			if !slices.Equal(got, want) {
				t.Errorf("VisibleNodes = %v, want %v", got, want)
			}
		})
	}
}

func TestPrecedence(t *testing.T) {
	snap := build(t, []nodeSpec{
		{id: "core", score: 0.9, comm: 0, tier: snapshot.TierCore, attrs: []string{"de"}, total: 10},
		{id: "per", score: 0.5, comm: 1, tier: snapshot.TierPeriphery, attrs: []string{"fr"}, total: 5},
		{id: "out", score: 0.1, comm: snapshot.Unassigned, tier: snapshot.TierOuter, total: 1},
	}, [][3]any{{"core", "per", 2.0}})

	tests := []struct {
		name string
		muts []Mutation
		id   string
		want Reason
	}{
		{"absent", nil, "ghost", ReasonAbsent},
		{"visible", nil, "out", ReasonVisible},
		{"allowlist top-1", []Mutation{SetTopN(1)}, "per", ReasonAllowlist},
		{"allowlist explicit", []Mutation{SetAllowlist("per")}, "per", ReasonVisible},
		{"allowlist before tier", []Mutation{SetTopN(1), SetTiers(snapshot.TierCore)}, "out", ReasonAllowlist},
		{"tier", []Mutation{SetTiers(snapshot.TierCore)}, "per", ReasonTier},
		{"attribute", []Mutation{SetAttributes("de")}, "out", ReasonAttribute},
		{"score", []Mutation{SetScoreRange(0.2, 1)}, "out", ReasonScore},
		{"score before selection", []Mutation{SetScoreRange(0.6, 1), Select("core")}, "per", ReasonScore},
		{"selection", []Mutation{Select("core")}, "out", ReasonSelection},
		{"selection skips community", []Mutation{SetCommunities(key, 0), Select("core")}, "per", ReasonVisible},
		{"community", []Mutation{SetCommunities(key, 0)}, "per", ReasonCommunity},
		{"community keeps noise on request", []Mutation{SetCommunities(key, snapshot.Unassigned)}, "out", ReasonVisible},
		{"focus", []Mutation{SetFocus("core")}, "out", ReasonFocus},
		{"focus neighbour", []Mutation{SetFocus("core")}, "per", ReasonVisible},
		{"focus neighbour over weight", []Mutation{SetFocus("core"), SetMinWeight(3)}, "per", ReasonFocus},
		{"community before focus", []Mutation{SetCommunities(key, 0), SetFocus("core")}, "per", ReasonCommunity},
		{"focus hidden by tier", []Mutation{SetFocus("core"), SetTiers(snapshot.TierOuter)}, "out", ReasonVisible},
		{"focus hidden by score", []Mutation{SetFocus("per"), SetScoreRange(0.8, 1)}, "core", ReasonVisible},
		{"focus missing", []Mutation{SetFocus("ghost")}, "out", ReasonVisible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState()
			st.Apply(tt.muts...)
			if got := NewEvaluator(st, snap).Check(tt.id); got != tt.want {
				t.Errorf("Check(%s) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestCommunityEdgesNeedSharedAttribute(t *testing.T) {
	snap := build(t, []nodeSpec{
		{id: "a", comm: 0, attrs: []string{"de"}},
		{id: "b", comm: 0, attrs: []string{"de"}},
		{id: "c", comm: 0, attrs: []string{"fr"}},
		{id: "d", comm: 1, attrs: []string{"de"}},
	}, [][3]any{{"a", "b", 1.0}, {"a", "c", 1.0}, {"a", "d", 1.0}})

	st := NewState()
	st.Apply(SetCommunities(key, 0, 1))
	res := Evaluate(st, snap)
	if !reflect.DeepEqual(res.VisibleEdges, keys("a", "b")) {
		t.Errorf("VisibleEdges = %v, want only a-b", res.VisibleEdges)
	}

	// A selection overrides the community edge rule.
	st.Apply(Select("a"))
	res = Evaluate(st, snap)
	if len(res.VisibleEdges) != 3 {
		t.Errorf("selection override: VisibleEdges = %v", res.VisibleEdges)
	}
}

func TestDeterministic(t *testing.T) {
	snap := randomSnapshot(t, 200, 600, 1)
	st := NewState()
	st.Apply(SetMinWeight(3), SetTiers(snapshot.TierCore, snapshot.TierPeriphery), SetQuery("n1"))
	a, b := Evaluate(st, snap), Evaluate(st, snap)
	if !reflect.DeepEqual(a.VisibleNodes, b.VisibleNodes) ||
		!reflect.DeepEqual(a.VisibleEdges, b.VisibleEdges) ||
		!reflect.DeepEqual(a.Highlighted, b.Highlighted) {
		t.Error("Evaluate is not deterministic")
	}
}

func TestClearAllRestoresFreshState(t *testing.T) {
	snap := randomSnapshot(t, 150, 400, 2)
	fresh := Evaluate(NewState(), snap)

	rng := rand.New(rand.NewPCG(5, 6))
	all := []Mutation{
		SetMinWeight(4), SetScoreRange(0.2, 0.7), SetTiers(snapshot.TierCore),
		SetCommunities(key, 1, 2), SetAttributes("de"), SetQuery("n"),
		SetFocus("n010"), SetTopN(20), SetAllowlist("n001"), Select("n002"),
		Toggle("n003"), SetSharedOnly(true),
	}
	for round := 0; round < 20; round++ {
		st := NewState()
		for i := 0; i < 6; i++ {
			st.Apply(all[rng.IntN(len(all))])
			st.Evict(snap)
		}
		st.Apply(ClearAll())
		got := Evaluate(st, snap)
		if !reflect.DeepEqual(got.VisibleNodes, fresh.VisibleNodes) || !reflect.DeepEqual(got.VisibleEdges, fresh.VisibleEdges) {
			t.Fatalf("round %d: ClearAll did not restore the fresh visible set", round)
		}
	}
}

func TestEvict(t *testing.T) {
	snap := abc(t)
	st := NewState()
	st.Apply(SetSelection("A", "C", "ghost"))
	st.Apply(SetTiers(snapshot.TierCore, snapshot.TierPeriphery))
	evicted := st.Evict(snap)
	if !slices.Equal(evicted, []string{"C", "ghost"}) {
		t.Errorf("evicted = %v", evicted)
	}
	if !slices.Equal(st.Selected, []string{"A"}) || st.SelectionMode() != SelectionSingle {
		t.Errorf("Selected = %v", st.Selected)
	}
	st.Apply(SetTiers(snapshot.TierOuter))
	st.Evict(snap)
	if st.Selected != nil || st.SelectionMode() != SelectionEmpty {
		t.Errorf("Selected = %v, want empty", st.Selected)
	}
}

func TestEvictFocus(t *testing.T) {
	tests := []struct {
		name string
		muts []Mutation
		want string
	}{
		{"visible focus kept", []Mutation{SetFocus("A")}, "A"},
		{"tier clears focus", []Mutation{SetFocus("A"), SetTiers(snapshot.TierPeriphery, snapshot.TierOuter)}, ""},
		{"attribute clears focus", []Mutation{SetFocus("C"), SetAttributes("de")}, ""},
		{"allowlist clears focus", []Mutation{SetFocus("C"), SetTopN(1)}, ""},
		{"missing focus cleared", []Mutation{SetFocus("ghost")}, ""},
		{"selection untouched", []Mutation{SetFocus("A"), Select("B"), SetTiers(snapshot.TierPeriphery)}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := abc(t)
			st := NewState()
			st.Apply(tt.muts...)
			st.Evict(snap)
			if st.Focus != tt.want {
				t.Errorf("Focus = %q, want %q", st.Focus, tt.want)
			}
		})
	}

	snap := abc(t)
	st := NewState()
	st.Apply(SetFocus("A"), Select("B"), SetTiers(snapshot.TierPeriphery))
	if evicted := st.Evict(snap); len(evicted) != 0 || !slices.Equal(st.Selected, []string{"B"}) {
		t.Errorf("evicted = %v, Selected = %v", evicted, st.Selected)
	}
}

func TestResultApply(t *testing.T) {
	snap := abc(t)
	st := NewState()
	st.Apply(SetTiers(snapshot.TierCore, snapshot.TierPeriphery), Select("A"), SetMinWeight(2))
	Evaluate(st, snap).Apply(snap)

	want := map[string][2]bool{ // Visible, ClusterVisible
		"A": {true, true},
		"B": {true, false},
		"C": {false, false},
	}
	for id, w := range want {
		n, _ := snap.Node(id)
		if n.Visible != w[0] || n.ClusterVisible != w[1] {
			t.Errorf("%s: Visible=%v ClusterVisible=%v, want %v", id, n.Visible, n.ClusterVisible, w)
		}
	}
}

func TestQueryHighlight(t *testing.T) {
	snap := abc(t)
	a, _ := snap.Node("A")
	a.Label = "Ana Gomes"
	st := NewState()
	st.Apply(SetQuery("  GOM "), SetFocus("B"))
	res := Evaluate(st, snap)
	if !slices.Equal(res.Highlighted, []string{"A", "B"}) {
		t.Errorf("Highlighted = %v", res.Highlighted)
	}
	if !slices.Equal(res.VisibleNodes, []string{"A", "B", "C"}) {
		t.Errorf("the query must not hide nodes: %v", res.VisibleNodes)
	}
}

func TestSelectionTransitions(t *testing.T) {
	st := NewState()
	steps := []struct {
		m    Mutation
		want []string
		mode SelectionMode
	}{
		{Select("a"), []string{"a"}, SelectionSingle},
		{Select("b"), []string{"b"}, SelectionSingle},
		{Toggle("c"), []string{"b", "c"}, SelectionMulti},
		{Toggle("b"), []string{"c"}, SelectionSingle},
		{Toggle("c"), []string{}, SelectionEmpty},
		{SetSelection("x", "x", "", "y"), []string{"x", "y"}, SelectionMulti},
		{ClearSelection(), nil, SelectionEmpty},
	}
	for i, s := range steps {
		st.Apply(s.m)
		if len(st.Selected) != len(s.want) || (len(s.want) > 0 && !slices.Equal(st.Selected, s.want)) {
			t.Fatalf("step %d: Selected = %v, want %v", i, st.Selected, s.want)
		}
		if st.SelectionMode() != s.mode {
			t.Fatalf("step %d: mode = %v, want %v", i, st.SelectionMode(), s.mode)
		}
	}
}

func TestDelta(t *testing.T) {
	var d Delta
	body := `{"weight":{"min":2,"max":null},"tiers":["core","central"],"communities":[3,1],"communityKey":"leiden","sharedOnly":true,"attributes":[]}`
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatal(err)
	}
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	st := NewState()
	st.Apply(SetAttributes("de"), SetQuery("keep"))
	st.Apply(d.Mutations()...)

	if st.Weight.Min != 2 || !math.IsInf(st.Weight.Max, 1) {
		t.Errorf("Weight = %+v", st.Weight)
	}
	if !slices.Equal(st.Tiers, []snapshot.Tier{snapshot.TierCore}) {
		t.Errorf("Tiers = %v", st.Tiers)
	}
	if st.CommunityKey != "leiden" || !slices.Equal(st.Communities, []snapshot.CommunityID{1, 3}) {
		t.Errorf("communities = %s %v", st.CommunityKey, st.Communities)
	}
	if st.Attributes != nil {
		t.Errorf("empty attributes list should clear, got %v", st.Attributes)
	}
	if st.Query != "keep" || !st.SharedOnly {
		t.Errorf("Query=%q SharedOnly=%v", st.Query, st.SharedOnly)
	}

	empty := Delta{}
	if !empty.IsEmpty() {
		t.Error("zero delta should be empty")
	}
}

func TestDeltaValidate(t *testing.T) {
	n := -1
	inverted := Range{Min: 5, Max: 1}
	tiers := []snapshot.Tier{snapshot.Tier(9)}
	tests := []struct {
		name string
		d    Delta
		code errors.Code
	}{
		{"inverted", Delta{Score: &inverted}, errors.ErrCodeInvalidRange},
		{"bad tier", Delta{Tiers: &tiers}, errors.ErrCodeInvalidTier},
		{"negative top-n", Delta{TopN: &n}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.d.Validate(); !errors.Is(err, tt.code) {
				t.Errorf("Validate = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestRangeJSON(t *testing.T) {
	b, err := json.Marshal(Unbounded)
	if err != nil || string(b) != `{"min":null,"max":null}` {
		t.Errorf("Marshal(Unbounded) = %s, %v", b, err)
	}
	var r Range
	if err := json.Unmarshal([]byte(`{"max":4}`), &r); err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(r.Min, -1) || r.Max != 4 {
		t.Errorf("Range = %+v", r)
	}
	if !Unbounded.Contains(math.NaN()) || r.Contains(math.NaN()) {
		t.Error("NaN containment mismatch")
	}
}

func TestRangeJSONBounds(t *testing.T) {
	tests := []struct {
		name    string
		r       Range
		want    string
		wantErr bool
	}{
		{"finite", Range{Min: 1, Max: 2}, `{"min":1,"max":2}`, false},
		{"open below", Range{Min: math.Inf(-1), Max: 2}, `{"min":null,"max":2}`, false},
		{"open above", Range{Min: 1, Max: math.Inf(1)}, `{"min":1,"max":null}`, false},
		{"empty above", Range{Min: math.Inf(1), Max: math.Inf(1)}, "", true},
		{"empty below", Range{Min: math.Inf(-1), Max: math.Inf(-1)}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Marshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(b) != tt.want {
				t.Errorf("Marshal = %s, want %s", b, tt.want)
			}
			if err := tt.r.Validate("weight"); (err != nil) != tt.wantErr {
				t.Errorf("Validate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateClone(t *testing.T) {
	st := NewState()
	st.Apply(SetSelection("a"), SetTiers(snapshot.TierCore))
	c := st.Clone()
	c.Apply(Toggle("b"), SetTiers(snapshot.TierOuter))
	if len(st.Selected) != 1 || st.Tiers[0] != snapshot.TierCore {
		t.Error("clone shares storage with the original")
	}
}

func randomSnapshot(t *testing.T, n, m int, seed uint64) *snapshot.Snapshot {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	langs := []string{"de", "fr", "es", "it"}
	var nodes []nodeSpec
	for i := 0; i < n; i++ {
		nodes = append(nodes, nodeSpec{
			id:    fmt.Sprintf("n%03d", i),
			score: rng.Float64(),
			comm:  snapshot.CommunityID(rng.IntN(5) - 1),
			tier:  snapshot.Tiers[rng.IntN(snapshot.NumTiers)],
			attrs: []string{langs[rng.IntN(len(langs))]},
			total: float64(rng.IntN(100)),
		})
	}
	var edges [][3]any
	for i := 0; i < m; i++ {
		edges = append(edges, [3]any{nodes[rng.IntN(n)].id, nodes[rng.IntN(n)].id, float64(1 + rng.IntN(6))})
	}
	return build(t, nodes, edges)
}
