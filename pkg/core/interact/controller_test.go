package interact

import (
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/observability"
)

const key = "louvain"

func node(id string, score float64, comm snapshot.CommunityID, attrs ...string) snapshot.Node {
	n := snapshot.Node{
		ID:                id,
		TotalWeight:       1,
		ConcentrationRaw:  math.NaN(),
		ConcentrationNorm: score,
		Communities:       map[string]snapshot.CommunityID{key: comm},
	}
	for _, a := range attrs {
		n.Attributes = append(n.Attributes, snapshot.Attribute{Key: a, Weight: 1})
	}
	return n
}

// abc is A(9, c0) - B(5, c0) - C(1, c1).
func abc(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	s := snapshot.New(snapshot.Meta{CommunityAlgorithms: []string{key}})
	for _, n := range []snapshot.Node{
		node("A", 9, 0, "de"),
		node("B", 5, 0, "de", "fr"),
		node("C", 1, 1, "fr"),
	} {
		if err := s.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	s.AddEdge(snapshot.Edge{Key: snapshot.NewEdgeKey("A", "B"), Weight: 1})
	s.AddEdge(snapshot.Edge{Key: snapshot.NewEdgeKey("B", "C"), Weight: 1})
	return s
}

func newController(t *testing.T, hit float64) *Controller {
	t.Helper()
	c, err := New(abc(t), nil, Config{
		Canvas:    layout.Canvas{Width: 800, Height: 600},
		Params:    layout.Params{CommunityKey: key, Seed: 7},
		HitRadius: hit,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func screenOf(t *testing.T, c *Controller, id string) r2.Vec {
	t.Helper()
	n, ok := c.Node(id)
	if !ok {
		t.Fatalf("node %s missing", id)
	}
	return c.Transform().ToScreen(n.Pos)
}

func TestNewErrors(t *testing.T) {
	empty := snapshot.New(snapshot.Meta{})
	if _, err := New(empty, nil, Config{Canvas: layout.Canvas{Width: 10, Height: 10}}); !errors.Is(err, errors.ErrCodeEmptyGraph) {
		t.Errorf("empty snapshot: err = %v", err)
	}
	if _, err := New(abc(t), nil, Config{Canvas: layout.Canvas{Width: 0, Height: 10}}); !errors.Is(err, errors.ErrCodeInvalidCanvas) {
		t.Errorf("zero canvas: err = %v", err)
	}
	bad := filter.NewState()
	bad.Weight = filter.Range{Min: 3, Max: 1}
	if _, err := New(abc(t), nil, Config{Canvas: layout.Canvas{Width: 10, Height: 10}, State: bad}); !errors.Is(err, errors.ErrCodeInvalidRange) {
		t.Errorf("inverted range: err = %v", err)
	}
}

func TestNewClonesSnapshot(t *testing.T) {
	snap := abc(t)
	c, err := New(snap, nil, Config{Canvas: layout.Canvas{Width: 800, Height: 600}, Params: layout.Params{CommunityKey: key}})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := snap.Node("A")
	if a.Pos != (r2.Vec{}) {
		t.Errorf("caller's snapshot was laid out: %v", a.Pos)
	}
	got, _ := c.Node("A")
	if got.Tier != snapshot.TierCore {
		t.Errorf("A tier = %v", got.Tier)
	}
}

func TestScenarioThroughController(t *testing.T) {
	c := newController(t, 0.1)

	id, ok := c.Click(screenOf(t, c, "A"), false)
	if !ok || id != "A" {
		t.Fatalf("click on A hit %q, %v", id, ok)
	}
	if got := c.State().Selected; !slices.Equal(got, []string{"A"}) {
		t.Fatalf("Selected = %v", got)
	}
	// A's single-selection neighbourhood is {A, B}.
	if got := c.Result().VisibleNodes; !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("VisibleNodes after selecting A = %v", got)
	}

	// C is hidden now, so ctrl-clicking its position misses.
	if _, ok := c.Click(screenOf(t, c, "C"), true); ok {
		t.Fatal("hidden node C should not be hit")
	}
	c.ToggleSelection("C")
	if got := c.State().SelectionMode(); got != filter.SelectionMulti {
		t.Fatalf("mode = %v", got)
	}
	if got := c.Result().VisibleNodes; !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("multi selection should pull in B, got %v", got)
	}

	if err := c.Apply(filter.SetSharedOnly(true)); err != nil {
		t.Fatal(err)
	}
	res := c.Result()
	if !slices.Equal(res.VisibleNodes, []string{"A", "C"}) || len(res.VisibleEdges) != 0 {
		t.Errorf("shared-only: nodes %v edges %v", res.VisibleNodes, res.VisibleEdges)
	}
	if _, ok := c.HitTest(screenOf(t, c, "B")); ok {
		t.Error("B is hidden and must not be hit")
	}
	if id, ok := c.HitTest(screenOf(t, c, "A")); !ok || id != "A" {
		t.Errorf("HitTest(A) = %q, %v", id, ok)
	}
	b, _ := c.Node("B")
	if b.ClusterVisible || !b.Visible {
		t.Errorf("B flags: Visible=%v ClusterVisible=%v", b.Visible, b.ClusterVisible)
	}
}

func TestClickEmptySpaceClears(t *testing.T) {
	c := newController(t, 0.1)
	c.SetSelection([]string{"A", "B"})
	far := r2.Vec{X: -1000, Y: -1000}

	if _, ok := c.Click(far, true); ok {
		t.Fatal("unexpected hit")
	}
	if len(c.State().Selected) != 2 {
		t.Error("modified click on empty space must keep the selection")
	}
	c.Click(far, false)
	if len(c.State().Selected) != 0 {
		t.Errorf("plain click on empty space should clear, got %v", c.State().Selected)
	}
}

func TestModifiedClickToggles(t *testing.T) {
	c := newController(t, 0.1)
	a := screenOf(t, c, "A")
	c.Click(a, true)
	c.Click(screenOf(t, c, "B"), true)
	if got := c.State().Selected; !slices.Equal(got, []string{"A", "B"}) {
		t.Fatalf("Selected = %v", got)
	}
	c.Click(a, true)
	if got := c.State().Selected; !slices.Equal(got, []string{"B"}) {
		t.Errorf("second ctrl-click should remove A, got %v", got)
	}
}

func TestApplyEvictsHiddenSelection(t *testing.T) {
	c := newController(t, 0.1)
	c.SetSelection([]string{"A", "B"})
	if err := c.Apply(filter.SetTiers(snapshot.TierCore)); err != nil {
		t.Fatal(err)
	}
	if got := c.State().Selected; !slices.Equal(got, []string{"A"}) {
		t.Errorf("B fails the tier filter and should be evicted, got %v", got)
	}
}

func TestApplyRollsBackInvalidState(t *testing.T) {
	c := newController(t, 0.1)
	before := c.State()
	err := c.Apply(filter.SetMinWeight(2), filter.SetWeightRange(5, 1))
	if !errors.Is(err, errors.ErrCodeInvalidRange) {
		t.Fatalf("err = %v", err)
	}
	after := c.State()
	if after.Weight != before.Weight {
		t.Errorf("state not rolled back: %+v", after.Weight)
	}
}

func TestApplyDelta(t *testing.T) {
	c := newController(t, 0.1)
	lo := filter.Range{Min: 2, Max: math.Inf(1)}
	if err := c.ApplyDelta(&filter.Delta{Weight: &lo}); err != nil {
		t.Fatal(err)
	}
	res := c.Result()
	if len(res.VisibleEdges) != 0 || len(res.VisibleNodes) != 3 {
		t.Errorf("isolates must stay: nodes %v edges %v", res.VisibleNodes, res.VisibleEdges)
	}
	if err := c.ApplyDelta(nil); err != nil {
		t.Errorf("nil delta: %v", err)
	}
	c.ClearAll()
	if len(c.Result().VisibleEdges) != 2 {
		t.Errorf("ClearAll should restore edges, got %v", c.Result().VisibleEdges)
	}
}

func TestHitRadiusShrinksWithZoom(t *testing.T) {
	c := newController(t, 6)
	a, _ := c.Node("A")

	off := r2.Add(a.Pos, r2.Vec{X: 5})
	if id, ok := c.HitTest(off); !ok || id != "A" {
		t.Fatalf("5px away at scale 1 should hit A, got %q %v", id, ok)
	}
	c.Zoom(4, r2.Vec{})
	screen := c.Transform().ToScreen(a.Pos)
	if id, ok := c.HitTest(screen); !ok || id != "A" {
		t.Errorf("exact position after zoom: %q %v", id, ok)
	}
	if _, ok := c.HitTest(r2.Add(screen, r2.Vec{X: 20})); ok {
		t.Error("20 screen px away should miss")
	}
}

func TestHoverDoesNotRefilter(t *testing.T) {
	c := newController(t, 0.1)
	before := c.Result()
	id, changed := c.Hover(screenOf(t, c, "B"))
	if id != "B" || !changed {
		t.Fatalf("Hover = %q, %v", id, changed)
	}
	if _, changed := c.Hover(screenOf(t, c, "B")); changed {
		t.Error("hovering the same node twice should not report a change")
	}
	if c.Result() != before {
		t.Error("hover must not recompute visibility")
	}
	if f := c.Frame(); f.Hover != "B" {
		t.Errorf("Frame.Hover = %q", f.Hover)
	}
}

func TestResizeRelayouts(t *testing.T) {
	c := newController(t, 0.1)
	before := c.Layout()
	if err := c.Resize(400, 400); err != nil {
		t.Fatal(err)
	}
	after := c.Layout()
	if after.Radius >= before.Radius {
		t.Errorf("radius %v should shrink from %v", after.Radius, before.Radius)
	}
	if err := c.Resize(-1, 400); !errors.Is(err, errors.ErrCodeInvalidCanvas) {
		t.Errorf("err = %v", err)
	}
	if c.Layout().Radius != after.Radius {
		t.Error("failed resize changed the layout")
	}
}

func TestSetThresholds(t *testing.T) {
	c := newController(t, 0.1)
	if err := c.SetThresholds(&layout.Thresholds{Periphery: 0, Core: 4}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"A", "B"} {
		if n, _ := c.Node(id); n.Tier != snapshot.TierCore {
			t.Errorf("%s tier = %v", id, n.Tier)
		}
	}
	if err := c.SetThresholds(&layout.Thresholds{Periphery: 5, Core: 1}); err == nil {
		t.Error("inverted thresholds should fail")
	}
	if err := c.SetThresholds(nil); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Node("B"); n.Tier != snapshot.TierPeriphery {
		t.Errorf("sampled thresholds: B tier = %v", n.Tier)
	}
}

func TestLoadEvictsMissingSelection(t *testing.T) {
	c := newController(t, 0.1)
	c.SetSelection([]string{"C"})

	next := snapshot.New(snapshot.Meta{})
	if err := next.AddNode(node("A", 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := c.Load(next); err != nil {
		t.Fatal(err)
	}
	if len(c.State().Selected) != 0 {
		t.Errorf("Selected = %v", c.State().Selected)
	}
	if err := c.Load(snapshot.New(snapshot.Meta{})); !errors.Is(err, errors.ErrCodeEmptyGraph) {
		t.Errorf("empty load: err = %v", err)
	}
	if _, ok := c.Node("A"); !ok {
		t.Error("failed load replaced the snapshot")
	}
}

func TestFrame(t *testing.T) {
	c := newController(t, 0.1)
	c.SetSelection([]string{"A"})
	f := c.Frame()

	if f.TotalNodes != 3 || f.TotalEdges != 2 {
		t.Errorf("totals = %d/%d", f.TotalNodes, f.TotalEdges)
	}
	if len(f.Nodes) != 2 || len(f.Edges) != 1 {
		t.Errorf("frame has %d nodes, %d edges", len(f.Nodes), len(f.Edges))
	}
	a, ok := f.Node("A")
	if !ok || !a.Selected || !a.Highlighted || a.Tier != snapshot.TierCore {
		t.Errorf("A = %+v", a)
	}
	if f.Selection != filter.SelectionSingle.String() {
		t.Errorf("Selection = %q", f.Selection)
	}
	if !slices.Equal(f.Communities, []snapshot.CommunityID{0, 1}) {
		t.Errorf("Communities = %v", f.Communities)
	}
	if len(f.Bands) != snapshot.NumTiers {
		t.Errorf("Bands = %v", f.Bands)
	}

	f.Filters.Selected = nil
	if len(c.State().Selected) != 1 {
		t.Error("frame shares filter state with the controller")
	}
}

func TestDispatch(t *testing.T) {
	c := newController(t, 0.1)
	a := screenOf(t, c, "A")

	tests := []struct {
		name    string
		event   Event
		changed bool
		check   func(t *testing.T)
	}{
		{"click", Event{Kind: EventClick, X: a.X, Y: a.Y}, true, func(t *testing.T) {
			if !c.State().IsSelected("A") {
				t.Error("A not selected")
			}
		}},
		{"click same again", Event{Kind: EventClick, X: a.X, Y: a.Y}, false, nil},
		{"move", Event{Kind: EventMove, X: a.X, Y: a.Y}, true, nil},
		{"leave", Event{Kind: EventLeave}, true, nil},
		{"escape", Event{Kind: EventKey, Key: KeyEscape}, true, func(t *testing.T) {
			if len(c.State().Selected) != 0 {
				t.Error("escape should clear the selection")
			}
		}},
		{"drag", Event{Kind: EventDrag, DX: 10, DY: -5}, true, func(t *testing.T) {
			if tr := c.Transform(); tr.TX != 10 || tr.TY != -5 {
				t.Errorf("transform = %+v", tr)
			}
		}},
		{"wheel", Event{Kind: EventWheel, Zoom: 2}, true, func(t *testing.T) {
			if c.Transform().Scale != 2 {
				t.Errorf("scale = %v", c.Transform().Scale)
			}
		}},
		{"wheel noop", Event{Kind: EventWheel, Zoom: 1}, false, nil},
		{"reset", Event{Kind: EventKey, Key: KeyReset}, true, func(t *testing.T) {
			if c.Transform().Scale != 1 || c.Transform().TX != 0 {
				t.Errorf("transform = %+v", c.Transform())
			}
		}},
		{"unknown key", Event{Kind: EventKey, Key: "q"}, false, nil},
		{"resize", Event{Kind: EventResize, Width: 500, Height: 500}, true, func(t *testing.T) {
			if c.Layout().Center != (r2.Vec{X: 250, Y: 250}) {
				t.Errorf("center = %v", c.Layout().Center)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := c.Dispatch(tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
			if tt.check != nil {
				tt.check(t)
			}
		})
	}

	if _, err := c.Dispatch(Event{Kind: EventKind(99)}); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("unknown kind: err = %v", err)
	}

	center := c.Layout().Center
	changed, err := c.Dispatch(Event{Kind: EventResize, Width: 0, Height: 500})
	if !errors.Is(err, errors.ErrCodeInvalidCanvas) || changed {
		t.Errorf("rejected resize: changed = %v, err = %v", changed, err)
	}
	if c.Layout().Center != center {
		t.Errorf("rejected resize moved the center to %v", c.Layout().Center)
	}
}

func TestDispatchClickChanged(t *testing.T) {
	c := newController(t, 0.1)
	a := screenOf(t, c, "A")
	far := r2.Vec{X: -1000, Y: -1000}

	tests := []struct {
		name    string
		event   Event
		changed bool
		want    []string
	}{
		{"empty space with nothing selected", Event{Kind: EventClick, X: far.X, Y: far.Y}, false, nil},
		{"select", Event{Kind: EventClick, X: a.X, Y: a.Y}, true, []string{"A"}},
		{"modified empty space", Event{Kind: EventClick, X: far.X, Y: far.Y, Ctrl: true}, false, []string{"A"}},
		{"toggle off", Event{Kind: EventClick, X: a.X, Y: a.Y, Meta: true}, true, nil},
		{"reselect", Event{Kind: EventClick, X: a.X, Y: a.Y}, true, []string{"A"}},
		{"plain empty space clears", Event{Kind: EventClick, X: far.X, Y: far.Y}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := c.Dispatch(tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
			if got := c.State().Selected; !slices.Equal(got, tt.want) {
				t.Errorf("Selected = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventKindText(t *testing.T) {
	var k EventKind
	if err := k.UnmarshalText([]byte("Wheel")); err != nil || k != EventWheel {
		t.Errorf("UnmarshalText = %v, %v", k, err)
	}
	if err := k.UnmarshalText([]byte("pinch")); err == nil {
		t.Error("expected error")
	}
	if got := EventKind(42).String(); got != "event(42)" {
		t.Errorf("String = %q", got)
	}
}

type recordingHooks struct {
	observability.NoopViewHooks
	mu      sync.Mutex
	layouts int
	filters int
	hits    []bool
}

func (r *recordingHooks) OnLayout(int, time.Duration, error) {
	r.mu.Lock()
	r.layouts++
	r.mu.Unlock()
}

func (r *recordingHooks) OnFilter(int, int, int, time.Duration) {
	r.mu.Lock()
	r.filters++
	r.mu.Unlock()
}

func (r *recordingHooks) OnHitTest(hit bool) {
	r.mu.Lock()
	r.hits = append(r.hits, hit)
	r.mu.Unlock()
}

func TestHooks(t *testing.T) {
	rec := &recordingHooks{}
	observability.SetViewHooks(rec)
	t.Cleanup(observability.Reset)

	c := newController(t, 0.1)
	c.ToggleSelection("A")
	c.HitTest(r2.Vec{X: -50, Y: -50})

	if rec.layouts != 1 || rec.filters != 2 {
		t.Errorf("layouts=%d filters=%d", rec.layouts, rec.filters)
	}
	if !slices.Equal(rec.hits, []bool{false}) {
		t.Errorf("hits = %v", rec.hits)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := newController(t, 6)
	a := screenOf(t, c, "A")
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 20 {
				switch (i + j) % 4 {
				case 0:
					c.Click(a, true)
				case 1:
					c.Hover(a)
				case 2:
					_ = c.Apply(filter.SetMinWeight(float64(j % 3)))
				default:
					_ = c.Frame()
				}
			}
		}()
	}
	wg.Wait()
	if f := c.Frame(); len(f.Nodes) == 0 {
		t.Error("empty frame after concurrent updates")
	}
}
