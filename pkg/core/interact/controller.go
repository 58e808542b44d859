package interact

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/render"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/core/spatial"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/observability"
)

// DefaultHitRadius is the pointer hit radius in screen pixels.
const DefaultHitRadius = 6.0

// Config configures a Controller.
type Config struct {
	Canvas layout.Canvas
	Params layout.Params

	// State is the initial filter state; nil starts with no filters.
	State *filter.State

	// HitRadius is the pointer tolerance in screen pixels.
	HitRadius float64

	Logger *log.Logger
}

// Controller is one interactive view of a snapshot.
type Controller struct {
	mu sync.Mutex

	engine *layout.Engine
	snap   *snapshot.Snapshot
	canvas layout.Canvas
	params layout.Params

	state  *filter.State
	result *filter.Result
	layout *layout.Result
	index  *spatial.Quadtree

	transform render.Transform
	hover     string
	hitRadius float64

	logger *log.Logger
}

// New lays out a private copy of snap and evaluates the initial filters.
// It fails only for an empty snapshot or an invalid canvas.
func New(snap *snapshot.Snapshot, engine *layout.Engine, cfg Config) (*Controller, error) {
	if engine == nil {
		engine = layout.NewEngine(layout.Options{})
	}
	if cfg.HitRadius <= 0 {
		cfg.HitRadius = DefaultHitRadius
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	state := filter.NewState()
	if cfg.State != nil {
		if err := cfg.State.Validate(); err != nil {
			return nil, err
		}
		state = cfg.State.Clone()
	}
	if cfg.Params.Thresholds != nil {
		if err := cfg.Params.Thresholds.Validate(); err != nil {
			return nil, err
		}
		th := *cfg.Params.Thresholds
		cfg.Params.Thresholds = &th
	}
	c := &Controller{
		engine:    engine,
		canvas:    cfg.Canvas,
		params:    cfg.Params,
		state:     state,
		transform: render.Identity(),
		hitRadius: cfg.HitRadius,
		logger:    cfg.Logger,
	}
	if err := c.load(snap); err != nil {
		return nil, err
	}
	return c, nil
}

// =============================================================================
// Recompute
// =============================================================================

func (c *Controller) load(snap *snapshot.Snapshot) error {
	if snap == nil || snap.NodeCount() == 0 {
		return errors.New(errors.ErrCodeEmptyGraph, "snapshot has no nodes")
	}
	prev := c.snap
	c.snap = snap.Clone()
	c.hover = ""
	if err := c.relayout(); err != nil {
		c.snap = prev
		return err
	}
	return nil
}

// relayout recomputes positions and tiers, then everything downstream.
func (c *Controller) relayout() error {
	start := time.Now()
	res, err := c.engine.Layout(c.snap.Nodes(), c.canvas, c.params)
	observability.View().OnLayout(c.snap.NodeCount(), time.Since(start), err)
	if err != nil {
		return err
	}
	c.layout = res
	c.logger.Debug("layout",
		"nodes", c.snap.NodeCount(),
		"periphery", res.Thresholds.Periphery,
		"core", res.Thresholds.Core,
		"sectors", len(res.Sectors),
		"noise", res.Noise,
		"duration", time.Since(start))
	c.refilter()
	return nil
}

// refilter evicts selected nodes that no longer pass the base filters,
// re-evaluates visibility, writes the node flags and rebuilds the index.
func (c *Controller) refilter() {
	start := time.Now()
	evicted := c.state.Evict(c.snap)
	c.result = filter.Evaluate(c.state, c.snap)
	c.result.Apply(c.snap)
	observability.View().OnFilter(len(c.result.VisibleNodes), len(c.result.VisibleEdges), len(evicted), time.Since(start))
	if len(evicted) > 0 {
		c.logger.Debug("evicted hidden selection", "ids", evicted)
	}
	c.reindex()
	if c.hover != "" && !c.result.IsVisible(c.hover) {
		c.hover = ""
	}
}

func (c *Controller) reindex() {
	start := time.Now()
	items := make([]spatial.Item, 0, len(c.result.VisibleNodes))
	for _, id := range c.result.VisibleNodes {
		n, _ := c.snap.Node(id)
		items = append(items, spatial.Item{ID: id, Pos: n.Pos})
	}
	c.index = spatial.Build(items)
	observability.View().OnIndexRebuild(c.index.Len(), time.Since(start))
}

// =============================================================================
// Snapshot and layout parameters
// =============================================================================

// Load replaces the snapshot. Filter state survives; selected ids missing
// from the new snapshot are evicted.
func (c *Controller) Load(snap *snapshot.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(snap)
}

// Resize changes the canvas and relays out.
func (c *Controller) Resize(w, h float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := layout.Canvas{Width: w, Height: h}
	if err := next.Validate(); err != nil {
		return err
	}
	prev := c.canvas
	c.canvas = next
	if err := c.relayout(); err != nil {
		c.canvas = prev
		return err
	}
	return nil
}

// SetThresholds overrides the tier thresholds; nil restores sampling from
// the score distribution. Tiers are recomputed immediately.
func (c *Controller) SetThresholds(th *layout.Thresholds) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if th != nil {
		if err := th.Validate(); err != nil {
			return err
		}
		cp := *th
		th = &cp
	}
	c.params.Thresholds = th
	return c.relayout()
}

// SetCommunityKey switches the community algorithm used for sectors.
func (c *Controller) SetCommunityKey(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params.CommunityKey = key
	return c.relayout()
}

// Params returns the current layout parameters.
func (c *Controller) Params() layout.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.params
	if p.Thresholds != nil {
		th := *p.Thresholds
		p.Thresholds = &th
	}
	return p
}

// =============================================================================
// Filters and selection
// =============================================================================

// Apply runs filter mutations. If the resulting state is invalid it is
// rolled back and the error returned.
func (c *Controller) Apply(muts ...filter.Mutation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(muts...)
}

func (c *Controller) apply(muts ...filter.Mutation) error {
	prev := c.state.Clone()
	c.state.Apply(muts...)
	if err := c.state.Validate(); err != nil {
		c.state = prev
		return err
	}
	c.refilter()
	return nil
}

// ApplyDelta validates and applies a partial filter update.
func (c *Controller) ApplyDelta(d *filter.Delta) error {
	if d == nil {
		return nil
	}
	if err := d.Validate(); err != nil {
		return err
	}
	return c.Apply(d.Mutations()...)
}

// ClearAll resets every filter and the selection.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ClearAll()
	c.refilter()
}

// SetSelection replaces the selection.
func (c *Controller) SetSelection(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetSelection(ids)
	c.refilter()
}

// ToggleSelection flips one node's membership in the selection.
func (c *Controller) ToggleSelection(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Toggle(id)
	c.refilter()
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ClearSelection()
	c.refilter()
}

// State returns a copy of the filter state.
func (c *Controller) State() *filter.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Result returns the current filter result. It is replaced, never
// modified, on the next change.
func (c *Controller) Result() *filter.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Layout returns the current layout geometry.
func (c *Controller) Layout() layout.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.layout
}

// Node returns a copy of a node with its per-render fields.
func (c *Controller) Node(id string) (snapshot.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.snap.Node(id)
	if !ok {
		return snapshot.Node{}, false
	}
	return *n, true
}

// Snapshot returns a copy of the controller's snapshot, including
// per-render fields.
func (c *Controller) Snapshot() *snapshot.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Clone()
}

// Frame copies the current view into a render frame. Nodes and edges are
// sorted, and communities are listed in sector order so palette colours
// follow the angular layout.
func (c *Controller) Frame() *render.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.params.CommunityKey
	f := &render.Frame{
		Canvas:       c.canvas,
		Transform:    c.transform,
		CenterX:      c.layout.Center.X,
		CenterY:      c.layout.Center.Y,
		Sectors:      append([]layout.Sector(nil), c.layout.Sectors...),
		Thresholds:   c.layout.Thresholds,
		CommunityKey: key,
		Communities:  make([]snapshot.CommunityID, 0, len(c.layout.Sectors)),
		Nodes:        make([]render.FrameNode, 0, len(c.result.VisibleNodes)),
		Edges:        make([]render.FrameEdge, 0, len(c.result.VisibleEdges)),
		Filters:      c.state.Clone(),
		Selection:    c.state.SelectionMode().String(),
		Hover:        c.hover,
		TotalNodes:   c.snap.NodeCount(),
		TotalEdges:   c.snap.EdgeCount(),
	}
	bands := c.layout.Bands
	f.Bands = bands[:]
	for _, s := range c.layout.Sectors {
		f.Communities = append(f.Communities, s.Community)
	}

	highlighted := make(map[string]bool, len(c.result.Highlighted))
	for _, id := range c.result.Highlighted {
		highlighted[id] = true
	}
	for _, id := range c.result.VisibleNodes {
		n, _ := c.snap.Node(id)
		fn := render.NewFrameNode(n, key)
		fn.Highlighted = highlighted[id]
		fn.Selected = c.state.IsSelected(id)
		fn.Hovered = id == c.hover
		f.Nodes = append(f.Nodes, fn)
	}
	for _, k := range c.result.VisibleEdges {
		e, _ := c.snap.Edge(k.A, k.B)
		a, _ := c.snap.Node(k.A)
		b, _ := c.snap.Node(k.B)
		f.Edges = append(f.Edges, render.FrameEdge{
			A: k.A, B: k.B, Weight: e.Weight,
			X1: a.Pos.X, Y1: a.Pos.Y, X2: b.Pos.X, Y2: b.Pos.Y,
		})
	}
	f.Sort()
	return f
}

// =============================================================================
// Pointer and viewport
// =============================================================================

// HitTest returns the visible node nearest to a screen point within the hit
// radius. The radius is constant on screen, so it shrinks in canvas units as
// the view zooms in.
func (c *Controller) HitTest(screen r2.Vec) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hitTest(screen)
}

func (c *Controller) hitTest(screen r2.Vec) (string, bool) {
	p := c.transform.ToCanvas(screen)
	it, ok := c.index.Nearest(p, c.hitRadius/c.transform.Scale)
	observability.View().OnHitTest(ok)
	return it.ID, ok
}

// Click handles a pointer click. A plain click on a node selects it alone;
// a modified click toggles it; a plain click on empty space clears the
// selection. It returns the node hit, if any.
func (c *Controller) Click(screen r2.Vec, modified bool) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok, _ := c.click(screen, modified)
	return id, ok
}

// click reports the node hit and whether the selection changed, including
// evictions caused by the refilter.
func (c *Controller) click(screen r2.Vec, modified bool) (string, bool, bool) {
	id, ok := c.hitTest(screen)
	before := slices.Clone(c.state.Selected)
	switch {
	case ok && modified:
		c.state.Toggle(id)
	case ok:
		c.state.Select(id)
	case !modified:
		if len(c.state.Selected) == 0 {
			return "", false, false
		}
		c.state.ClearSelection()
	default:
		return "", false, false
	}
	c.refilter()
	return id, ok, !slices.Equal(before, c.state.Selected)
}

// Hover updates the hovered node and reports whether it changed. It never
// recomputes layout or visibility.
func (c *Controller) Hover(screen r2.Vec) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, _ := c.hitTest(screen)
	changed := id != c.hover
	c.hover = id
	return id, changed
}

// Pan shifts the viewport by a screen-space offset.
func (c *Controller) Pan(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transform = c.transform.Pan(dx, dy)
}

// Zoom scales the viewport around a screen point.
func (c *Controller) Zoom(factor float64, anchor r2.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transform = c.transform.ZoomAt(factor, anchor)
}

// ResetView restores the identity transform.
func (c *Controller) ResetView() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transform = render.Identity()
}

// Transform returns the current viewport transform.
func (c *Controller) Transform() render.Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transform
}

// Dispatch routes an input event and reports whether the view changed.
func (c *Controller) Dispatch(e Event) (bool, error) {
	switch e.Kind {
	case EventClick:
		c.mu.Lock()
		defer c.mu.Unlock()
		_, _, changed := c.click(r2.Vec{X: e.X, Y: e.Y}, e.Modified())
		return changed, nil
	case EventMove:
		_, changed := c.Hover(r2.Vec{X: e.X, Y: e.Y})
		return changed, nil
	case EventLeave:
		c.mu.Lock()
		changed := c.hover != ""
		c.hover = ""
		c.mu.Unlock()
		return changed, nil
	case EventDrag:
		c.Pan(e.DX, e.DY)
		return e.DX != 0 || e.DY != 0, nil
	case EventWheel:
		if e.Zoom <= 0 || e.Zoom == 1 {
			return false, nil
		}
		c.Zoom(e.Zoom, r2.Vec{X: e.X, Y: e.Y})
		return true, nil
	case EventResize:
		if err := c.Resize(e.Width, e.Height); err != nil {
			return false, err
		}
		return true, nil
	case EventKey:
		return c.dispatchKey(e.Key)
	}
	return false, errors.New(errors.ErrCodeUnsupported, "unsupported event kind %s", e.Kind)
}

func (c *Controller) dispatchKey(key string) (bool, error) {
	switch key {
	case KeyEscape:
		c.ClearSelection()
	case KeyClear:
		c.ClearAll()
	case KeyReset:
		c.ResetView()
	case KeyZoomIn, KeyZoomOut:
		f := keyZoomStep
		if key == KeyZoomOut {
			f = 1 / keyZoomStep
		}
		c.mu.Lock()
		mid := c.transform.ToScreen(c.canvas.Center())
		c.transform = c.transform.ZoomAt(f, mid)
		c.mu.Unlock()
	default:
		return false, nil
	}
	return true, nil
}
