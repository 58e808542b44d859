package layout

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultBandFloor     = 0.12
	DefaultInnerHole     = 0.10
	DefaultMargin        = 24.0
	DefaultBandPadding   = 0.10
	DefaultSectorGap     = 0.04 // radians
	DefaultAngularJitter = 0.35
	DefaultRadialJitter  = 0.04
	DefaultRelaxPasses   = 4
	DefaultMinSeparation = 8.0
)

// =============================================================================
// Options and Params
// =============================================================================

// Options tune the geometry of the layout. They are fixed per Engine; zero
// fields take the package defaults.
type Options struct {
	// BandFloor is the minimum width of each tier band as a fraction of the
	// usable radius. When BandFloor * NumTiers >= 1 the floor cannot be
	// honoured and all bands get equal width.
	BandFloor float64

	// InnerHole is the fraction of the outer radius left empty at the centre.
	InnerHole float64

	// Margin is the distance in pixels kept clear between the outer band and
	// the canvas edge.
	Margin float64

	// BandPadding is the fraction of a band's width kept clear at each edge
	// when interpolating radii.
	BandPadding float64

	// SectorGap is the angle in radians between adjacent community sectors.
	SectorGap float64

	// CommunityOrder lists communities that take the first sectors, in
	// order. Communities not listed follow by population, then by id.
	CommunityOrder []snapshot.CommunityID

	// AngularJitter scales the random angular offset relative to the angle
	// step between neighbours in a sector.
	AngularJitter float64

	// RadialJitter scales the random radial offset relative to band width.
	RadialJitter float64

	// RelaxPasses is the number of repulsion passes.
	RelaxPasses int

	// MinSeparation is the distance in pixels below which two nodes repel.
	MinSeparation float64

	PeripheryQuantile float64
	CoreQuantile      float64
}

// SetDefaults fills zero fields with package defaults.
func (o *Options) SetDefaults() {
	if o.BandFloor == 0 {
		o.BandFloor = DefaultBandFloor
	}
	if o.InnerHole == 0 {
		o.InnerHole = DefaultInnerHole
	}
	if o.Margin == 0 {
		o.Margin = DefaultMargin
	}
	if o.BandPadding == 0 {
		o.BandPadding = DefaultBandPadding
	}
	if o.SectorGap == 0 {
		o.SectorGap = DefaultSectorGap
	}
	if o.AngularJitter == 0 {
		o.AngularJitter = DefaultAngularJitter
	}
	if o.RadialJitter == 0 {
		o.RadialJitter = DefaultRadialJitter
	}
	if o.RelaxPasses == 0 {
		o.RelaxPasses = DefaultRelaxPasses
	}
	if o.MinSeparation == 0 {
		o.MinSeparation = DefaultMinSeparation
	}
	if o.PeripheryQuantile == 0 {
		o.PeripheryQuantile = DefaultPeripheryQuantile
	}
	if o.CoreQuantile == 0 {
		o.CoreQuantile = DefaultCoreQuantile
	}
}

// Validate reports options that cannot produce a layout.
func (o *Options) Validate() error {
	if o.BandFloor < 0 || o.InnerHole < 0 || o.InnerHole >= 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "band floor and inner hole must be within [0, 1)")
	}
	if o.BandPadding < 0 || o.BandPadding >= 0.5 {
		return errors.New(errors.ErrCodeInvalidConfig, "band padding must be within [0, 0.5), got %g", o.BandPadding)
	}
	if o.RelaxPasses < 0 || o.MinSeparation < 0 || o.SectorGap < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "relax passes, separation and sector gap must not be negative")
	}
	if err := errors.ValidateQuantile("periphery", o.PeripheryQuantile); err != nil {
		return err
	}
	if err := errors.ValidateQuantile("core", o.CoreQuantile); err != nil {
		return err
	}
	if o.PeripheryQuantile > o.CoreQuantile {
		return errors.New(errors.ErrCodeInvalidConfig, "periphery quantile %g exceeds core quantile %g", o.PeripheryQuantile, o.CoreQuantile)
	}
	return nil
}

// Params are the per-call inputs that differ between views sharing one
// Engine.
type Params struct {
	// CommunityKey selects the community algorithm used for sectors.
	CommunityKey string

	// Thresholds overrides the sampled tier thresholds when non-nil.
	Thresholds *Thresholds

	// Seed feeds the jitter generator.
	Seed uint64
}

// Canvas is the drawing area in pixels.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate reports a zero, negative or non-finite dimension.
func (c Canvas) Validate() error { return errors.ValidateCanvas(c.Width, c.Height) }

// Center returns the canvas midpoint.
func (c Canvas) Center() r2.Vec { return r2.Vec{X: c.Width / 2, Y: c.Height / 2} }

// =============================================================================
// Result
// =============================================================================

// Band is the radial extent of one tier.
type Band struct {
	Tier  snapshot.Tier `json:"tier"`
	Inner float64       `json:"inner"`
	Outer float64       `json:"outer"`
	Count int           `json:"count"`
}

// Width returns Outer - Inner.
func (b Band) Width() float64 { return b.Outer - b.Inner }

// Mid returns the band's centre line radius.
func (b Band) Mid() float64 { return (b.Inner + b.Outer) / 2 }

// Contains reports whether r lies within the band, allowing eps slack.
func (b Band) Contains(r, eps float64) bool { return r >= b.Inner-eps && r <= b.Outer+eps }

// Sector is the angular slice given to one community. Angles are in radians,
// starting at twelve o'clock and increasing clockwise in screen coordinates.
type Sector struct {
	Community snapshot.CommunityID `json:"community"`
	Start     float64              `json:"start"`
	End       float64              `json:"end"`
	Count     int                  `json:"count"`
}

// Result describes the geometry of one layout pass. Node positions are
// written to the nodes themselves.
type Result struct {
	Center     r2.Vec
	Radius     float64 // outer edge of the outer band
	Hole       float64 // inner edge of the core band
	Thresholds Thresholds
	Sampled    bool // thresholds came from the score distribution
	Bands      [snapshot.NumTiers]Band
	Sectors    []Sector
	Noise      int // nodes without a community
}

// Band returns the band for tier t.
func (r *Result) Band(t snapshot.Tier) Band { return r.Bands[t] }

// Usable returns the total radial extent covered by the bands.
func (r *Result) Usable() float64 { return r.Radius - r.Hole }

// =============================================================================
// Engine
// =============================================================================

// Engine computes tiered radial layouts. It holds only immutable options and
// is safe to share between views.
type Engine struct {
	opts Options
}

// NewEngine creates an engine; zero option fields take defaults.
func NewEngine(opts Options) *Engine {
	opts.SetDefaults()
	opts.CommunityOrder = slices.Clone(opts.CommunityOrder)
	return &Engine{opts: opts}
}

// Options returns a copy of the engine's options.
func (e *Engine) Options() Options {
	o := e.opts
	o.CommunityOrder = slices.Clone(o.CommunityOrder)
	return o
}

// Layout positions nodes on the canvas and writes Pos, Tier and Radial on
// each of them. Nil entries are ignored.
func (e *Engine) Layout(nodes []*snapshot.Node, canvas Canvas, p Params) (*Result, error) {
	if err := canvas.Validate(); err != nil {
		return nil, err
	}
	ordered := make([]*snapshot.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			ordered = append(ordered, n)
		}
	}
	if len(ordered) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyGraph, "no nodes to lay out")
	}
	slices.SortFunc(ordered, func(a, b *snapshot.Node) int { return cmp.Compare(a.ID, b.ID) })

	res := &Result{Center: canvas.Center()}
	if p.Thresholds != nil {
		res.Thresholds = *p.Thresholds
	} else {
		res.Thresholds, res.Sampled = NodeThresholds(ordered, e.opts.PeripheryQuantile, e.opts.CoreQuantile)
	}

	for _, n := range ordered {
		n.Tier = res.Thresholds.Classify(n.Score())
	}

	e.sizeBands(res, ordered, canvas)

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0xdeadbeef))
	radii := e.assignRadii(res, ordered, rng)
	angles := e.assignSectors(res, ordered, p.CommunityKey, rng)

	for _, n := range ordered {
		r, a := radii[n.ID], angles[n.ID]
		n.Pos = r2.Add(res.Center, r2.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)})
	}

	e.relax(res, ordered)

	for _, n := range ordered {
		n.Radial = r2.Norm(r2.Sub(n.Pos, res.Center)) / res.Radius
	}
	return res, nil
}
