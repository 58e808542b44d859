// Package pipeline runs the batch load → layout → render flow shared by the
// CLI and the HTTP server.
//
// # Stages
//
//  1. Load: read a graph file or fetch a named snapshot from a store
//  2. Layout: build an interaction controller over the snapshot (tiers,
//     bands, sectors, filters) and export its frame as a [graph.Layout]
//  3. Render: produce SVG, PNG, DOT and JSON from the layout, concurrently
//
// Every stage is cached through a [cache.Cache]. Layout keys hash the
// snapshot content with the layout options and filter state; artifact keys
// hash the layout with the render options, so a cached layout renders
// exactly like a fresh one.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, store, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    Input:   "author_author_graph.json",
//	    Formats: []string{"svg", "png"},
//	})
//	svg := res.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orbit/pkg/cache"
	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultWidth is the default canvas width in pixels.
	DefaultWidth = 1200.0

	// DefaultHeight is the default canvas height in pixels.
	DefaultHeight = 900.0

	// DefaultSeed is the default jitter seed.
	DefaultSeed = uint64(42)

	// DefaultCommunityKey is used when a snapshot lists no algorithms.
	DefaultCommunityKey = graph.CommunityLouvain

	// DefaultNodeRadius is the default node radius in pixels.
	DefaultNodeRadius = 4.0
)

// Output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatDOT:  true,
	FormatJSON: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one pipeline run. It decodes from API request bodies.
type Options struct {
	// Load options. Exactly one of Input and Snapshot is set.
	Input    string `json:"input,omitempty"`    // graph JSON file
	Snapshot string `json:"snapshot,omitempty"` // stored snapshot name
	Refresh  bool   `json:"refresh,omitempty"`  // bypass the snapshot cache

	// Layout options
	Width        float64            `json:"width,omitempty"`
	Height       float64            `json:"height,omitempty"`
	CommunityKey string             `json:"community_key,omitempty"`
	Thresholds   *layout.Thresholds `json:"thresholds,omitempty"`
	Seed         uint64             `json:"seed,omitempty"`
	Filters      *filter.State      `json:"filters,omitempty"`
	Engine       layout.Options     `json:"-"`
	HitRadius    float64            `json:"-"` // interactive views only

	// Render options
	Formats    []string `json:"formats,omitempty"`
	NodeRadius float64  `json:"node_radius,omitempty"`
	Labels     bool     `json:"labels,omitempty"`
	NoBands    bool     `json:"no_bands,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// Result holds the outputs of a pipeline run.
type Result struct {
	Snapshot     *snapshot.Snapshot
	SnapshotHash string
	LoadStats    graph.Stats
	Layout       graph.Layout
	Artifacts    map[string][]byte
	Stats        Stats
	CacheInfo    CacheInfo
}

// Stats contains timing and size information.
type Stats struct {
	NodeCount    int
	EdgeCount    int
	VisibleNodes int
	VisibleEdges int
	LoadTime     time.Duration
	LayoutTime   time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks which stages hit the cache.
type CacheInfo struct {
	LoadHit   bool
	LayoutHit bool
	RenderHit bool // every requested format came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: %s)", format, strings.Join(FormatNames(), ", "))
	}
	return nil
}

// ValidateFormats checks every format.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// FormatNames returns the supported formats sorted.
func FormatNames() []string {
	names := make([]string, 0, len(ValidFormats))
	for f := range ValidFormats {
		names = append(names, f)
	}
	slices.Sort(names)
	return names
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the
// full pipeline. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks that exactly one source is named.
func (o *Options) ValidateForLoad() error {
	switch {
	case o.Input == "" && o.Snapshot == "":
		return errors.New(errors.ErrCodeInvalidInput, "an input file or snapshot name is required")
	case o.Input != "" && o.Snapshot != "":
		return errors.New(errors.ErrCodeInvalidInput, "input file and snapshot name are mutually exclusive")
	case o.Snapshot != "":
		if err := errors.ValidateSnapshotName(o.Snapshot); err != nil {
			return err
		}
	}
	o.setLogger()
	return nil
}

// SetLayoutDefaults fills zero layout fields.
func (o *Options) SetLayoutDefaults() {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	o.Engine.SetDefaults()
	o.setLogger()
}

// ValidateForLayout applies layout defaults and validates them.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	if err := (layout.Canvas{Width: o.Width, Height: o.Height}).Validate(); err != nil {
		return err
	}
	if err := o.Engine.Validate(); err != nil {
		return err
	}
	if o.Thresholds != nil {
		if err := o.Thresholds.Validate(); err != nil {
			return err
		}
	}
	if o.Filters != nil {
		return o.Filters.Validate()
	}
	return nil
}

// SetRenderDefaults fills zero render fields.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if o.NodeRadius == 0 {
		o.NodeRadius = DefaultNodeRadius
	}
	o.setLogger()
}

// ValidateForRender applies render defaults and validates them.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if o.NodeRadius < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "node radius must not be negative, got %g", o.NodeRadius)
	}
	return ValidateFormats(o.Formats)
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Source returns a display name for the load source.
func (o *Options) Source() string {
	if o.Snapshot != "" {
		return "snapshot:" + o.Snapshot
	}
	return o.Input
}

// Params returns the layout parameters for a snapshot. An unset community
// key falls back to the snapshot's first community algorithm.
func (o *Options) Params(s *snapshot.Snapshot) layout.Params {
	key := o.CommunityKey
	if key == "" && s != nil {
		if algs := s.Meta().CommunityAlgorithms; len(algs) > 0 {
			key = algs[0]
		} else if keys := s.CommunityKeys(); len(keys) > 0 {
			key = keys[0]
		}
	}
	if key == "" {
		key = DefaultCommunityKey
	}
	return layout.Params{CommunityKey: key, Thresholds: o.Thresholds, Seed: o.Seed}
}

// LayoutKeyOpts returns cache key options for the layout stage.
func (o *Options) LayoutKeyOpts(s *snapshot.Snapshot) cache.LayoutKeyOpts {
	p := o.Params(s)
	k := cache.LayoutKeyOpts{
		Width:        o.Width,
		Height:       o.Height,
		CommunityKey: p.CommunityKey,
		Seed:         o.Seed,
		Engine:       cache.HashJSON(o.Engine),
	}
	if o.Thresholds != nil {
		k.Thresholds = true
		k.Periphery, k.Core = o.Thresholds.Periphery, o.Thresholds.Core
	}
	if o.Filters != nil {
		k.Filters = cache.HashJSON(o.Filters)
	}
	return k
}

// ArtifactKeyOpts returns cache key options for one output format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:     format,
		NodeRadius: o.NodeRadius,
		Labels:     o.Labels,
		NoBands:    o.NoBands,
	}
}

func (o Options) String() string {
	return fmt.Sprintf("%s %gx%g seed=%d formats=%v", o.Source(), o.Width, o.Height, o.Seed, o.Formats)
}
