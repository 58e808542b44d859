package pipeline

import (
	"github.com/matzehuels/orbit/pkg/core/interact"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/graph"
)

// GenerateLayout lays out a snapshot and applies the filter state in opts.
// The controller it builds is discarded; only the exported frame survives.
func GenerateLayout(snap *snapshot.Snapshot, opts Options) (graph.Layout, error) {
	c, err := NewController(snap, opts)
	if err != nil {
		return graph.Layout{}, err
	}
	return graph.FromFrame(c.Frame(), nil), nil
}

// NewController builds an interaction controller configured from opts.
// The server uses it for long-lived views; GenerateLayout for one-shot
// exports.
func NewController(snap *snapshot.Snapshot, opts Options) (*interact.Controller, error) {
	opts.SetLayoutDefaults()
	return interact.New(snap, layout.NewEngine(opts.Engine), interact.Config{
		Canvas:    layout.Canvas{Width: opts.Width, Height: opts.Height},
		Params:    opts.Params(snap),
		State:     opts.Filters,
		HitRadius: opts.HitRadius,
		Logger:    opts.Logger,
	})
}
