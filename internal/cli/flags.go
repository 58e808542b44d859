package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/pipeline"
)

// viewFlags are the source, layout and filter flags shared by every command
// that builds a view. Unset flags fall back to the config file.
type viewFlags struct {
	snapshot string
	refresh  bool
	noCache  bool

	width, height float64
	communityKey  string
	seed          uint64
	periphery     float64
	core          float64

	minWeight   float64
	minScore    float64
	maxScore    float64
	tiers       []string
	communities []int
	attributes  []string
	topN        int
	allow       []string
	focus       string
	query       string
	selected    []string
	sharedOnly  bool
}

func (f *viewFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.snapshot, "snapshot", "s", "", "load a stored snapshot instead of a file")
	fs.BoolVar(&f.refresh, "refresh", false, "bypass the cached copy of a stored snapshot")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable caching")

	fs.Float64Var(&f.width, "width", pipeline.DefaultWidth, "canvas width")
	fs.Float64Var(&f.height, "height", pipeline.DefaultHeight, "canvas height")
	fs.StringVarP(&f.communityKey, "community", "c", "", "community algorithm for sectors (default: first in snapshot)")
	fs.Uint64Var(&f.seed, "seed", pipeline.DefaultSeed, "jitter seed")
	fs.Float64Var(&f.periphery, "periphery", 0, "score threshold for the periphery tier (default: quantile)")
	fs.Float64Var(&f.core, "core", 0, "score threshold for the core tier (default: quantile)")

	fs.Float64Var(&f.minWeight, "min-weight", 0, "hide edges lighter than this")
	fs.Float64Var(&f.minScore, "min-score", 0, "hide nodes scoring below this")
	fs.Float64Var(&f.maxScore, "max-score", 0, "hide nodes scoring above this")
	fs.StringSliceVar(&f.tiers, "tier", nil, "show only these tiers: core, periphery, outer")
	fs.IntSliceVar(&f.communities, "in-community", nil, "show only these community ids")
	fs.StringSliceVar(&f.attributes, "attribute", nil, "show only nodes with one of these attributes (languages)")
	fs.IntVar(&f.topN, "top", 0, "show only the N heaviest authors")
	fs.StringSliceVar(&f.allow, "allow", nil, "show only these node ids (with --top)")
	fs.StringVar(&f.focus, "focus", "", "show only this node and its neighbours")
	fs.StringVarP(&f.query, "query", "q", "", "highlight nodes whose label or id contains this")
	fs.StringSliceVar(&f.selected, "select", nil, "select nodes by id")
	fs.BoolVar(&f.sharedOnly, "shared-only", false, "with several selected nodes, show only edges among them")
}

// options merges changed flags over the config-derived pipeline options.
func (f *viewFlags) options(cmd *cobra.Command, c *CLI, input string) (pipeline.Options, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts, err := cfg.PipelineOptions()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts.Input = input
	opts.Snapshot = f.snapshot
	opts.Refresh = f.refresh
	opts.Logger = c.Logger
	opts.HitRadius = cfg.Server.HitRadius

	fs := cmd.Flags()
	if fs.Changed("width") {
		opts.Width = f.width
	}
	if fs.Changed("height") {
		opts.Height = f.height
	}
	if fs.Changed("community") {
		opts.CommunityKey = f.communityKey
	}
	if fs.Changed("seed") {
		opts.Seed = f.seed
	}
	if fs.Changed("periphery") || fs.Changed("core") {
		th := layout.DefaultThresholds
		if opts.Thresholds != nil {
			th = *opts.Thresholds
		}
		if fs.Changed("periphery") {
			th.Periphery = f.periphery
		}
		if fs.Changed("core") {
			th.Core = f.core
		}
		opts.Thresholds = &th
	}

	muts, err := f.mutations(fs, opts.CommunityKey)
	if err != nil {
		return pipeline.Options{}, err
	}
	if len(muts) > 0 {
		state := opts.Filters
		if state == nil {
			state = filter.NewState()
		}
		state.Apply(muts...)
		opts.Filters = state
	}
	return opts, nil
}

// mutations translates changed filter flags.
func (f *viewFlags) mutations(fs *pflag.FlagSet, communityKey string) ([]filter.Mutation, error) {
	var muts []filter.Mutation
	if fs.Changed("min-weight") {
		muts = append(muts, filter.SetMinWeight(f.minWeight))
	}
	if fs.Changed("min-score") || fs.Changed("max-score") {
		lo, hi := filter.Unbounded.Min, filter.Unbounded.Max
		if fs.Changed("min-score") {
			lo = f.minScore
		}
		if fs.Changed("max-score") {
			hi = f.maxScore
		}
		muts = append(muts, filter.SetScoreRange(lo, hi))
	}
	if len(f.tiers) > 0 {
		tiers, err := parseTiers(f.tiers)
		if err != nil {
			return nil, err
		}
		muts = append(muts, filter.SetTiers(tiers...))
	}
	if len(f.communities) > 0 {
		if communityKey == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "--in-community needs --community to name the algorithm")
		}
		ids := make([]snapshot.CommunityID, len(f.communities))
		for i, id := range f.communities {
			ids[i] = snapshot.CommunityID(id)
		}
		muts = append(muts, filter.SetCommunities(communityKey, ids...))
	}
	if len(f.attributes) > 0 {
		muts = append(muts, filter.SetAttributes(f.attributes...))
	}
	if fs.Changed("top") {
		muts = append(muts, filter.SetTopN(f.topN))
	}
	if len(f.allow) > 0 {
		muts = append(muts, filter.SetAllowlist(f.allow...))
	}
	if f.focus != "" {
		muts = append(muts, filter.SetFocus(f.focus))
	}
	if f.query != "" {
		muts = append(muts, filter.SetQuery(f.query))
	}
	if len(f.selected) > 0 {
		muts = append(muts, filter.SetSelection(f.selected...))
	}
	if fs.Changed("shared-only") {
		muts = append(muts, filter.SetSharedOnly(f.sharedOnly))
	}
	return muts, nil
}

// parseTiers parses tier names; "central" is accepted for core.
func parseTiers(names []string) ([]snapshot.Tier, error) {
	tiers := make([]snapshot.Tier, 0, len(names))
	for _, name := range names {
		t, err := snapshot.ParseTier(name)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

// inputArg returns the positional input, which is optional with --snapshot.
func (f *viewFlags) inputArg(args []string) (string, error) {
	switch {
	case len(args) == 1 && f.snapshot == "":
		return args[0], nil
	case len(args) == 0 && f.snapshot != "":
		return "", nil
	case len(args) == 1:
		return "", errors.New(errors.ErrCodeInvalidInput, "give either a graph file or --snapshot, not both")
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "a graph file or --snapshot is required")
}

// source names the input for output paths and messages.
func (f *viewFlags) source(input string) string {
	if f.snapshot != "" {
		return f.snapshot
	}
	return input
}
