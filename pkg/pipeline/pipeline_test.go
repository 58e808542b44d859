package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/orbit/pkg/cache"
	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/storage"
)

const sample = `{
  "meta": {"communityAlgorithms": ["louvain", "leiden"]},
  "nodes": [
    {"id": "ada", "label": "Ada", "totalWeight": 9, "centralizationScoreNormalized": 9,
     "communities": {"louvain": 0, "leiden": 1}, "languages": [{"language": "de", "weight": 9}]},
    {"id": "bo", "totalWeight": 5, "centralizationScoreNormalized": 5,
     "communities": {"louvain": 0, "leiden": 0}, "languages": [{"language": "de", "weight": 5}]},
    {"id": "cy", "totalWeight": 1, "centralizationScoreNormalized": 1,
     "communities": {"louvain": 1, "leiden": 0}}
  ],
  "links": [
    {"source": "ada", "target": "bo", "weight": 2},
    {"source": "bo", "target": "cy", "weight": 1}
  ]
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newFileCache(t *testing.T) *cache.FileCache {
	t.Helper()
	c, err := cache.NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"dot", false},
		{"json", false},
		{"pdf", true},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %s", tt.format, errors.GetCode(err))
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestValidateForLoad(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"file", Options{Input: "graph.json"}, ""},
		{"snapshot", Options{Snapshot: "june-2024"}, ""},
		{"neither", Options{}, errors.ErrCodeInvalidInput},
		{"both", Options{Input: "graph.json", Snapshot: "june"}, errors.ErrCodeInvalidInput},
		{"traversal", Options{Snapshot: "../etc"}, errors.ErrCodeInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateForLoad()
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %q, want %q (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	opts := Options{Input: "graph.json"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Width != DefaultWidth || opts.Height != DefaultHeight {
		t.Errorf("canvas = %gx%g", opts.Width, opts.Height)
	}
	if opts.Seed != DefaultSeed || opts.NodeRadius != DefaultNodeRadius {
		t.Errorf("seed = %d, radius = %g", opts.Seed, opts.NodeRadius)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("formats = %v", opts.Formats)
	}
	if opts.Logger == nil {
		t.Error("logger not set")
	}
	if opts.Engine.CoreQuantile == 0 {
		t.Error("engine defaults not applied")
	}
}

func TestValidateForLayoutErrors(t *testing.T) {
	inverted := filter.NewState()
	inverted.Weight = filter.Range{Min: 5, Max: 1}

	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"negative width", Options{Width: -1}, errors.ErrCodeInvalidCanvas},
		{"inverted filter", Options{Filters: inverted}, errors.ErrCodeInvalidRange},
		{"bad thresholds", Options{Thresholds: &layout.Thresholds{Periphery: 5, Core: 1}}, errors.ErrCodeInvalidRange},
		{"bad radius", Options{NodeRadius: -2}, errors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateForLayout()
			if err == nil {
				err = tt.opts.ValidateForRender()
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestParamsCommunityKeyFallback(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil)
	loaded, err := r.Load(context.Background(), Options{Input: writeSample(t)})
	if err != nil {
		t.Fatal(err)
	}

	opts := Options{}
	if got := opts.Params(loaded.Snapshot).CommunityKey; got != "louvain" {
		t.Errorf("fallback key = %q, want louvain", got)
	}
	opts.CommunityKey = "leiden"
	if got := opts.Params(loaded.Snapshot).CommunityKey; got != "leiden" {
		t.Errorf("explicit key = %q", got)
	}
	if got := (&Options{}).Params(nil).CommunityKey; got != DefaultCommunityKey {
		t.Errorf("nil snapshot key = %q", got)
	}
}

func TestLayoutKeyOptsDistinguishFilters(t *testing.T) {
	a := Options{Input: "x"}
	a.SetLayoutDefaults()
	b := a
	b.Filters = filter.NewState()
	b.Filters.Apply(filter.SetTopN(1))

	ka, kb := a.LayoutKeyOpts(nil), b.LayoutKeyOpts(nil)
	if ka == kb {
		t.Error("filter state should change the layout key")
	}
	c := a
	c.Seed = 7
	if a.LayoutKeyOpts(nil) == c.LayoutKeyOpts(nil) {
		t.Error("seed should change the layout key")
	}
}

func TestExecute(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{
		Input:   writeSample(t),
		Formats: []string{FormatSVG, FormatDOT, FormatJSON},
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Stats.NodeCount != 3 || res.Stats.EdgeCount != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.Stats.VisibleNodes != 3 {
		t.Errorf("visible = %d", res.Stats.VisibleNodes)
	}
	if res.Layout.CommunityKey != "louvain" {
		t.Errorf("community key = %q", res.Layout.CommunityKey)
	}
	if !bytes.Contains(res.Artifacts[FormatSVG], []byte("<svg")) {
		t.Error("svg artifact missing <svg")
	}
	if !bytes.Contains(res.Artifacts[FormatDOT], []byte("graph")) {
		t.Error("dot artifact missing graph")
	}
	l, err := graph.UnmarshalLayout(res.Artifacts[FormatJSON])
	if err != nil {
		t.Fatalf("json artifact: %v", err)
	}
	if len(l.Nodes) != 3 {
		t.Errorf("json nodes = %d", len(l.Nodes))
	}
	if res.CacheInfo.LayoutHit || res.CacheInfo.RenderHit {
		t.Errorf("null cache reported hits: %+v", res.CacheInfo)
	}
}

func TestExecuteCachesLayoutAndArtifacts(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newFileCache(t), nil, nil, nil)
	opts := Options{Input: writeSample(t), Formats: []string{FormatSVG, FormatJSON}}

	first, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}

	if !second.CacheInfo.LayoutHit || !second.CacheInfo.RenderHit {
		t.Errorf("second run cache info = %+v", second.CacheInfo)
	}
	if !bytes.Equal(first.Artifacts[FormatSVG], second.Artifacts[FormatSVG]) {
		t.Error("cached svg differs from fresh render")
	}

	// A new format renders only what is missing from a cached layout.
	opts.Formats = []string{FormatSVG, FormatDOT}
	third, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !third.CacheInfo.LayoutHit || third.CacheInfo.RenderHit {
		t.Errorf("third run cache info = %+v", third.CacheInfo)
	}
	if len(third.Artifacts) != 2 {
		t.Errorf("artifacts = %d", len(third.Artifacts))
	}
}

func TestCachedLayoutRendersIdentically(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil, nil)
	opts := Options{Input: writeSample(t), Labels: true}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	loaded, err := r.Load(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	l, err := r.Layout(ctx, loaded, opts)
	if err != nil {
		t.Fatal(err)
	}

	data, err := graph.MarshalLayout(l)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := graph.UnmarshalLayout(data)
	if err != nil {
		t.Fatal(err)
	}

	fresh, err := Render(ctx, l, opts)
	if err != nil {
		t.Fatal(err)
	}
	cached, err := Render(ctx, decoded, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fresh[FormatSVG], cached[FormatSVG]) {
		t.Error("decoded layout renders differently")
	}
}

func TestExecuteWithFilters(t *testing.T) {
	state := filter.NewState()
	state.Apply(filter.SetTopN(1))

	r := NewRunner(nil, nil, nil, nil)
	res, err := r.Execute(context.Background(), Options{Input: writeSample(t), Filters: state})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.VisibleNodes != 1 || res.Layout.Nodes[0].ID != "ada" {
		t.Errorf("visible = %+v", res.Layout.Nodes)
	}
	if res.Layout.TotalNodes != 3 {
		t.Errorf("total = %d", res.Layout.TotalNodes)
	}
}

func TestExecuteFromStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "snapshots"))
	if err != nil {
		t.Fatal(err)
	}
	g, err := graph.UnmarshalGraph([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "june", g); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(newFileCache(t), nil, store, nil)
	defer r.Close()

	first, err := r.Execute(ctx, Options{Snapshot: "june"})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.LoadHit {
		t.Error("first load should miss")
	}
	second, err := r.Execute(ctx, Options{Snapshot: "june"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.LoadHit || first.SnapshotHash != second.SnapshotHash {
		t.Errorf("second load hit=%v hash equal=%v", second.CacheInfo.LoadHit, first.SnapshotHash == second.SnapshotHash)
	}
	refreshed, err := r.Execute(ctx, Options{Snapshot: "june", Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheInfo.LoadHit {
		t.Error("refresh should bypass the snapshot cache")
	}
}

func TestExecuteErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"nodes": [{"id": "de", "type": "language"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{"nodes": [`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"missing file", Options{Input: filepath.Join(dir, "nope.json")}, errors.ErrCodeNotFound},
		{"empty graph", Options{Input: empty}, errors.ErrCodeEmptyGraph},
		{"malformed", Options{Input: broken}, errors.ErrCodeInvalidFormat},
		{"no store", Options{Snapshot: "june"}, errors.ErrCodeUnsupported},
		{"bad format", Options{Input: empty, Formats: []string{"gif"}}, errors.ErrCodeInvalidFormat},
	}

	r := NewRunner(nil, nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}
