package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orbit/pkg/cache"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/observability"
	"github.com/matzehuels/orbit/pkg/storage"
)

// Cache key types reported to observability hooks.
const (
	keyTypeSnapshot = "snapshot"
	keyTypeLayout   = "layout"
	keyTypeArtifact = "artifact"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner is stateless except for its cache, store and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  storage.Store // nil disables loading by snapshot name
	Logger *log.Logger
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, store storage.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  store,
		Logger: logger,
	}
}

// Execute runs the complete load → layout → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Load
	loadStart := time.Now()
	loaded, loadHit, err := r.LoadWithCacheInfo(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Snapshot = loaded.Snapshot
	result.SnapshotHash = loaded.Hash
	result.LoadStats = loaded.Stats
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.NodeCount = loaded.Snapshot.NodeCount()
	result.Stats.EdgeCount = loaded.Snapshot.EdgeCount()
	result.CacheInfo.LoadHit = loadHit

	r.Logger.Info("loaded snapshot",
		"source", opts.Source(),
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"dropped", loaded.Stats.DroppedEdges,
		"duration", result.Stats.LoadTime)

	// Stage 2: Layout
	layoutStart := time.Now()
	l, layoutHit, err := r.LayoutWithCacheInfo(ctx, loaded, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.Stats.VisibleNodes = len(l.Nodes)
	result.Stats.VisibleEdges = len(l.Links)
	result.CacheInfo.LayoutHit = layoutHit

	r.Logger.Info("computed layout",
		"visible", len(l.Nodes),
		"edges", len(l.Links),
		"cached", layoutHit,
		"duration", result.Stats.LayoutTime)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, l, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// =============================================================================
// Load
// =============================================================================

// Loaded is a decoded snapshot together with its content hash.
type Loaded struct {
	Snapshot *snapshot.Snapshot
	Stats    graph.Stats
	Hash     string
}

// LoadWithCacheInfo reads the snapshot named by opts. Stored snapshots are
// cached by name; files are always read since their content is the key.
func (r *Runner) LoadWithCacheInfo(ctx context.Context, opts Options) (*Loaded, bool, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, false, err
	}
	source := opts.Source()
	hooks := observability.Pipeline()
	hooks.OnLoadStart(ctx, source)
	start := time.Now()

	loaded, hit, err := r.load(ctx, opts)

	nodes, dropped := 0, 0
	if loaded != nil {
		nodes, dropped = loaded.Snapshot.NodeCount(), loaded.Stats.DroppedEdges
	}
	hooks.OnLoadComplete(ctx, source, nodes, dropped, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	if loaded.Snapshot.NodeCount() == 0 {
		return nil, false, errors.New(errors.ErrCodeEmptyGraph, "%s contains no author nodes", source)
	}
	return loaded, hit, nil
}

func (r *Runner) load(ctx context.Context, opts Options) (*Loaded, bool, error) {
	if opts.Input != "" {
		data, err := os.ReadFile(opts.Input)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, false, errors.Wrap(errors.ErrCodeNotFound, err, "input file %s", opts.Input)
			}
			return nil, false, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", opts.Input)
		}
		loaded, err := decode(data)
		return loaded, false, err
	}

	if r.Store == nil {
		return nil, false, errors.New(errors.ErrCodeUnsupported, "no snapshot store configured")
	}
	cacheKey := r.Keyer.SnapshotKey("store:"+opts.Snapshot, "")
	hooks := observability.Cache()

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if loaded, err := decode(data); err == nil {
				hooks.OnCacheHit(ctx, keyTypeSnapshot)
				return loaded, true, nil
			}
		}
	}
	hooks.OnCacheMiss(ctx, keyTypeSnapshot)

	g, err := r.Store.Get(ctx, opts.Snapshot)
	if err != nil {
		return nil, false, err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, false, err
	}
	if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLSnapshot); err != nil {
		r.Logger.Warn("cache write failed", "key", keyTypeSnapshot, "error", err)
	} else {
		hooks.OnCacheSet(ctx, keyTypeSnapshot, len(data))
	}
	loaded, err := decode(data)
	return loaded, false, err
}

func decode(data []byte) (*Loaded, error) {
	snap, st, err := graph.ReadGraph(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Loaded{Snapshot: snap, Stats: st, Hash: cache.Hash(data)}, nil
}

// Load is a convenience wrapper that calls LoadWithCacheInfo and discards the cache hit info.
func (r *Runner) Load(ctx context.Context, opts Options) (*Loaded, error) {
	loaded, _, err := r.LoadWithCacheInfo(ctx, opts)
	return loaded, err
}

// =============================================================================
// Layout
// =============================================================================

// LayoutWithCacheInfo lays out a loaded snapshot with caching and returns
// cache hit info.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, loaded *Loaded, opts Options) (graph.Layout, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForLayout(); err != nil {
		return graph.Layout{}, false, err
	}
	hash := loaded.Hash
	if hash == "" {
		data, err := graph.MarshalGraph(loaded.Snapshot)
		if err != nil {
			return graph.Layout{}, false, err
		}
		hash = cache.Hash(data)
	}
	cacheKey := r.Keyer.LayoutKey(hash, opts.LayoutKeyOpts(loaded.Snapshot))
	hooks := observability.Cache()

	if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
		if cached, err := graph.UnmarshalLayout(data); err == nil {
			hooks.OnCacheHit(ctx, keyTypeLayout)
			return cached, true, nil
		}
		// Undecodable entries fall through and are overwritten.
	}
	hooks.OnCacheMiss(ctx, keyTypeLayout)

	l, err := GenerateLayout(loaded.Snapshot, opts)
	if err != nil {
		return graph.Layout{}, false, err
	}
	if data, err := graph.MarshalLayout(l); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLLayout); err == nil {
			hooks.OnCacheSet(ctx, keyTypeLayout, len(data))
		}
	}
	return l, false, nil
}

// Layout is a convenience wrapper that calls LayoutWithCacheInfo and discards the cache hit info.
func (r *Runner) Layout(ctx context.Context, loaded *Loaded, opts Options) (graph.Layout, error) {
	l, _, err := r.LayoutWithCacheInfo(ctx, loaded, opts)
	return l, err
}

// =============================================================================
// Render
// =============================================================================

// RenderWithCacheInfo renders artifacts with per-format caching. The hit
// flag is true only when every requested format came from cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, l graph.Layout, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	layoutData, err := graph.MarshalLayout(l)
	if err != nil {
		return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
	}
	layoutHash := cache.Hash(layoutData)
	hooks := observability.Cache()

	artifacts := make(map[string][]byte, len(opts.Formats))
	var missing []string
	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			hooks.OnCacheHit(ctx, keyTypeArtifact)
			artifacts[format] = data
			continue
		}
		hooks.OnCacheMiss(ctx, keyTypeArtifact)
		missing = append(missing, format)
	}
	if len(missing) == 0 {
		return artifacts, true, nil
	}

	pipeHooks := observability.Pipeline()
	pipeHooks.OnRenderStart(ctx, missing)
	start := time.Now()
	rendered, err := renderFormats(ctx, l, opts, missing)
	pipeHooks.OnRenderComplete(ctx, missing, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	for format, data := range rendered {
		key := r.Keyer.ArtifactKey(layoutHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err == nil {
			hooks.OnCacheSet(ctx, keyTypeArtifact, len(data))
		}
		artifacts[format] = data
	}
	return artifacts, false, nil
}

// RenderCached is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) RenderCached(ctx context.Context, l graph.Layout, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, l, opts)
	return artifacts, err
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
