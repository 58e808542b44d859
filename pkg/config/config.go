// Package config loads orbit settings from a TOML file.
//
// The file lives at $XDG_CONFIG_HOME/orbit/config.toml unless a path is
// given explicitly. A missing file yields [Default]; a malformed one is an
// INVALID_CONFIG error. Command-line flags override file values.
package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/orbit/pkg/cache"
	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/pipeline"
	"github.com/matzehuels/orbit/pkg/storage"
)

const appName = "orbit"

// Backend names.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config holds orbit configuration.
type Config struct {
	Canvas  CanvasConfig  `toml:"canvas"`
	Layout  LayoutConfig  `toml:"layout"`
	Filter  FilterConfig  `toml:"filter"`
	Cache   CacheConfig   `toml:"cache"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
}

// CanvasConfig sets the drawing area in pixels.
type CanvasConfig struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// LayoutConfig tunes the radial layout engine. Zero values take the
// engine defaults.
type LayoutConfig struct {
	CommunityKey      string             `toml:"community_key"`
	Seed              uint64             `toml:"seed"`
	Thresholds        *layout.Thresholds `toml:"thresholds"`
	PeripheryQuantile float64            `toml:"periphery_quantile"`
	CoreQuantile      float64            `toml:"core_quantile"`
	BandFloor         float64            `toml:"band_floor"`
	InnerHole         float64            `toml:"inner_hole"`
	Margin            float64            `toml:"margin"`
	SectorGap         float64            `toml:"sector_gap"`
	AngularJitter     float64            `toml:"angular_jitter"`
	RadialJitter      float64            `toml:"radial_jitter"`
	RelaxPasses       int                `toml:"relax_passes"`
	MinSeparation     float64            `toml:"min_separation"`
}

// FilterConfig is the filter state new views start with.
type FilterConfig struct {
	MinWeight  float64  `toml:"min_weight"`
	TopN       int      `toml:"top_n"`
	Tiers      []string `toml:"tiers"`
	SharedOnly bool     `toml:"shared_only"`
}

func (f FilterConfig) active() bool {
	return f.MinWeight > 0 || f.TopN > 0 || len(f.Tiers) > 0 || f.SharedOnly
}

// CacheConfig selects the artifact cache.
type CacheConfig struct {
	Backend string            `toml:"backend"` // "file", "redis", "none"
	Dir     string            `toml:"dir"`
	Redis   cache.RedisConfig `toml:"redis"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string        `toml:"addr"`
	HitRadius float64       `toml:"hit_radius"`
	MaxViews  int           `toml:"max_views"`
	ViewTTL   time.Duration `toml:"view_ttl"`
}

// StorageConfig selects the snapshot store.
type StorageConfig struct {
	Backend string              `toml:"backend"` // "file", "mongo"
	Dir     string              `toml:"dir"`
	Mongo   storage.MongoConfig `toml:"mongo"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{Width: pipeline.DefaultWidth, Height: pipeline.DefaultHeight},
		Layout: LayoutConfig{Seed: pipeline.DefaultSeed},
		Cache: CacheConfig{
			Backend: BackendFile,
			Dir:     CacheDir(),
			Redis:   cache.DefaultRedisConfig(),
		},
		Server: ServerConfig{
			Addr:      ":8080",
			HitRadius: 6,
			MaxViews:  256,
			ViewTTL:   30 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Dir:     filepath.Join(DataDir(), "snapshots"),
			Mongo:   storage.DefaultMongoConfig(),
		},
	}
}

// =============================================================================
// Paths
// =============================================================================

// ConfigDir returns the orbit config directory path.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// CacheDir returns the default artifact cache directory (~/.cache/orbit).
func CacheDir() string {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// DataDir returns the orbit data directory (~/.local/share/orbit).
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

func xdgDir(env, fallback string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, appName)
}

// =============================================================================
// Load / Save
// =============================================================================

// Load reads the config file at path, or the default path when path is
// empty. A missing file returns defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	return cfg, nil
}

// Decode parses TOML into cfg over its current values and validates the
// result. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode toml")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown key %q", undecoded[0].String())
	}
	return cfg.Validate()
}

// Save writes the config to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks backend names and the layout and filter sections.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone, "":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Storage.Backend {
	case BackendFile, BackendMongo, "":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown storage backend %q", c.Storage.Backend)
	}
	if c.Server.HitRadius < 0 || c.Server.MaxViews < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "hit radius and max views must not be negative")
	}
	opts := c.LayoutOptions()
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}
	if c.Layout.Thresholds != nil {
		if err := c.Layout.Thresholds.Validate(); err != nil {
			return err
		}
	}
	_, err := c.FilterState()
	return err
}

// =============================================================================
// Conversions
// =============================================================================

// LayoutOptions returns the engine options of the [layout] section.
func (c *Config) LayoutOptions() layout.Options {
	l := c.Layout
	return layout.Options{
		BandFloor:         l.BandFloor,
		InnerHole:         l.InnerHole,
		Margin:            l.Margin,
		SectorGap:         l.SectorGap,
		AngularJitter:     l.AngularJitter,
		RadialJitter:      l.RadialJitter,
		RelaxPasses:       l.RelaxPasses,
		MinSeparation:     l.MinSeparation,
		PeripheryQuantile: l.PeripheryQuantile,
		CoreQuantile:      l.CoreQuantile,
	}
}

// FilterState returns the initial filter state of the [filter] section.
func (c *Config) FilterState() (*filter.State, error) {
	f := c.Filter
	state := filter.NewState()
	if f.MinWeight > 0 {
		state.Apply(filter.SetMinWeight(f.MinWeight))
	}
	if f.TopN > 0 {
		state.Apply(filter.SetTopN(f.TopN))
	}
	if len(f.Tiers) > 0 {
		tiers := make([]snapshot.Tier, 0, len(f.Tiers))
		for _, name := range f.Tiers {
			t, err := snapshot.ParseTier(name)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, t)
		}
		state.Apply(filter.SetTiers(tiers...))
	}
	state.SharedOnly = f.SharedOnly
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

// PipelineOptions returns pipeline options seeded from the config. Load
// and render fields are left for the caller.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	state, err := c.FilterState()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		Width:        c.Canvas.Width,
		Height:       c.Canvas.Height,
		CommunityKey: c.Layout.CommunityKey,
		Seed:         c.Layout.Seed,
		Engine:       c.LayoutOptions(),
	}
	if c.Layout.Thresholds != nil {
		th := *c.Layout.Thresholds
		opts.Thresholds = &th
	}
	if c.Filter.active() {
		opts.Filters = state
	}
	return opts, nil
}

// OpenCache opens the configured cache backend.
func (c *Config) OpenCache(ctx context.Context, logger *log.Logger) (cache.Cache, error) {
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		return cache.NewRedisCache(ctx, c.Cache.Redis, logger)
	}
	dir := c.Cache.Dir
	if dir == "" {
		dir = CacheDir()
	}
	return cache.NewFileCache(dir)
}

// OpenStore opens the configured snapshot store.
func (c *Config) OpenStore(ctx context.Context, logger *log.Logger) (storage.Store, error) {
	if c.Storage.Backend == BackendMongo {
		return storage.NewMongoStore(ctx, c.Storage.Mongo, logger)
	}
	dir := c.Storage.Dir
	if dir == "" {
		dir = filepath.Join(DataDir(), "snapshots")
	}
	return storage.NewFileStore(dir)
}

// StoreScope returns a cache key prefix naming the configured snapshot
// store, so cached copies of same-named snapshots from different stores
// never collide.
func (c *Config) StoreScope() string {
	if c.Storage.Backend == BackendMongo {
		m := c.Storage.Mongo
		return "mongo:" + cache.Hash([]byte(m.URI + "/" + m.Database + "/" + m.Collection))[:12] + ":"
	}
	dir := c.Storage.Dir
	if dir == "" {
		dir = filepath.Join(DataDir(), "snapshots")
	}
	return "file:" + cache.Hash([]byte(dir))[:12] + ":"
}
