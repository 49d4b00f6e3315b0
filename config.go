package meadow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the engine tunables. Zero values are replaced by defaults
// when loaded through ParseConfig or LoadConfig.
type Config struct {
	// ChunkSize is the chunk edge length in tiles.
	ChunkSize int `yaml:"chunk_size"`
	// CullMarginTiles expands the camera view on every side before culling.
	CullMarginTiles int `yaml:"cull_margin_tiles"`
	// DefaultTileWidth and DefaultTileHeight are used when neither the
	// tileset nor the map supplies a tile size.
	DefaultTileWidth  int `yaml:"default_tile_width"`
	DefaultTileHeight int `yaml:"default_tile_height"`
	// PositionTolerance is the distance in tiles a re-discovered map may be
	// from its stored position before a mismatch is reported.
	PositionTolerance int `yaml:"position_tolerance"`
	// ConnectionDepth limits how many connection hops LoadMap follows.
	// Zero follows the whole graph.
	ConnectionDepth int `yaml:"connection_depth"`
	// MaxShaderPasses bounds the number of intermediate render targets.
	MaxShaderPasses int `yaml:"max_shader_passes"`

	Log     LogConfig     `yaml:"log"`
	Cache   CacheConfig   `yaml:"cache"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig selects log level, format and destination.
type LogConfig struct {
	Level      string `yaml:"level"`  // logrus level name
	Format     string `yaml:"format"` // "text" or "json"
	File       string `yaml:"file"`   // empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// CacheConfig sizes the texture cache.
type CacheConfig struct {
	TextureMaxCost  int64 `yaml:"texture_max_cost"`
	TextureCounters int64 `yaml:"texture_counters"`
}

// MetricsConfig controls the prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         16,
		CullMarginTiles:   1,
		DefaultTileWidth:  16,
		DefaultTileHeight: 16,
		MaxShaderPasses:   8,
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Cache: CacheConfig{
			TextureMaxCost:  256,
			TextureCounters: 2560,
		},
		Metrics: MetricsConfig{
			Namespace: "meadow",
		},
	}
}

// ParseConfig decodes YAML configuration and fills unset fields from
// DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("meadow: parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("meadow: read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("meadow: chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.CullMarginTiles < 0 {
		return fmt.Errorf("meadow: cull_margin_tiles must not be negative, got %d", c.CullMarginTiles)
	}
	if c.PositionTolerance < 0 {
		return fmt.Errorf("meadow: position_tolerance must not be negative, got %d", c.PositionTolerance)
	}
	if c.ConnectionDepth < 0 {
		return fmt.Errorf("meadow: connection_depth must not be negative, got %d", c.ConnectionDepth)
	}
	if c.MaxShaderPasses <= 0 {
		return fmt.Errorf("meadow: max_shader_passes must be positive, got %d", c.MaxShaderPasses)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("meadow: log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.CullMarginTiles == 0 {
		c.CullMarginTiles = d.CullMarginTiles
	}
	if c.DefaultTileWidth == 0 {
		c.DefaultTileWidth = d.DefaultTileWidth
	}
	if c.DefaultTileHeight == 0 {
		c.DefaultTileHeight = d.DefaultTileHeight
	}
	if c.MaxShaderPasses == 0 {
		c.MaxShaderPasses = d.MaxShaderPasses
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
	if c.Cache.TextureMaxCost == 0 {
		c.Cache.TextureMaxCost = d.Cache.TextureMaxCost
	}
	if c.Cache.TextureCounters == 0 {
		c.Cache.TextureCounters = d.Cache.TextureCounters
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
}
