package glyphraster

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/glyphraster/texcache"
)

// Config holds the tunables of a GlyphRasterizer and the caches a frame
// driver builds around it. The zero value of every field means "default".
type Config struct {
	// Engine is the registered engine backend name. Default: "sfnt".
	Engine string `yaml:"engine"`

	// Workers is the worker pool size. 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`

	// ResolveTimeout bounds how long ResolveGlyphs waits for outstanding
	// batches. 0 waits until every batch reports back.
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`

	GlyphCache   GlyphCacheConfig `yaml:"glyph_cache"`
	TextureCache texcache.Config  `yaml:"texture_cache"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Engine:       DefaultEngine,
		GlyphCache:   DefaultGlyphCacheConfig(),
		TextureCache: texcache.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.ResolveTimeout < 0 {
		c.ResolveTimeout = 0
	}
	c.GlyphCache = c.GlyphCache.withDefaults()
	return c
}

// LoadConfig reads a YAML configuration file. A missing file yields
// DefaultConfig; fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("glyphraster: read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("glyphraster: parse config %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}
