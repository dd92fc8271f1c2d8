package glyphraster

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glyphraster.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
engine: gotext
workers: 3
resolve_timeout: 50ms
glyph_cache:
  max_entries: 100
texture_cache:
  page_size: 512
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Engine != "gotext" || cfg.Workers != 3 {
		t.Errorf("Engine, Workers = %q, %d", cfg.Engine, cfg.Workers)
	}
	if cfg.ResolveTimeout != 50*time.Millisecond {
		t.Errorf("ResolveTimeout = %v, want 50ms", cfg.ResolveTimeout)
	}
	if cfg.GlyphCache.MaxEntries != 100 {
		t.Errorf("GlyphCache.MaxEntries = %d", cfg.GlyphCache.MaxEntries)
	}
	if cfg.GlyphCache.FrameLifetime != DefaultGlyphCacheConfig().FrameLifetime {
		t.Errorf("GlyphCache.FrameLifetime = %d, want default", cfg.GlyphCache.FrameLifetime)
	}
	if cfg.TextureCache.PageSize != 512 {
		t.Errorf("TextureCache.PageSize = %d", cfg.TextureCache.PageSize)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "engine: [unterminated"},
		{"bad duration", "resolve_timeout: soon"},
		{"wrong type", "workers: many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("LoadConfig() error = nil")
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Workers: -2, ResolveTimeout: -time.Second}.withDefaults()
	if cfg.Engine != DefaultEngine || cfg.Workers != 0 || cfg.ResolveTimeout != 0 {
		t.Errorf("withDefaults() = %+v", cfg)
	}
	if cfg.GlyphCache != DefaultGlyphCacheConfig() {
		t.Errorf("GlyphCache = %+v", cfg.GlyphCache)
	}
}
