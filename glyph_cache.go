package glyphraster

import (
	"sort"

	"github.com/gogpu/glyphraster/font"
	"github.com/gogpu/glyphraster/texcache"
)

// GlyphCacheConfig holds configuration for GlyphCache.
type GlyphCacheConfig struct {
	// MaxEntries is the maximum number of resolved glyphs kept.
	// Default: 4096
	MaxEntries int `yaml:"max_entries"`

	// FrameLifetime is the number of frames an entry can be unused
	// before being eligible for eviction during Maintain().
	// Default: 64
	FrameLifetime uint64 `yaml:"frame_lifetime"`
}

// DefaultGlyphCacheConfig returns the default cache configuration.
func DefaultGlyphCacheConfig() GlyphCacheConfig {
	return GlyphCacheConfig{
		MaxEntries:    4096,
		FrameLifetime: 64,
	}
}

func (c GlyphCacheConfig) withDefaults() GlyphCacheConfig {
	d := DefaultGlyphCacheConfig()
	if c.MaxEntries <= 0 {
		c.MaxEntries = d.MaxEntries
	}
	if c.FrameLifetime == 0 {
		c.FrameLifetime = d.FrameLifetime
	}
	return c
}

// GlyphCacheEntryState is the lifecycle state of a cached glyph.
type GlyphCacheEntryState uint8

const (
	// EntryPending marks a glyph that has been requested and not yet resolved.
	EntryPending GlyphCacheEntryState = iota
	// EntryCached is a glyph with pixels in the texture cache.
	EntryCached
	// EntryBlank is a glyph that rasterized to nothing (e.g. a space).
	EntryBlank
)

// String returns the string representation of the state.
func (s GlyphCacheEntryState) String() string {
	switch s {
	case EntryPending:
		return "Pending"
	case EntryCached:
		return "Cached"
	case EntryBlank:
		return "Blank"
	default:
		return "Unknown"
	}
}

// GlyphCacheEntry is what the cache knows about one glyph of one font instance.
type GlyphCacheEntry struct {
	State   GlyphCacheEntryState
	Texture texcache.Handle
	Format  font.GlyphFormat
	GpuKey  GpuGlyphCacheKey
	Left    float32
	Top     float32
	Scale   float32
	Width   int32
	Height  int32
}

// EvictedGlyph is an entry removed by Maintain or ClearFonts. The caller
// releases its texture and GPU cache slots.
type EvictedGlyph struct {
	Font  font.FontInstanceKey
	Key   font.GlyphKey
	Entry GlyphCacheEntry
}

// GlyphCacheStats holds cache statistics.
type GlyphCacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type glyphEntry struct {
	GlyphCacheEntry
	lastUsed uint64
}

// GlyphCache maps (font instance, glyph key) to resolved glyphs.
//
// Pending entries are how the rasterizer de-duplicates requests: a glyph
// with an entry of any state is never requested again until that entry is
// removed. Pending entries are never evicted.
//
// GlyphCache is owned by the frame goroutine and is not safe for concurrent use.
type GlyphCache struct {
	config GlyphCacheConfig
	fonts  map[font.FontInstanceKey]map[font.GlyphKey]*glyphEntry
	count  int
	frame  uint64
	stats  GlyphCacheStats
}

// NewGlyphCache creates a glyph cache. Zero config fields use defaults.
func NewGlyphCache(config GlyphCacheConfig) *GlyphCache {
	return &GlyphCache{
		config: config.withDefaults(),
		fonts:  make(map[font.FontInstanceKey]map[font.GlyphKey]*glyphEntry),
	}
}

// BeginFrame advances the frame counter used for eviction.
func (c *GlyphCache) BeginFrame() {
	c.frame++
}

// Frame returns the current frame number.
func (c *GlyphCache) Frame() uint64 {
	return c.frame
}

// Get returns the entry for key and marks it used in the current frame.
func (c *GlyphCache) Get(fi font.FontInstanceKey, key font.GlyphKey) (GlyphCacheEntry, bool) {
	e := c.lookup(fi, key)
	if e == nil {
		c.stats.Misses++
		return GlyphCacheEntry{}, false
	}
	c.stats.Hits++
	e.lastUsed = c.frame
	return e.GlyphCacheEntry, true
}

func (c *GlyphCache) lookup(fi font.FontInstanceKey, key font.GlyphKey) *glyphEntry {
	glyphs := c.fonts[fi]
	if glyphs == nil {
		return nil
	}
	return glyphs[key]
}

// Insert adds or replaces the entry for key.
func (c *GlyphCache) Insert(fi font.FontInstanceKey, key font.GlyphKey, entry GlyphCacheEntry) {
	glyphs := c.fonts[fi]
	if glyphs == nil {
		glyphs = make(map[font.GlyphKey]*glyphEntry)
		c.fonts[fi] = glyphs
	}
	if e, ok := glyphs[key]; ok {
		e.GlyphCacheEntry = entry
		e.lastUsed = c.frame
		return
	}
	glyphs[key] = &glyphEntry{GlyphCacheEntry: entry, lastUsed: c.frame}
	c.count++
}

// Remove deletes the entry for key and reports whether it existed.
func (c *GlyphCache) Remove(fi font.FontInstanceKey, key font.GlyphKey) bool {
	glyphs := c.fonts[fi]
	if _, ok := glyphs[key]; !ok {
		return false
	}
	delete(glyphs, key)
	if len(glyphs) == 0 {
		delete(c.fonts, fi)
	}
	c.count--
	return true
}

// Len returns the number of entries, pending ones included.
func (c *GlyphCache) Len() int {
	return c.count
}

// ClearFonts removes every entry of the font instances pred selects,
// typically after the font was deleted.
func (c *GlyphCache) ClearFonts(pred func(font.FontInstanceKey) bool) []EvictedGlyph {
	var evicted []EvictedGlyph
	for fi, glyphs := range c.fonts {
		if !pred(fi) {
			continue
		}
		for key, e := range glyphs {
			evicted = append(evicted, EvictedGlyph{Font: fi, Key: key, Entry: e.GlyphCacheEntry})
		}
		c.count -= len(glyphs)
		delete(c.fonts, fi)
	}
	c.stats.Evictions += uint64(len(evicted))
	return evicted
}

// Maintain evicts resolved entries unused for FrameLifetime frames, then
// the least recently used ones while more than MaxEntries remain.
func (c *GlyphCache) Maintain() []EvictedGlyph {
	var evicted []EvictedGlyph
	var survivors []EvictedGlyph

	for fi, glyphs := range c.fonts {
		for key, e := range glyphs {
			if e.State == EntryPending {
				continue
			}
			if c.frame-e.lastUsed > c.config.FrameLifetime {
				evicted = append(evicted, EvictedGlyph{Font: fi, Key: key, Entry: e.GlyphCacheEntry})
				continue
			}
			survivors = append(survivors, EvictedGlyph{Font: fi, Key: key, Entry: e.GlyphCacheEntry})
		}
	}
	for _, ev := range evicted {
		c.Remove(ev.Font, ev.Key)
	}

	if excess := c.count - c.config.MaxEntries; excess > 0 && len(survivors) > 0 {
		used := func(ev EvictedGlyph) uint64 { return c.lookup(ev.Font, ev.Key).lastUsed }
		sort.Slice(survivors, func(i, j int) bool {
			ui, uj := used(survivors[i]), used(survivors[j])
			if ui != uj {
				return ui < uj
			}
			if d := survivors[i].Font.Compare(survivors[j].Font); d != 0 {
				return d < 0
			}
			return survivors[i].Key.Compare(survivors[j].Key) < 0
		})
		excess = min(excess, len(survivors))
		for _, ev := range survivors[:excess] {
			c.Remove(ev.Font, ev.Key)
			evicted = append(evicted, ev)
		}
	}

	c.stats.Evictions += uint64(len(evicted))
	return evicted
}

// Stats returns a copy of the cache statistics.
func (c *GlyphCache) Stats() GlyphCacheStats {
	return c.stats
}
