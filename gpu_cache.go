package glyphraster

import (
	"slices"

	"github.com/gogpu/glyphraster/font"
)

// GpuGlyphCacheKey identifies a glyph's block in the GPU-visible cache.
// Keys are issued by GlyphRasterizer, increase monotonically and are never
// reused. The zero key is never issued.
type GpuGlyphCacheKey uint32

// GlyphBlock is the per-glyph data shaders read: where the glyph lives in
// the atlas and how to place it.
type GlyphBlock struct {
	// UV is the atlas rectangle as u0, v0, u1, v1 in [0, 1].
	UV [4]float32
	// Offset is the bitmap origin relative to the pen (left, top).
	Offset [2]float32
	// Size is the bitmap size in pixels.
	Size   [2]float32
	Scale  float32
	Page   int
	Format font.GlyphFormat
}

// GpuCache holds the GlyphBlocks the renderer uploads to the GPU. It only
// tracks which blocks changed; the upload itself belongs to the renderer.
//
// GpuCache is owned by the frame goroutine and is not safe for concurrent use.
type GpuCache struct {
	blocks map[GpuGlyphCacheKey]GlyphBlock
	dirty  map[GpuGlyphCacheKey]struct{}
}

// NewGpuCache creates an empty GPU cache.
func NewGpuCache() *GpuCache {
	return &GpuCache{
		blocks: make(map[GpuGlyphCacheKey]GlyphBlock),
		dirty:  make(map[GpuGlyphCacheKey]struct{}),
	}
}

// Set stores b under key and marks it dirty.
func (c *GpuCache) Set(key GpuGlyphCacheKey, b GlyphBlock) {
	c.blocks[key] = b
	c.dirty[key] = struct{}{}
}

// Get returns the block stored under key.
func (c *GpuCache) Get(key GpuGlyphCacheKey) (GlyphBlock, bool) {
	b, ok := c.blocks[key]
	return b, ok
}

// Free removes key.
func (c *GpuCache) Free(key GpuGlyphCacheKey) {
	delete(c.blocks, key)
	delete(c.dirty, key)
}

// Len returns the number of live blocks.
func (c *GpuCache) Len() int {
	return len(c.blocks)
}

// DirtyKeys returns the keys written since the last MarkClean, ascending.
func (c *GpuCache) DirtyKeys() []GpuGlyphCacheKey {
	keys := make([]GpuGlyphCacheKey, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MarkClean forgets all dirty keys.
func (c *GpuCache) MarkClean() {
	clear(c.dirty)
}
