// Package glyphraster rasterizes font glyphs in parallel for a frame-based
// renderer.
//
// # Overview
//
// A renderer discovers the glyphs it needs while building a frame. It asks
// the GlyphRasterizer for them with RequestGlyphs, which skips glyphs that
// are already cached or in flight and hands the rest to a worker pool. At
// the end of the frame ResolveGlyphs waits for the workers, packs the
// bitmaps into a texture atlas and records the results in a GlyphCache.
//
// # Quick Start
//
//	pool := glyphraster.NewThreadPool(0)
//	defer pool.Close()
//
//	r, err := glyphraster.NewGlyphRasterizer(pool)
//	if err != nil {
//	    return err
//	}
//	if err := r.AddFont(1, font.RawFont{Data: goregular.TTF}); err != nil {
//	    return err
//	}
//
//	cache := glyphraster.NewGlyphCache(glyphraster.GlyphCacheConfig{})
//	textures := texcache.New(texcache.NullDeviceHandle{}, texcache.DefaultConfig())
//	gpu := glyphraster.NewGpuCache()
//
//	fi := font.NewFontInstance(1, font.FontSizeFromPx(16))
//	r.PrepareFont(&fi)
//
//	cache.BeginFrame()
//	r.RequestGlyphs(cache, &fi, keys, textures)
//	err = r.ResolveGlyphs(ctx, cache, textures, gpu, nil)
//
// # Font contexts
//
// Font engines keep mutable state, so every worker owns one engine context
// and one more is shared by callers outside the pool (FontContextPool).
// Fonts are added to all contexts. Deleting a font is deferred until after
// the next ResolveGlyphs and then runs as one background job.
//
// # Engines
//
// Engines are registered by name. "sfnt" uses golang.org/x/image/font/sfnt;
// "gotext" uses github.com/go-text/typesetting and adds variable fonts and
// embedded color bitmaps. See RegisterEngine to plug in another one.
package glyphraster
