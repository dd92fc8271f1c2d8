// Command glyphdemo rasterizes a line of text through the glyph rasterizer
// for a number of frames and optionally writes the atlas pages as PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glyphraster"
	"github.com/gogpu/glyphraster/font"
	"github.com/gogpu/glyphraster/texcache"
)

func main() {
	var (
		configPath = flag.String("config", "glyphraster.yaml", "configuration file")
		fontPath   = flag.String("font", "", "font file (default: Go Regular)")
		text       = flag.String("text", "The quick brown fox jumps over the lazy dog", "text to rasterize")
		size       = flag.Float64("size", 24, "font size in pixels")
		frames     = flag.Int("frames", 3, "frames to run")
		engineName = flag.String("engine", "", "engine backend (overrides config)")
		mode       = flag.String("mode", "alpha", "render mode: alpha, mono or subpixel")
		outDir     = flag.String("out", "", "directory for atlas PNGs")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	glyphraster.SetLogger(logger)

	cfg, err := glyphraster.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *engineName != "" {
		cfg.Engine = *engineName
	}

	pool := glyphraster.NewThreadPool(cfg.Workers)
	defer pool.Close()

	r, err := glyphraster.NewGlyphRasterizer(pool, glyphraster.WithConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to create rasterizer: %v", err)
	}

	const fontKey font.FontKey = 1
	var template font.FontTemplate = font.RawFont{Data: goregular.TTF}
	if *fontPath != "" {
		template = font.NativeFont{Handle: font.NativeFontHandle{Path: *fontPath}}
	}
	if err := r.AddFont(fontKey, template); err != nil {
		log.Fatalf("Failed to add font: %v", err)
	}

	fi := font.NewFontInstance(fontKey, font.FontSizeFromPx(float32(*size)))
	switch *mode {
	case "alpha":
		fi.RenderMode = font.RenderModeAlpha
	case "mono":
		fi.RenderMode = font.RenderModeMono
	case "subpixel":
		fi.RenderMode = font.RenderModeSubpixel
	default:
		log.Fatalf("Unknown render mode %q", *mode)
	}
	r.PrepareFont(&fi)

	keys := layout(r, &fi, norm.NFC.String(*text))

	cache := glyphraster.NewGlyphCache(cfg.GlyphCache)
	textures := texcache.New(texcache.NullDeviceHandle{}, cfg.TextureCache)
	gpuCache := glyphraster.NewGpuCache()
	var counters glyphraster.ProfileCounters

	ctx := context.Background()
	for frame := 0; frame < *frames; frame++ {
		cache.BeginFrame()
		r.RequestGlyphs(cache, &fi, keys, textures)
		if err := r.ResolveGlyphs(ctx, cache, textures, gpuCache, &counters); err != nil {
			logger.Warn("resolve failed", "frame", frame, "err", err)
		}
		glyphraster.ReleaseEvicted(cache.Maintain(), textures, gpuCache)

		logger.Info("frame", "n", frame, "counters", &counters, "dirty_pages", len(textures.DirtyPages()))
		textures.MarkClean(textures.DirtyPages()...)
		gpuCache.MarkClean()
		counters.Reset()
	}

	stats := textures.Stats()
	logger.Info("atlas", "pages", stats.Pages, "glyphs", stats.LiveGlyphs, "cached", cache.Len())

	if *outDir != "" {
		if err := writePages(textures, *outDir); err != nil {
			log.Fatalf("Failed to write atlas: %v", err)
		}
	}
}

// layout maps text to glyph keys, advancing a pen so subpixel offsets vary
// the way they do in real text.
func layout(r *glyphraster.GlyphRasterizer, fi *font.FontInstance, text string) []font.GlyphKey {
	var keys []font.GlyphKey
	var pen float32
	dir := font.SubpixelDirNone
	if fi.UseSubpixelPosition() {
		dir = fi.SubpixelDir
	}
	for _, ch := range text {
		idx, ok := r.GlyphIndex(fi.FontKey, ch)
		if !ok {
			glyphraster.Logger().Debug("no glyph", "rune", string(ch))
			continue
		}
		key := font.NewGlyphKey(font.GlyphIndex(idx), pen, 0, dir)
		keys = append(keys, key)
		if dims, ok := r.GlyphDimensions(fi, key); ok {
			pen += dims.Advance
		}
	}
	return keys
}

func writePages(textures *texcache.TextureCache, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; i < textures.NumPages(); i++ {
		p := textures.Page(i)
		if p == nil || p.Live() == 0 {
			continue
		}
		rect := image.Rect(0, 0, p.Width, p.Height)
		var img image.Image
		kind := "rgba"
		if p.Format == gputypes.TextureFormatR8Unorm {
			img = &image.Gray{Pix: p.Pix, Stride: p.Stride, Rect: rect}
			kind = "r8"
		} else {
			img = &image.NRGBA{Pix: p.Pix, Stride: p.Stride, Rect: rect}
		}

		name := filepath.Join(dir, fmt.Sprintf("atlas-%d-%s.png", i, kind))
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("Atlas page saved to %s (%dx%d)\n", name, p.Width, p.Height)
	}
	return nil
}
