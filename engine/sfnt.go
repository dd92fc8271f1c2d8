package engine

import (
	"fmt"
	"math"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/glyphraster/font"
)

// SFNTContext is a font engine context backed by golang.org/x/image/font/sfnt.
// It supports TrueType and CFF outlines and font collections. Variation
// axes and embedded bitmaps are not supported and are ignored.
type SFNTContext struct {
	fonts   map[font.FontKey]*sfnt.Font
	buf     sfnt.Buffer
	outline outline
	raster  maskRasterizer
}

// NewSFNTContext creates an empty context.
func NewSFNTContext() (*SFNTContext, error) {
	return &SFNTContext{fonts: make(map[font.FontKey]*sfnt.Font)}, nil
}

// AddRawFont parses data and registers face index under key. Adding a key
// that is already present is a no-op.
func (c *SFNTContext) AddRawFont(key font.FontKey, data []byte, index uint32) error {
	if _, ok := c.fonts[key]; ok {
		return nil
	}
	if len(data) == 0 {
		return ErrEmptyFontData
	}

	// ParseCollection accepts single-face files as a collection of one.
	coll, err := sfnt.ParseCollection(data)
	if err != nil {
		return fmt.Errorf("engine: parse font %d: %w", key, err)
	}
	if int(index) >= coll.NumFonts() {
		return &FaceIndexError{Key: key, Index: index, Count: coll.NumFonts()}
	}
	f, err := coll.Font(int(index))
	if err != nil {
		return fmt.Errorf("engine: parse font %d face %d: %w", key, index, err)
	}
	c.fonts[key] = f
	return nil
}

// AddNativeFont loads the file handle points to and registers it under key.
func (c *SFNTContext) AddNativeFont(key font.FontKey, handle font.NativeFontHandle) error {
	if _, ok := c.fonts[key]; ok {
		return nil
	}
	data, err := LoadNative(handle)
	if err != nil {
		return err
	}
	return c.AddRawFont(key, data, handle.Index)
}

// DeleteFont forgets key. Deleting an unknown key is a no-op.
func (c *SFNTContext) DeleteFont(key font.FontKey) {
	delete(c.fonts, key)
}

// HasFont reports whether key is registered.
func (c *SFNTContext) HasFont(key font.FontKey) bool {
	_, ok := c.fonts[key]
	return ok
}

// GlyphIndex maps a character to a glyph. ok is false when the font has no
// glyph for ch.
func (c *SFNTContext) GlyphIndex(key font.FontKey, ch rune) (uint32, bool) {
	f, ok := c.fonts[key]
	if !ok {
		return 0, false
	}
	idx, err := f.GlyphIndex(&c.buf, ch)
	if err != nil || idx == 0 {
		return 0, false
	}
	return uint32(idx), true
}

// Rasterize renders one glyph.
func (c *SFNTContext) Rasterize(fi *font.FontInstance, key font.GlyphKey) font.GlyphRasterResult {
	if _, _, err := c.loadOutline(fi, key.Index); err != nil {
		return font.LoadFailed(err)
	}
	return c.raster.rasterize(&c.outline, fi, key)
}

// GlyphDimensions returns the bitmap placement and advance of a glyph
// without rasterizing it. ok is false when the glyph does not exist.
func (c *SFNTContext) GlyphDimensions(fi *font.FontInstance, key font.GlyphKey) (font.GlyphDimensions, bool) {
	f, ppem, err := c.loadOutline(fi, key.Index)
	if err != nil {
		return font.GlyphDimensions{}, false
	}

	hinting := xfont.HintingFull
	if fi.Flags.Has(font.FlagNoHinting) || !glyphTransform(fi).IsIdentity() {
		hinting = xfont.HintingNone
	}
	adv, err := f.GlyphAdvance(&c.buf, sfnt.GlyphIndex(key.Index), ppem, hinting)
	if err != nil {
		return font.GlyphDimensions{}, false
	}
	return dimensions(&c.outline, fi, key, float32(adv)/64), true
}

// loadOutline fills c.outline with glyph index at the instance size.
func (c *SFNTContext) loadOutline(fi *font.FontInstance, index font.GlyphIndex) (*sfnt.Font, fixed.Int26_6, error) {
	f, ok := c.fonts[fi.FontKey]
	if !ok {
		return nil, 0, ErrFontNotFound
	}
	if index > math.MaxUint16 || int(index) >= f.NumGlyphs() {
		return nil, 0, ErrGlyphNotFound
	}

	ppem := fixed.Int26_6(math.Round(float64(fi.Size.Px()) * 64))
	segs, err := f.LoadGlyph(&c.buf, sfnt.GlyphIndex(index), ppem, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("engine: load glyph %d: %w", index, err)
	}

	c.outline.reset()
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			c.outline.add(opMoveTo, fixedPoint(s.Args[0]))
		case sfnt.SegmentOpLineTo:
			c.outline.add(opLineTo, fixedPoint(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			c.outline.add(opQuadTo, fixedPoint(s.Args[0]), fixedPoint(s.Args[1]))
		case sfnt.SegmentOpCubeTo:
			c.outline.add(opCubeTo, fixedPoint(s.Args[0]), fixedPoint(s.Args[1]), fixedPoint(s.Args[2]))
		}
	}
	return f, ppem, nil
}

func fixedPoint(p fixed.Point26_6) point {
	return point{X: float32(p.X) / 64, Y: float32(p.Y) / 64}
}
