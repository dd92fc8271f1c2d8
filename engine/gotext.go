package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // embedded JPG strikes
	_ "image/png"  // embedded PNG strikes (color emoji)

	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"

	"github.com/gogpu/glyphraster/font"
)

// GoTextContext is a font engine context backed by go-text/typesetting.
// Unlike SFNTContext it applies variation axes and can return embedded
// bitmap glyphs.
type GoTextContext struct {
	faces   map[font.FontKey]*gtfont.Face
	outline outline
	raster  maskRasterizer
	// vars is the variation set currently applied to each face.
	vars map[font.FontKey]string
}

// NewGoTextContext creates an empty context.
func NewGoTextContext() (*GoTextContext, error) {
	return &GoTextContext{
		faces: make(map[font.FontKey]*gtfont.Face),
		vars:  make(map[font.FontKey]string),
	}, nil
}

// AddRawFont parses data and registers face index under key. Adding a key
// that is already present is a no-op.
func (c *GoTextContext) AddRawFont(key font.FontKey, data []byte, index uint32) error {
	if _, ok := c.faces[key]; ok {
		return nil
	}
	if len(data) == 0 {
		return ErrEmptyFontData
	}

	if index == 0 {
		face, err := gtfont.ParseTTF(bytes.NewReader(data))
		if err == nil {
			c.faces[key] = face
			return nil
		}
	}

	faces, err := gtfont.ParseTTC(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("engine: parse font %d: %w", key, err)
	}
	if int(index) >= len(faces) {
		return &FaceIndexError{Key: key, Index: index, Count: len(faces)}
	}
	c.faces[key] = faces[index]
	return nil
}

// AddNativeFont loads the file handle points to and registers it under key.
func (c *GoTextContext) AddNativeFont(key font.FontKey, handle font.NativeFontHandle) error {
	if _, ok := c.faces[key]; ok {
		return nil
	}
	data, err := LoadNative(handle)
	if err != nil {
		return err
	}
	return c.AddRawFont(key, data, handle.Index)
}

// DeleteFont forgets key. Deleting an unknown key is a no-op.
func (c *GoTextContext) DeleteFont(key font.FontKey) {
	delete(c.faces, key)
	delete(c.vars, key)
}

// HasFont reports whether key is registered.
func (c *GoTextContext) HasFont(key font.FontKey) bool {
	_, ok := c.faces[key]
	return ok
}

// GlyphIndex maps a character to a glyph through the font's cmap.
func (c *GoTextContext) GlyphIndex(key font.FontKey, ch rune) (uint32, bool) {
	face, ok := c.faces[key]
	if !ok {
		return 0, false
	}
	gid, ok := face.NominalGlyph(ch)
	if !ok || gid == 0 {
		return 0, false
	}
	return uint32(gid), true
}

// Rasterize renders one glyph.
func (c *GoTextContext) Rasterize(fi *font.FontInstance, key font.GlyphKey) font.GlyphRasterResult {
	face, ok := c.faces[fi.FontKey]
	if !ok {
		return font.LoadFailed(ErrFontNotFound)
	}
	c.applyVariations(fi, face)

	gid := gtfont.GID(key.Index)
	switch data := glyphData(face, gid).(type) {
	case gtfont.GlyphOutline:
		c.loadOutline(face, fi, data)
		return c.raster.rasterize(&c.outline, fi, key)
	case gtfont.GlyphBitmap:
		if fi.Flags.Has(font.FlagEmbeddedBitmaps) {
			return c.bitmap(face, fi, gid, data)
		}
		if data.Outline != nil {
			c.loadOutline(face, fi, *data.Outline)
			return c.raster.rasterize(&c.outline, fi, key)
		}
		return font.LoadFailed(ErrUnsupportedGlyph)
	case nil:
		return font.LoadFailed(ErrGlyphNotFound)
	default:
		return font.LoadFailed(ErrUnsupportedGlyph)
	}
}

// GlyphDimensions returns the bitmap placement and advance of an outline
// glyph without rasterizing it.
func (c *GoTextContext) GlyphDimensions(fi *font.FontInstance, key font.GlyphKey) (font.GlyphDimensions, bool) {
	face, ok := c.faces[fi.FontKey]
	if !ok {
		return font.GlyphDimensions{}, false
	}
	c.applyVariations(fi, face)

	gid := gtfont.GID(key.Index)
	var ol gtfont.GlyphOutline
	switch data := glyphData(face, gid).(type) {
	case gtfont.GlyphOutline:
		ol = data
	case gtfont.GlyphBitmap:
		if data.Outline == nil {
			return font.GlyphDimensions{}, false
		}
		ol = *data.Outline
	default:
		return font.GlyphDimensions{}, false
	}

	c.loadOutline(face, fi, ol)
	adv := face.HorizontalAdvance(gid) * unitScale(face, fi)
	return dimensions(&c.outline, fi, key, adv), true
}

// glyphData looks up gid, treating a malformed glyph table entry as a
// missing glyph.
func glyphData(face *gtfont.Face, gid gtfont.GID) (data gtfont.GlyphData) {
	defer func() {
		if recover() != nil {
			data = nil
		}
	}()
	return face.GlyphData(gid)
}

// applyVariations sets the face coordinates when the instance asks for a
// different variation set than the last glyph did.
func (c *GoTextContext) applyVariations(fi *font.FontInstance, face *gtfont.Face) {
	sig := variationSignature(fi.Variations)
	if c.vars[fi.FontKey] == sig {
		return
	}
	vars := make([]gtfont.Variation, 0, len(fi.Variations))
	for _, v := range fi.Variations {
		vars = append(vars, gtfont.Variation{Tag: opentype.Tag(v.Tag), Value: v.Value})
	}
	face.SetVariations(vars)
	c.vars[fi.FontKey] = sig
}

func variationSignature(vars []font.FontVariation) string {
	if len(vars) == 0 {
		return ""
	}
	return fmt.Sprint(vars)
}

func unitScale(face *gtfont.Face, fi *font.FontInstance) float32 {
	upem := face.Upem()
	if upem == 0 {
		return 0
	}
	return fi.Size.Px() / float32(upem)
}

// loadOutline converts a Y-up font unit outline into c.outline.
func (c *GoTextContext) loadOutline(face *gtfont.Face, fi *font.FontInstance, ol gtfont.GlyphOutline) {
	scale := unitScale(face, fi)
	pt := func(x, y float32) point {
		return point{X: x * scale, Y: -y * scale}
	}

	c.outline.reset()
	for _, s := range ol.Segments {
		switch s.Op {
		case opentype.SegmentOpMoveTo:
			c.outline.add(opMoveTo, pt(s.Args[0].X, s.Args[0].Y))
		case opentype.SegmentOpLineTo:
			c.outline.add(opLineTo, pt(s.Args[0].X, s.Args[0].Y))
		case opentype.SegmentOpQuadTo:
			c.outline.add(opQuadTo, pt(s.Args[0].X, s.Args[0].Y), pt(s.Args[1].X, s.Args[1].Y))
		case opentype.SegmentOpCubeTo:
			c.outline.add(opCubeTo, pt(s.Args[0].X, s.Args[0].Y), pt(s.Args[1].X, s.Args[1].Y),
				pt(s.Args[2].X, s.Args[2].Y))
		}
	}
}

// bitmap decodes an embedded strike into a premultiplied RGBA glyph. The
// strike is not resampled; Scale tells the renderer how to stretch it to
// the requested size.
func (c *GoTextContext) bitmap(face *gtfont.Face, fi *font.FontInstance, gid gtfont.GID, data gtfont.GlyphBitmap) font.GlyphRasterResult {
	switch data.Format {
	case gtfont.PNG, gtfont.JPG:
	default:
		return font.LoadFailed(ErrUnsupportedGlyph)
	}

	img, _, err := image.Decode(bytes.NewReader(data.Data))
	if err != nil {
		return font.LoadFailed(fmt.Errorf("engine: decode bitmap glyph %d: %w", gid, err))
	}
	b := img.Bounds()
	if b.Empty() {
		return font.Bitmap(font.RasterizedGlyph{Scale: 1, Format: font.FormatBitmap})
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	scale := float32(1)
	var left, top float32
	if ext, ok := face.GlyphExtents(gid); ok && ext.Height != 0 {
		units := unitScale(face, fi)
		// Extents are Y-up; Height is negative for glyphs above the baseline.
		scale = -ext.Height * units / float32(b.Dy())
		if scale < 0 {
			scale = -scale
		}
		left = ext.XBearing * units
		top = -ext.YBearing * units
	}

	format := font.FormatColorBitmap
	if fi.RenderMode == font.RenderModeMono {
		format = format.IgnoreColor()
	}
	return font.Bitmap(font.RasterizedGlyph{
		Left:   left,
		Top:    top,
		Width:  int32(b.Dx()),
		Height: int32(b.Dy()),
		Scale:  scale,
		Format: format,
		Bytes:  rgba.Pix,
	})
}
