package engine

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/gogpu/glyphraster/font"
)

// maxGlyphSide bounds the bitmap of a single glyph. Larger requests are
// almost always a broken transform and would exhaust memory.
const maxGlyphSide = 4096

// subpixelOversample is the horizontal oversampling used for LCD coverage.
const subpixelOversample = 3

// maskRasterizer turns outlines into coverage bitmaps. It wraps
// vector.Rasterizer, which expects coordinates in the positive quadrant, so
// outlines are shifted by their integer bounds before drawing.
type maskRasterizer struct {
	rasterizer vector.Rasterizer
	gammaLUTs  map[uint16]*[256]byte
}

// placement is where a rasterized outline lands relative to the pen.
type placement struct {
	left, top     int
	width, height int
	// transformed reports whether a non-identity matrix was applied.
	transformed bool
}

// place transforms o for fi and key and computes the bitmap placement.
// ok is false when the glyph has no visible pixels.
func place(o *outline, fi *font.FontInstance, key font.GlyphKey) (placement, bool) {
	t := glyphTransform(fi)
	o.transform(t, key.Subpixel.X.Px(), key.Subpixel.Y.Px())

	pl := placement{transformed: !t.IsIdentity()}
	x0, y0, x1, y1, ok := o.pixelBounds()
	if !ok {
		return pl, false
	}
	pl.left, pl.top = x0, y0
	pl.width, pl.height = x1-x0, y1-y0
	if fi.Flags.Has(font.FlagSyntheticBold) {
		pl.width++
	}
	return pl, true
}

// dimensions returns the placement of o without drawing it.
func dimensions(o *outline, fi *font.FontInstance, key font.GlyphKey, advance float32) font.GlyphDimensions {
	pl, ok := place(o, fi, key)
	dims := font.GlyphDimensions{Advance: advance}
	if !ok {
		return dims
	}
	if fi.Flags.Has(font.FlagSyntheticBold) {
		dims.Advance++
	}
	dims.Left = int32(pl.left)
	dims.Top = int32(pl.top)
	dims.Width = int32(pl.width)
	dims.Height = int32(pl.height)
	return dims
}

// rasterize draws o for fi and key. An outline with no visible pixels
// yields an empty (blank) glyph rather than a failure.
func (r *maskRasterizer) rasterize(o *outline, fi *font.FontInstance, key font.GlyphKey) font.GlyphRasterResult {
	pl, ok := place(o, fi, key)
	if !ok {
		return font.Bitmap(font.RasterizedGlyph{Scale: 1, Format: alphaFormat(fi, false)})
	}
	if pl.width > maxGlyphSide || pl.height > maxGlyphSide {
		return font.LoadFailed(ErrUnsupportedGlyph)
	}

	bold := fi.Flags.Has(font.FlagSyntheticBold)
	baseWidth := pl.width
	if bold {
		baseWidth--
	}

	subpixel := fi.RenderMode == font.RenderModeSubpixel
	oversample := 1
	if subpixel {
		oversample = subpixelOversample
	}

	mask := r.draw(o, pl.left, pl.top, baseWidth, pl.height, oversample)
	if bold {
		mask = embolden(mask, oversample)
	}

	var opts font.PlatformOptions
	if fi.PlatformOptions != nil {
		opts = *fi.PlatformOptions
	}
	if lut := r.gammaLUT(opts.Gamma); lut != nil {
		for i, c := range mask.Pix {
			mask.Pix[i] = lut[c]
		}
	}

	glyph := font.RasterizedGlyph{
		Left:   float32(pl.left),
		Top:    float32(pl.top),
		Width:  int32(pl.width),
		Height: int32(pl.height),
		Scale:  1,
		Format: alphaFormat(fi, pl.transformed),
	}

	switch fi.RenderMode {
	case font.RenderModeMono:
		glyph.Bytes = threshold(mask.Pix)
	case font.RenderModeSubpixel:
		if opts.LCDFilter != font.LCDFilterNone {
			lcdFilter(mask, opts.LCDFilter)
		}
		glyph.Bytes = foldSubpixel(mask, pl.width, pl.height)
	default:
		glyph.Bytes = mask.Pix
	}
	return font.Bitmap(glyph)
}

// draw rasterizes o into a width x height mask whose origin is (left, top)
// in outline space, scaling X by oversample.
func (r *maskRasterizer) draw(o *outline, left, top, width, height, oversample int) *image.Alpha {
	w := width * oversample
	r.rasterizer.Reset(w, height)
	r.rasterizer.DrawOp = draw.Src

	sx := float32(oversample)
	ox, oy := float32(left), float32(top)
	tr := func(p point) (float32, float32) {
		return (p.X - ox) * sx, p.Y - oy
	}

	for _, seg := range o.segments {
		switch seg.op {
		case opMoveTo:
			x, y := tr(seg.pts[0])
			r.rasterizer.MoveTo(x, y)
		case opLineTo:
			x, y := tr(seg.pts[0])
			r.rasterizer.LineTo(x, y)
		case opQuadTo:
			bx, by := tr(seg.pts[0])
			cx, cy := tr(seg.pts[1])
			r.rasterizer.QuadTo(bx, by, cx, cy)
		case opCubeTo:
			bx, by := tr(seg.pts[0])
			cx, cy := tr(seg.pts[1])
			dx, dy := tr(seg.pts[2])
			r.rasterizer.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	r.rasterizer.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, height))
	r.rasterizer.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// gammaLUT returns the coverage lookup table for gamma (in hundredths), or
// nil for linear coverage.
func (r *maskRasterizer) gammaLUT(gamma uint16) *[256]byte {
	if gamma == 0 || gamma == 100 {
		return nil
	}
	if lut, ok := r.gammaLUTs[gamma]; ok {
		return lut
	}
	if r.gammaLUTs == nil {
		r.gammaLUTs = make(map[uint16]*[256]byte)
	}
	lut := new([256]byte)
	exp := 100 / float64(gamma)
	for i := range lut {
		lut[i] = uint8(math.Round(math.Pow(float64(i)/255, exp) * 255))
	}
	r.gammaLUTs[gamma] = lut
	return lut
}

func alphaFormat(fi *font.FontInstance, transformed bool) font.GlyphFormat {
	switch {
	case fi.RenderMode == font.RenderModeSubpixel && transformed:
		return font.FormatTransformedSubpixel
	case fi.RenderMode == font.RenderModeSubpixel:
		return font.FormatSubpixel
	case transformed:
		return font.FormatTransformedAlpha
	default:
		return font.FormatAlpha
	}
}

// embolden widens mask by one output pixel, taking the maximum coverage of
// each sample and its left neighbor.
func embolden(mask *image.Alpha, oversample int) *image.Alpha {
	b := mask.Bounds()
	out := image.NewAlpha(image.Rect(0, 0, b.Dx()+oversample, b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := mask.Pix[y*mask.Stride : y*mask.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+out.Rect.Dx()]
		for x := range dst {
			var c uint8
			if x < len(src) {
				c = src[x]
			}
			if xs := x - oversample; xs >= 0 && xs < len(src) {
				c = max(c, src[xs])
			}
			dst[x] = c
		}
	}
	return out
}

func threshold(pix []byte) []byte {
	for i, c := range pix {
		if c >= 128 {
			pix[i] = 255
		} else {
			pix[i] = 0
		}
	}
	return pix
}

// lcdFilter applies a 3-tap low-pass filter across oversampled columns to
// reduce color fringes.
func lcdFilter(mask *image.Alpha, filter font.LCDFilter) {
	w := mask.Rect.Dx()
	wSide, wCenter := 1, 1
	if filter == font.LCDFilterLight {
		wSide, wCenter = 1, 2
	}
	total := 2*wSide + wCenter
	row := make([]byte, w)
	for y := 0; y < mask.Rect.Dy(); y++ {
		line := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		copy(row, line)
		for x := range line {
			sum := int(row[x]) * wCenter
			if x > 0 {
				sum += int(row[x-1]) * wSide
			}
			if x+1 < w {
				sum += int(row[x+1]) * wSide
			}
			line[x] = uint8(sum / total)
		}
	}
}

// foldSubpixel packs three horizontal samples per pixel into RGBA, with
// alpha set to the strongest channel.
func foldSubpixel(mask *image.Alpha, width, height int) []byte {
	out := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		line := mask.Pix[y*mask.Stride:]
		for x := 0; x < width; x++ {
			r := line[x*3]
			g := line[x*3+1]
			b := line[x*3+2]
			o := (y*width + x) * 4
			out[o] = r
			out[o+1] = g
			out[o+2] = b
			out[o+3] = max(r, g, b)
		}
	}
	return out
}
