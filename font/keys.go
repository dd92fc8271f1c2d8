package font

import "math"

// FontKey identifies a registered font face (data or native handle).
type FontKey uint64

// GlyphIndex is the index of a glyph within a font face.
type GlyphIndex uint32

// SubpixelQuarter is a pen offset quantized to quarter pixels.
type SubpixelQuarter uint8

const (
	// SubpixelZero is a whole-pixel position.
	SubpixelZero SubpixelQuarter = iota
	// SubpixelQuarterPx is an offset of 0.25 pixels.
	SubpixelQuarterPx
	// SubpixelHalfPx is an offset of 0.5 pixels.
	SubpixelHalfPx
	// SubpixelThreeQuarterPx is an offset of 0.75 pixels.
	SubpixelThreeQuarterPx
)

// Px returns the offset in pixels.
func (q SubpixelQuarter) Px() float32 {
	return float32(q&3) * 0.25
}

// quantizeSubpixel maps the fractional part of pos to a quarter pixel.
// 0.875 and above round up to the next whole pixel and therefore to zero.
func quantizeSubpixel(pos float32) SubpixelQuarter {
	frac := pos - float32(math.Floor(float64(pos)))
	q := int(math.Floor(float64(frac)*4 + 0.5))
	return SubpixelQuarter(q & 3)
}

// SubpixelOffset is the quantized fractional pen position of a glyph.
type SubpixelOffset struct {
	X SubpixelQuarter
	Y SubpixelQuarter
}

// IsZero reports whether the offset is a whole-pixel position.
func (o SubpixelOffset) IsZero() bool {
	return o.X == 0 && o.Y == 0
}

// GlyphKey identifies a glyph and its subpixel position within a FontInstance.
type GlyphKey struct {
	Index    GlyphIndex
	Subpixel SubpixelOffset
}

// NewGlyphKey builds a key for index drawn at pen position (x, y), keeping
// only the subpixel axes enabled by dir.
func NewGlyphKey(index GlyphIndex, x, y float32, dir SubpixelDirection) GlyphKey {
	key := GlyphKey{Index: index}
	switch dir {
	case SubpixelDirHorizontal:
		key.Subpixel.X = quantizeSubpixel(x)
	case SubpixelDirVertical:
		key.Subpixel.Y = quantizeSubpixel(y)
	case SubpixelDirMixed:
		key.Subpixel.X = quantizeSubpixel(x)
		key.Subpixel.Y = quantizeSubpixel(y)
	}
	return key
}

// Compare orders keys by index, then X offset, then Y offset.
func (k GlyphKey) Compare(other GlyphKey) int {
	if c := cmpOrdered(k.Index, other.Index); c != 0 {
		return c
	}
	if c := cmpOrdered(k.Subpixel.X, other.Subpixel.X); c != 0 {
		return c
	}
	return cmpOrdered(k.Subpixel.Y, other.Subpixel.Y)
}

// FontSize is a font size in app units, 60 per pixel. Sizes are kept in
// fixed point so that they hash and compare exactly.
type FontSize int32

// AppUnitsPerPx is the number of FontSize units in one pixel.
const AppUnitsPerPx = 60

// FontSizeFromPx converts a pixel size to the nearest app-unit size.
func FontSizeFromPx(px float32) FontSize {
	return FontSize(math.Round(float64(px) * AppUnitsPerPx))
}

// Px returns the size in pixels.
func (s FontSize) Px() float32 {
	return float32(s) / AppUnitsPerPx
}

// ColorU is an 8-bit per channel RGBA color.
type ColorU struct {
	R, G, B, A uint8
}

// White is opaque white.
var White = ColorU{R: 255, G: 255, B: 255, A: 255}

// Black is opaque black.
var Black = ColorU{A: 255}

// Luminance returns a Rec. 709 luma approximation in [0, 255].
func (c ColorU) Luminance() uint8 {
	return uint8((uint32(c.R)*54 + uint32(c.G)*183 + uint32(c.B)*19) >> 8)
}

func (c ColorU) packed() uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
