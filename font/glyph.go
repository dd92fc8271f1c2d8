package font

import "errors"

// GlyphFormat describes the pixel layout and meaning of a rasterized glyph.
type GlyphFormat uint8

const (
	// FormatAlpha is 8-bit coverage, one byte per pixel.
	FormatAlpha GlyphFormat = iota
	// FormatTransformedAlpha is FormatAlpha rendered with a non-identity transform.
	FormatTransformedAlpha
	// FormatSubpixel is per-channel coverage stored as RGBA.
	FormatSubpixel
	// FormatTransformedSubpixel is FormatSubpixel rendered with a non-identity transform.
	FormatTransformedSubpixel
	// FormatBitmap is an RGBA bitmap that is tinted with the text color.
	FormatBitmap
	// FormatColorBitmap is a premultiplied RGBA bitmap drawn as-is (color emoji).
	FormatColorBitmap
)

// String returns the string representation of the format.
func (f GlyphFormat) String() string {
	switch f {
	case FormatAlpha:
		return "Alpha"
	case FormatTransformedAlpha:
		return "TransformedAlpha"
	case FormatSubpixel:
		return "Subpixel"
	case FormatTransformedSubpixel:
		return "TransformedSubpixel"
	case FormatBitmap:
		return "Bitmap"
	case FormatColorBitmap:
		return "ColorBitmap"
	default:
		return unknownStr
	}
}

// IgnoreColor maps FormatColorBitmap to FormatBitmap and leaves every
// other format unchanged.
func (f GlyphFormat) IgnoreColor() GlyphFormat {
	if f == FormatColorBitmap {
		return FormatBitmap
	}
	return f
}

// IsColor reports whether the pixels carry their own color.
func (f GlyphFormat) IsColor() bool {
	return f == FormatColorBitmap
}

// BytesPerPixel returns the size of one pixel in Bytes.
func (f GlyphFormat) BytesPerPixel() int {
	switch f {
	case FormatAlpha, FormatTransformedAlpha:
		return 1
	default:
		return 4
	}
}

// RasterizedGlyph is the output of a font engine for one glyph.
type RasterizedGlyph struct {
	// Left and Top place the bitmap relative to the pen position,
	// Y pointing down.
	Left   float32
	Top    float32
	Width  int32
	Height int32
	// Scale is the factor the bitmap must be scaled by when drawn, for
	// glyphs rasterized at a different size than requested (embedded bitmaps).
	Scale  float32
	Format GlyphFormat
	Bytes  []byte
}

// IsEmpty reports whether the glyph has no pixels to draw.
func (g *RasterizedGlyph) IsEmpty() bool {
	return g.Width <= 0 || g.Height <= 0
}

// Stride returns the number of bytes per row.
func (g *RasterizedGlyph) Stride() int {
	return int(g.Width) * g.Format.BytesPerPixel()
}

// ErrLoadFailed is the error carried by a LoadFailed result that has no more
// specific cause.
var ErrLoadFailed = errors.New("font: glyph load failed")

// GlyphRasterResult is either a rasterized bitmap or a load failure.
type GlyphRasterResult struct {
	glyph *RasterizedGlyph
	err   error
}

// Bitmap wraps a successfully rasterized glyph.
func Bitmap(g RasterizedGlyph) GlyphRasterResult {
	return GlyphRasterResult{glyph: &g}
}

// LoadFailed returns a failed result. A nil err is replaced by ErrLoadFailed.
func LoadFailed(err error) GlyphRasterResult {
	if err == nil {
		err = ErrLoadFailed
	}
	return GlyphRasterResult{err: err}
}

// Failed reports whether the glyph could not be rasterized.
func (r GlyphRasterResult) Failed() bool {
	return r.glyph == nil
}

// Glyph returns the rasterized glyph, or nil for a failed result.
func (r GlyphRasterResult) Glyph() *RasterizedGlyph {
	return r.glyph
}

// Err returns the failure cause, or nil for a bitmap result.
func (r GlyphRasterResult) Err() error {
	if r.glyph != nil {
		return nil
	}
	if r.err == nil {
		return ErrLoadFailed
	}
	return r.err
}

// GlyphDimensions are the metrics of a glyph without its pixels.
type GlyphDimensions struct {
	Left    int32
	Top     int32
	Width   int32
	Height  int32
	Advance float32
}

// GlyphRequest is the unit of rasterization work and the glyph cache key.
type GlyphRequest struct {
	Key  GlyphKey
	Font FontInstance
}

// GlyphRequestKey is the comparable form of a GlyphRequest.
type GlyphRequestKey struct {
	Key  GlyphKey
	Font FontInstanceKey
}

// CacheKey returns the comparable form of r.
func (r *GlyphRequest) CacheKey() GlyphRequestKey {
	return GlyphRequestKey{Key: r.Key, Font: r.Font.Key()}
}

// Equal reports bit-exact equality.
func (r *GlyphRequest) Equal(other *GlyphRequest) bool {
	return r.Key == other.Key && r.Font.Equal(&other.Font)
}

// Compare orders requests by font, then glyph key.
func (r *GlyphRequest) Compare(other *GlyphRequest) int {
	if c := r.Font.Compare(&other.Font); c != 0 {
		return c
	}
	return r.Key.Compare(other.Key)
}
