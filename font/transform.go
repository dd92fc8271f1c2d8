package font

import "math"

// QuantizeScale is the number of grid steps per unit used by
// FontTransform.Quantize. Components closer than 1/QuantizeScale collapse to
// the same value, which keeps floating-point noise out of cache keys.
const QuantizeScale = 1024.0

// DefaultSyntheticItalicsAngle is the skew applied by SynthesizeItalics when
// a FontInstance requests synthetic italics, in degrees.
const DefaultSyntheticItalicsAngle = 14.0

// FontTransform is a 2x2 matrix applied to glyph outlines before
// rasterization. Positive Y points down.
//
//	[ScaleX SkewX]
//	[SkewY  ScaleY]
type FontTransform struct {
	ScaleX float32
	SkewX  float32
	SkewY  float32
	ScaleY float32
}

// FontTransformKey is the bit-exact comparable form of a FontTransform.
type FontTransformKey [4]uint32

// IdentityTransform returns the identity transform.
func IdentityTransform() FontTransform {
	return FontTransform{ScaleX: 1, ScaleY: 1}
}

// NewFontTransform returns the transform with the given components.
func NewFontTransform(scaleX, skewX, skewY, scaleY float32) FontTransform {
	return FontTransform{ScaleX: scaleX, SkewX: skewX, SkewY: skewY, ScaleY: scaleY}
}

// IsIdentity reports whether t leaves outlines unchanged.
// The zero FontTransform is not the identity.
func (t FontTransform) IsIdentity() bool {
	return t.ScaleX == 1 && t.ScaleY == 1 && t.SkewX == 0 && t.SkewY == 0
}

// IsAxisAligned reports whether t has no skew or rotation component.
func (t FontTransform) IsAxisAligned() bool {
	return t.SkewX == 0 && t.SkewY == 0
}

// Quantize snaps every component to the 1/QuantizeScale grid.
// Quantizing an already quantized transform returns it unchanged.
func (t FontTransform) Quantize() FontTransform {
	return FontTransform{
		ScaleX: quantize(t.ScaleX),
		SkewX:  quantize(t.SkewX),
		SkewY:  quantize(t.SkewY),
		ScaleY: quantize(t.ScaleY),
	}
}

func quantize(v float32) float32 {
	q := float32(math.Round(float64(v)*QuantizeScale) / QuantizeScale)
	if q == 0 {
		// Fold -0 into +0 so that bit-exact keys agree.
		return 0
	}
	return q
}

// Determinant returns the determinant of the matrix.
func (t FontTransform) Determinant() float64 {
	return float64(t.ScaleX)*float64(t.ScaleY) - float64(t.SkewY)*float64(t.SkewX)
}

// ComputeScale decomposes t into the scale factors along its X and Y axes.
// ok is false when the matrix is degenerate.
func (t FontTransform) ComputeScale() (sx, sy float64, ok bool) {
	det := t.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return 0, 0, false
	}
	x := math.Hypot(float64(t.ScaleX), float64(t.SkewY))
	if x == 0 {
		return 0, 0, false
	}
	y := math.Abs(det) / x
	return x, y, true
}

// PreScale scales the input space of t: the result maps p to t(scale * p).
func (t FontTransform) PreScale(sx, sy float32) FontTransform {
	return FontTransform{
		ScaleX: t.ScaleX * sx,
		SkewX:  t.SkewX * sy,
		SkewY:  t.SkewY * sx,
		ScaleY: t.ScaleY * sy,
	}
}

// Scale multiplies every component by s.
func (t FontTransform) Scale(s float32) FontTransform {
	return FontTransform{ScaleX: t.ScaleX * s, SkewX: t.SkewX * s, SkewY: t.SkewY * s, ScaleY: t.ScaleY * s}
}

// InvertScale removes the axis scales (sx, sy) returned by ComputeScale,
// leaving only the rotation and skew part of t.
func (t FontTransform) InvertScale(sx, sy float64) (FontTransform, bool) {
	if sx == 0 || sy == 0 {
		return FontTransform{}, false
	}
	return t.PreScale(float32(1/sx), float32(1/sy)), true
}

// SynthesizeItalics shears t by angle degrees, leaning glyph tops right.
func (t FontTransform) SynthesizeItalics(angle float32) FontTransform {
	skew := -float32(math.Tan(float64(angle) * math.Pi / 180))
	return FontTransform{
		ScaleX: t.ScaleX,
		SkewX:  t.ScaleX*skew + t.SkewX,
		SkewY:  t.SkewY,
		ScaleY: t.SkewY*skew + t.ScaleY,
	}
}

// SwapXY exchanges the roles of the input X and Y axes.
func (t FontTransform) SwapXY() FontTransform {
	return FontTransform{ScaleX: t.SkewX, SkewX: t.ScaleX, SkewY: t.ScaleY, ScaleY: t.SkewY}
}

// FlipX mirrors the input X axis.
func (t FontTransform) FlipX() FontTransform {
	return FontTransform{ScaleX: -t.ScaleX, SkewX: t.SkewX, SkewY: -t.SkewY, ScaleY: t.ScaleY}
}

// FlipY mirrors the input Y axis.
func (t FontTransform) FlipY() FontTransform {
	return FontTransform{ScaleX: t.ScaleX, SkewX: -t.SkewX, SkewY: t.SkewY, ScaleY: -t.ScaleY}
}

// TransformVector applies t to (x, y).
func (t FontTransform) TransformVector(x, y float32) (float32, float32) {
	return t.ScaleX*x + t.SkewX*y, t.SkewY*x + t.ScaleY*y
}

// Key returns the bit-exact comparable form of t.
func (t FontTransform) Key() FontTransformKey {
	return FontTransformKey{
		math.Float32bits(t.ScaleX),
		math.Float32bits(t.SkewX),
		math.Float32bits(t.SkewY),
		math.Float32bits(t.ScaleY),
	}
}

// Equal reports bit-exact equality.
func (t FontTransform) Equal(other FontTransform) bool {
	return t.Key() == other.Key()
}
