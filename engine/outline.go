package engine

import (
	"math"

	"github.com/gogpu/glyphraster/font"
)

// segmentOp is the type of path operation.
type segmentOp uint8

const (
	opMoveTo segmentOp = iota
	opLineTo
	opQuadTo
	opCubeTo
)

// pointCount returns the number of points the operation uses.
func (op segmentOp) pointCount() int {
	switch op {
	case opQuadTo:
		return 2
	case opCubeTo:
		return 3
	default:
		return 1
	}
}

type point struct {
	X, Y float32
}

type segment struct {
	op  segmentOp
	pts [3]point
}

// outline is a glyph path in pixel space with Y pointing down. Contexts keep
// one and reset it per glyph to avoid reallocating segments.
type outline struct {
	segments []segment
}

func (o *outline) reset() {
	o.segments = o.segments[:0]
}

func (o *outline) add(op segmentOp, pts ...point) {
	s := segment{op: op}
	copy(s.pts[:], pts)
	o.segments = append(o.segments, s)
}

func (o *outline) isEmpty() bool {
	return len(o.segments) == 0
}

// transform applies t to every point and then translates by (dx, dy).
func (o *outline) transform(t font.FontTransform, dx, dy float32) {
	identity := t.IsIdentity()
	for i := range o.segments {
		seg := &o.segments[i]
		for j := 0; j < seg.op.pointCount(); j++ {
			p := seg.pts[j]
			if !identity {
				p.X, p.Y = t.TransformVector(p.X, p.Y)
			}
			seg.pts[j] = point{X: p.X + dx, Y: p.Y + dy}
		}
	}
}

// pixelBounds returns the integer rectangle covering every point, control
// points included. ok is false for an empty outline or non-finite points.
func (o *outline) pixelBounds() (x0, y0, x1, y1 int, ok bool) {
	if o.isEmpty() {
		return 0, 0, 0, 0, false
	}

	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	for _, seg := range o.segments {
		for j := 0; j < seg.op.pointCount(); j++ {
			p := seg.pts[j]
			minX = min(minX, p.X)
			minY = min(minY, p.Y)
			maxX = max(maxX, p.X)
			maxY = max(maxY, p.Y)
		}
	}

	if !finite(minX) || !finite(minY) || !finite(maxX) || !finite(maxY) {
		return 0, 0, 0, 0, false
	}

	x0 = int(math.Floor(float64(minX)))
	y0 = int(math.Floor(float64(minY)))
	x1 = int(math.Ceil(float64(maxX)))
	y1 = int(math.Ceil(float64(maxY)))
	if x1 <= x0 || y1 <= y0 {
		return 0, 0, 0, 0, false
	}
	return x0, y0, x1, y1, true
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// glyphTransform combines the instance transform with the orientation and
// synthetic italics flags.
func glyphTransform(fi *font.FontInstance) font.FontTransform {
	t := fi.Transform
	if t == (font.FontTransform{}) {
		t = font.IdentityTransform()
	}
	if fi.Flags.Has(font.FlagTranspose) {
		t = t.SwapXY()
	}
	if fi.Flags.Has(font.FlagFlipX) {
		t = t.FlipX()
	}
	if fi.Flags.Has(font.FlagFlipY) {
		t = t.FlipY()
	}
	if fi.Flags.Has(font.FlagSyntheticItalics) {
		t = t.SynthesizeItalics(font.DefaultSyntheticItalicsAngle)
	}
	return t
}
