// Package engine provides font engine contexts used by the glyph rasterizer.
//
// A context owns mutable per-instance state (parse buffers, rasterizer
// scratch space, per-font faces) and is not safe for concurrent use. The
// rasterizer keeps one context per worker plus one shared context and
// serializes access with a mutex per context.
//
// Two implementations are provided:
//   - SFNTContext, built on golang.org/x/image/font/sfnt
//   - GoTextContext, built on github.com/go-text/typesetting, which adds
//     variable font axes and embedded bitmap (color) glyphs
//
// Both render outlines through the same coverage rasterizer, built on
// golang.org/x/image/vector, which implements the alpha, mono and subpixel
// render modes, synthetic bold and synthetic italics.
package engine
