package engine

import (
	"errors"
	"strconv"

	"github.com/gogpu/glyphraster/font"
)

// Sentinel errors for engine package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("engine: empty font data")

	// ErrFontNotFound is returned when a FontKey was never added or has been deleted.
	ErrFontNotFound = errors.New("engine: font not found")

	// ErrGlyphNotFound is returned when a glyph index is outside the font.
	ErrGlyphNotFound = errors.New("engine: glyph not found")

	// ErrUnsupportedGlyph is returned for glyph kinds the engine cannot draw
	// (SVG glyphs, bitmaps when embedded bitmaps are disabled).
	ErrUnsupportedGlyph = errors.New("engine: unsupported glyph data")
)

// FaceIndexError is returned when a collection has no face at the requested index.
type FaceIndexError struct {
	Key   font.FontKey
	Index uint32
	Count int
}

func (e *FaceIndexError) Error() string {
	return "engine: font " + strconv.FormatUint(uint64(e.Key), 10) +
		": face index " + strconv.FormatUint(uint64(e.Index), 10) +
		" out of range (" + strconv.Itoa(e.Count) + " faces)"
}
