package font

// FontTemplate is the source of a font face: either font data already in
// memory (RawFont) or a font resident on the system (NativeFont).
type FontTemplate interface {
	isFontTemplate()
}

// RawFont is an embedded font file. Index selects the face within a
// collection (TTC/OTC) and is 0 for single-face files.
type RawFont struct {
	Data  []byte
	Index uint32
}

// NativeFontHandle locates a font installed on the system.
type NativeFontHandle struct {
	Path  string
	Index uint32
}

// NativeFont is a font referenced by handle rather than by data.
type NativeFont struct {
	Handle NativeFontHandle
}

func (RawFont) isFontTemplate()    {}
func (NativeFont) isFontTemplate() {}
