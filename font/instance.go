package font

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
)

// FontRenderMode selects how glyph coverage is produced.
type FontRenderMode uint8

const (
	// RenderModeMono produces 1-bit coverage stored as 0 or 255.
	RenderModeMono FontRenderMode = iota
	// RenderModeAlpha produces 8-bit grayscale coverage.
	RenderModeAlpha
	// RenderModeSubpixel produces per-channel (LCD) coverage.
	RenderModeSubpixel
)

// String returns the string representation of the render mode.
func (m FontRenderMode) String() string {
	switch m {
	case RenderModeMono:
		return "Mono"
	case RenderModeAlpha:
		return "Alpha"
	case RenderModeSubpixel:
		return "Subpixel"
	default:
		return unknownStr
	}
}

// SubpixelDirection is the set of axes along which glyph positions keep
// their fractional part.
type SubpixelDirection uint8

const (
	SubpixelDirNone SubpixelDirection = iota
	SubpixelDirHorizontal
	SubpixelDirVertical
	SubpixelDirMixed
)

// String returns the string representation of the direction.
func (d SubpixelDirection) String() string {
	switch d {
	case SubpixelDirNone:
		return "None"
	case SubpixelDirHorizontal:
		return "Horizontal"
	case SubpixelDirVertical:
		return "Vertical"
	case SubpixelDirMixed:
		return "Mixed"
	default:
		return unknownStr
	}
}

// FontInstanceFlags is a bitset of rendering options.
type FontInstanceFlags uint32

const (
	FlagSyntheticBold FontInstanceFlags = 1 << iota
	FlagSyntheticItalics
	FlagEmbeddedBitmaps
	FlagSubpixelPosition
	FlagTranspose
	FlagFlipX
	FlagFlipY
	FlagVertical
	FlagNoHinting
)

var flagNames = [...]string{
	"SyntheticBold",
	"SyntheticItalics",
	"EmbeddedBitmaps",
	"SubpixelPosition",
	"Transpose",
	"FlipX",
	"FlipY",
	"Vertical",
	"NoHinting",
}

// Has reports whether all bits of flag are set.
func (f FontInstanceFlags) Has(flag FontInstanceFlags) bool {
	return f&flag == flag
}

// String returns the set flag names joined by '|'.
func (f FontInstanceFlags) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// LCDFilter selects the filter applied to subpixel coverage.
type LCDFilter uint8

const (
	LCDFilterNone LCDFilter = iota
	LCDFilterDefault
	LCDFilterLight
)

// PlatformOptions carries engine specific tuning that still affects the
// rasterized output and therefore belongs in the cache key.
type PlatformOptions struct {
	// Gamma is the coverage gamma in hundredths (100 is linear).
	Gamma     uint16
	Contrast  uint16
	LCDFilter LCDFilter
}

// FontVariation sets one variation axis of a variable font.
type FontVariation struct {
	// Tag is the big-endian OpenType axis tag, e.g. 'wght'.
	Tag   uint32
	Value float32
}

// MakeTag packs a four-character OpenType tag.
func MakeTag(s string) uint32 {
	var b [4]byte
	copy(b[:], s)
	for i := len(s); i < 4; i++ {
		b[i] = ' '
	}
	return binary.BigEndian.Uint32(b[:])
}

// FontInstance is the complete configuration that determines how the glyphs
// of one font rasterize. It is treated as an immutable value; use Clone
// before modifying a copy that shares the Variations slice.
type FontInstance struct {
	FontKey         FontKey
	Size            FontSize
	Color           ColorU
	BgColor         ColorU
	RenderMode      FontRenderMode
	SubpixelDir     SubpixelDirection
	Flags           FontInstanceFlags
	PlatformOptions *PlatformOptions
	Variations      []FontVariation
	Transform       FontTransform
}

// NewFontInstance returns an alpha-mode instance with an identity transform.
func NewFontInstance(key FontKey, size FontSize) FontInstance {
	return FontInstance{
		FontKey:     key,
		Size:        size,
		Color:       White,
		RenderMode:  RenderModeAlpha,
		SubpixelDir: SubpixelDirHorizontal,
		Transform:   IdentityTransform(),
	}
}

// Clone returns a deep copy of f.
func (f FontInstance) Clone() FontInstance {
	c := f
	if f.PlatformOptions != nil {
		opts := *f.PlatformOptions
		c.PlatformOptions = &opts
	}
	if f.Variations != nil {
		c.Variations = append([]FontVariation(nil), f.Variations...)
	}
	return c
}

// UseSubpixelPosition reports whether glyph keys for f keep a fractional
// pen position.
func (f *FontInstance) UseSubpixelPosition() bool {
	return f.Flags.Has(FlagSubpixelPosition) && f.SubpixelDir != SubpixelDirNone && f.RenderMode != RenderModeMono
}

// FontInstanceKey is the comparable, bit-exact form of a FontInstance.
type FontInstanceKey struct {
	FontKey     FontKey
	Size        FontSize
	Color       uint32
	BgColor     uint32
	RenderMode  FontRenderMode
	SubpixelDir SubpixelDirection
	Flags       FontInstanceFlags
	HasOptions  bool
	Options     PlatformOptions
	Transform   FontTransformKey
	// Variations holds the tag and value bits of every axis, in order.
	Variations string
}

// Key returns the comparable form of f.
func (f *FontInstance) Key() FontInstanceKey {
	k := FontInstanceKey{
		FontKey:     f.FontKey,
		Size:        f.Size,
		Color:       f.Color.packed(),
		BgColor:     f.BgColor.packed(),
		RenderMode:  f.RenderMode,
		SubpixelDir: f.SubpixelDir,
		Flags:       f.Flags,
		Transform:   f.Transform.Key(),
	}
	if f.PlatformOptions != nil {
		k.HasOptions = true
		k.Options = *f.PlatformOptions
	}
	if len(f.Variations) > 0 {
		buf := make([]byte, 0, len(f.Variations)*8)
		for _, v := range f.Variations {
			buf = binary.BigEndian.AppendUint32(buf, v.Tag)
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v.Value))
		}
		k.Variations = string(buf)
	}
	return k
}

// Equal reports bit-exact equality of two instances.
func (f *FontInstance) Equal(other *FontInstance) bool {
	return f.Key() == other.Key()
}

// Hash returns a 64-bit FNV-1a hash of the bit-exact encoding of f.
func (f *FontInstance) Hash() uint64 {
	h := fnv.New64a()
	k := f.Key()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:]) // fnv.Write never returns an error
	}
	put(uint64(k.FontKey))
	put(uint64(uint32(k.Size)))
	put(uint64(k.Color)<<32 | uint64(k.BgColor))
	put(uint64(k.RenderMode)<<40 | uint64(k.SubpixelDir)<<32 | uint64(k.Flags))
	if k.HasOptions {
		put(1<<63 | uint64(k.Options.Gamma)<<32 | uint64(k.Options.Contrast)<<16 | uint64(k.Options.LCDFilter))
	}
	put(uint64(k.Transform[0])<<32 | uint64(k.Transform[1]))
	put(uint64(k.Transform[2])<<32 | uint64(k.Transform[3]))
	_, _ = h.Write([]byte(k.Variations))
	return h.Sum64()
}

// Compare defines a total order over instances, consistent with Equal.
func (f *FontInstance) Compare(other *FontInstance) int {
	return f.Key().Compare(other.Key())
}

// Compare orders keys field by field.
func (k FontInstanceKey) Compare(o FontInstanceKey) int {
	if c := cmpOrdered(k.FontKey, o.FontKey); c != 0 {
		return c
	}
	if c := cmpOrdered(k.Size, o.Size); c != 0 {
		return c
	}
	if c := cmpOrdered(k.Color, o.Color); c != 0 {
		return c
	}
	if c := cmpOrdered(k.BgColor, o.BgColor); c != 0 {
		return c
	}
	if c := cmpOrdered(k.RenderMode, o.RenderMode); c != 0 {
		return c
	}
	if c := cmpOrdered(k.SubpixelDir, o.SubpixelDir); c != 0 {
		return c
	}
	if c := cmpOrdered(k.Flags, o.Flags); c != 0 {
		return c
	}
	if k.HasOptions != o.HasOptions {
		if !k.HasOptions {
			return -1
		}
		return 1
	}
	if c := cmpOrdered(k.Options.Gamma, o.Options.Gamma); c != 0 {
		return c
	}
	if c := cmpOrdered(k.Options.Contrast, o.Options.Contrast); c != 0 {
		return c
	}
	if c := cmpOrdered(k.Options.LCDFilter, o.Options.LCDFilter); c != 0 {
		return c
	}
	for i := range k.Transform {
		if c := cmpOrdered(k.Transform[i], o.Transform[i]); c != 0 {
			return c
		}
	}
	return strings.Compare(k.Variations, o.Variations)
}

type ordered interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int32
}

func cmpOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

const unknownStr = "Unknown"
