// Package font defines the value types shared by the glyph rasterizer,
// its font engines and its caches.
//
// Every type that takes part in a cache key (FontInstance, FontTransform,
// GlyphKey, GlyphRequest) compares bit-exactly: floating point fields are
// compared through their IEEE-754 bit patterns, never with ==. Use the Key
// methods to obtain comparable map keys:
//
//	fi := font.FontInstance{FontKey: 1, Size: font.FontSizeFromPx(16)}
//	req := font.GlyphRequest{Key: font.GlyphKey{Index: 42}, Font: fi}
//	seen := map[font.GlyphRequestKey]bool{req.CacheKey(): true}
//
// FontTransform values should be quantized before they become part of a key;
// the rasterizer does this in PrepareFont.
package font
