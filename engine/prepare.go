package engine

import "github.com/gogpu/glyphraster/font"

// PrepareFont normalizes an instance to the options the outline engines can
// honor, so that equivalent requests share one cache key.
//
// Mono rendering never uses subpixel positioning. Only subpixel rendering
// uses the text and background colors, and subpixel rendering is only
// possible with an axis-aligned transform.
func PrepareFont(fi *font.FontInstance) {
	if fi.RenderMode == font.RenderModeSubpixel && !glyphTransform(fi).IsAxisAligned() {
		fi.RenderMode = font.RenderModeAlpha
	}

	switch fi.RenderMode {
	case font.RenderModeMono:
		fi.SubpixelDir = font.SubpixelDirNone
		fi.Flags &^= font.FlagSubpixelPosition
		fi.Color = font.White
		fi.BgColor = font.ColorU{}
	case font.RenderModeAlpha:
		fi.Color = font.White
		fi.BgColor = font.ColorU{}
	case font.RenderModeSubpixel:
	}

	if fi.PlatformOptions != nil && fi.RenderMode != font.RenderModeSubpixel {
		opts := *fi.PlatformOptions
		opts.LCDFilter = font.LCDFilterNone
		fi.PlatformOptions = &opts
	}
}
