// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/glyphraster/font"
)

// DeviceHandle provides GPU device access from the host application.
//
// The texture cache never creates a device. It receives one from the host so
// that atlas pages can be created on the device the renderer already uses.
// CPU-only users pass NullDeviceHandle and read pages through Page.
type DeviceHandle = gpucontext.DeviceProvider

// TextureDescriptor describes the GPU texture backing one atlas page.
type TextureDescriptor struct {
	// Label is an optional debug label for the texture.
	Label string

	Width  uint32
	Height uint32

	// Format is R8Unorm for coverage pages and RGBA8Unorm otherwise.
	Format gputypes.TextureFormat

	Usage TextureUsage
}

// TextureUsage specifies how a texture can be used.
// These flags can be combined with bitwise OR.
type TextureUsage uint32

const (
	// TextureUsageCopySrc allows the texture to be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota

	// TextureUsageCopyDst allows the texture to be used as a copy destination.
	TextureUsageCopyDst

	// TextureUsageTextureBinding allows the texture to be used in a texture binding.
	TextureUsageTextureBinding
)

// TextureFormatFor returns the page format that stores glyphs of format f.
func TextureFormatFor(f font.GlyphFormat) gputypes.TextureFormat {
	if f.BytesPerPixel() == 1 {
		return gputypes.TextureFormatR8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func bytesPerPixel(format gputypes.TextureFormat) int {
	if format == gputypes.TextureFormatR8Unorm {
		return 1
	}
	return 4
}

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
// Used for CPU-only rendering where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}
