package texcache

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glyphraster/font"
)

// Default page geometry.
const (
	DefaultPageSize = 1024
	DefaultPadding  = 1
	DefaultMaxPages = 16
)

var (
	// ErrGlyphTooLarge is returned when a glyph does not fit on an empty page.
	ErrGlyphTooLarge = errors.New("texcache: glyph larger than atlas page")

	// ErrAtlasFull is returned when every page is full and MaxPages is reached.
	ErrAtlasFull = errors.New("texcache: atlas full")

	// ErrEmptyGlyph is returned for glyphs with no pixels. Those are cached
	// as blank and never occupy atlas space.
	ErrEmptyGlyph = errors.New("texcache: empty glyph")

	// ErrInvalidHandle is returned for handles that were never issued or have
	// been freed.
	ErrInvalidHandle = errors.New("texcache: invalid handle")
)

// Handle identifies one uploaded glyph. The zero Handle is never issued.
type Handle uint32

// Allocation is the location of an uploaded glyph.
type Allocation struct {
	Page   int
	X, Y   int
	Width  int
	Height int
}

// UV returns the allocation in normalized page coordinates.
func (a Allocation) UV(pageWidth, pageHeight int) (u0, v0, u1, v1 float32) {
	w, h := float32(pageWidth), float32(pageHeight)
	return float32(a.X) / w, float32(a.Y) / h,
		float32(a.X+a.Width) / w, float32(a.Y+a.Height) / h
}

// Config configures a TextureCache.
type Config struct {
	// PageSize is the width and height of each page in pixels.
	// Default: 1024.
	PageSize int `yaml:"page_size"`

	// Padding is the gap between glyphs in pixels. DefaultConfig uses 1.
	Padding int `yaml:"padding"`

	// MaxPages bounds the number of pages across all formats. Default: 16.
	MaxPages int `yaml:"max_pages"`
}

// DefaultConfig returns the default texture cache configuration.
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		Padding:  DefaultPadding,
		MaxPages: DefaultMaxPages,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.Padding < 0 {
		c.Padding = 0
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	return c
}

// Page is one atlas texture held in CPU memory.
type Page struct {
	Index  int
	Format gputypes.TextureFormat
	Width  int
	Height int
	Stride int
	Pix    []byte

	alloc *shelfAllocator
	live  int
	dirty bool
}

// Live returns the number of glyphs currently stored on the page.
func (p *Page) Live() int { return p.live }

type entry struct {
	alloc  Allocation
	format font.GlyphFormat
}

// Stats reports texture cache usage.
type Stats struct {
	Pages         int
	LiveGlyphs    int
	UploadedBytes int64
	Uploads       uint64
	PageResets    uint64
	// Utilization is the mean allocated fraction over all pages.
	Utilization float64
	// GPU reports whether a device was provided.
	GPU bool
}

// TextureCache packs rasterized glyphs into atlas pages, one set of pages
// per texture format. It is owned by the frame goroutine and is not safe
// for concurrent use.
type TextureCache struct {
	device DeviceHandle
	config Config

	pages   []*Page
	entries map[Handle]entry
	next    Handle

	uploadedBytes int64
	uploads       uint64
	resets        uint64
}

// New creates a texture cache for device. A nil device is treated as
// NullDeviceHandle.
func New(device DeviceHandle, config Config) *TextureCache {
	if device == nil {
		device = NullDeviceHandle{}
	}
	return &TextureCache{
		device:  device,
		config:  config.withDefaults(),
		entries: make(map[Handle]entry),
	}
}

// Device returns the device handle the cache was created with.
func (c *TextureCache) Device() DeviceHandle {
	return c.device
}

// Upload copies g into an atlas page and returns its handle and location.
func (c *TextureCache) Upload(g *font.RasterizedGlyph) (Handle, Allocation, error) {
	if g == nil || g.IsEmpty() {
		return 0, Allocation{}, ErrEmptyGlyph
	}
	w, h := int(g.Width), int(g.Height)
	if len(g.Bytes) < g.Stride()*h {
		return 0, Allocation{}, fmt.Errorf("texcache: glyph has %d bytes, want %d", len(g.Bytes), g.Stride()*h)
	}

	format := TextureFormatFor(g.Format)
	page, x, y, err := c.allocate(format, w, h)
	if err != nil {
		return 0, Allocation{}, err
	}

	bpp := bytesPerPixel(format)
	src := g.Stride()
	for row := 0; row < h; row++ {
		dst := page.Pix[(y+row)*page.Stride+x*bpp:]
		copy(dst[:w*bpp], g.Bytes[row*src:row*src+w*bpp])
	}
	page.live++
	page.dirty = true

	c.next++
	handle := c.next
	alloc := Allocation{Page: page.Index, X: x, Y: y, Width: w, Height: h}
	c.entries[handle] = entry{alloc: alloc, format: g.Format}
	c.uploadedBytes += int64(w * h * bpp)
	c.uploads++
	return handle, alloc, nil
}

func (c *TextureCache) allocate(format gputypes.TextureFormat, w, h int) (*Page, int, int, error) {
	for _, p := range c.pages {
		if p.Format != format {
			continue
		}
		if x, y, ok := p.alloc.allocate(w, h); ok {
			return p, x, y, nil
		}
	}

	size := c.config.PageSize
	probe := shelfAllocator{width: size, height: size, padding: c.config.Padding}
	if !probe.fits(w, h) {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d on %dx%d page", ErrGlyphTooLarge, w, h, size, size)
	}
	if len(c.pages) >= c.config.MaxPages {
		return nil, 0, 0, ErrAtlasFull
	}

	bpp := bytesPerPixel(format)
	p := &Page{
		Index:  len(c.pages),
		Format: format,
		Width:  size,
		Height: size,
		Stride: size * bpp,
		Pix:    make([]byte, size*size*bpp),
		alloc:  newShelfAllocator(size, size, c.config.Padding),
	}
	c.pages = append(c.pages, p)
	x, y, _ := p.alloc.allocate(w, h)
	return p, x, y, nil
}

// IsAllocated reports whether handle refers to a live glyph.
func (c *TextureCache) IsAllocated(handle Handle) bool {
	_, ok := c.entries[handle]
	return ok
}

// Get returns the allocation of a live glyph.
func (c *TextureCache) Get(handle Handle) (Allocation, bool) {
	e, ok := c.entries[handle]
	return e.alloc, ok
}

// Free releases a glyph. When the last glyph on a page is freed the page is
// cleared and its space becomes available again.
func (c *TextureCache) Free(handle Handle) error {
	e, ok := c.entries[handle]
	if !ok {
		return ErrInvalidHandle
	}
	delete(c.entries, handle)

	p := c.pages[e.alloc.Page]
	p.live--
	if p.live == 0 {
		p.alloc.reset()
		clear(p.Pix)
		p.dirty = true
		c.resets++
	}
	return nil
}

// NumPages returns the number of pages created so far.
func (c *TextureCache) NumPages() int {
	return len(c.pages)
}

// Page returns page i, or nil when out of range.
func (c *TextureCache) Page(i int) *Page {
	if i < 0 || i >= len(c.pages) {
		return nil
	}
	return c.pages[i]
}

// Descriptor returns the GPU texture descriptor for page i.
func (c *TextureCache) Descriptor(i int) (TextureDescriptor, bool) {
	p := c.Page(i)
	if p == nil {
		return TextureDescriptor{}, false
	}
	return TextureDescriptor{
		Label:  fmt.Sprintf("glyph atlas %d", i),
		Width:  uint32(p.Width),
		Height: uint32(p.Height),
		Format: p.Format,
		Usage:  TextureUsageCopyDst | TextureUsageTextureBinding,
	}, true
}

// DirtyPages returns the indices of pages modified since the last MarkClean,
// in ascending order.
func (c *TextureCache) DirtyPages() []int {
	var dirty []int
	for _, p := range c.pages {
		if p.dirty {
			dirty = append(dirty, p.Index)
		}
	}
	return dirty
}

// MarkClean clears the dirty flag of the given pages, or of all pages when
// none are given.
func (c *TextureCache) MarkClean(pages ...int) {
	for _, p := range c.pages {
		if len(pages) == 0 || slices.Contains(pages, p.Index) {
			p.dirty = false
		}
	}
}

// Stats returns current usage.
func (c *TextureCache) Stats() Stats {
	s := Stats{
		Pages:         len(c.pages),
		LiveGlyphs:    len(c.entries),
		UploadedBytes: c.uploadedBytes,
		Uploads:       c.uploads,
		PageResets:    c.resets,
		GPU:           c.device.Device() != nil,
	}
	for _, p := range c.pages {
		s.Utilization += p.alloc.utilization()
	}
	if len(c.pages) > 0 {
		s.Utilization /= float64(len(c.pages))
	}
	return s
}
