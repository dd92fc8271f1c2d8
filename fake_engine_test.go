package glyphraster

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/glyphraster/font"
)

var errFakeEngine = errors.New("fake engine failure")

// Glyph indices with special behavior in fakeEngine.
const (
	fakeFailGlyph  font.GlyphIndex = 1000
	fakeBlankGlyph font.GlyphIndex = 1001
	fakePanicGlyph font.GlyphIndex = 1002
	fakeBlockGlyph font.GlyphIndex = 1003
)

// fakeStats is shared by every context of one fakeBackend.
type fakeStats struct {
	mu     sync.Mutex
	counts map[font.GlyphRequestKey]int

	// overlaps counts Rasterize calls that found their context already busy.
	overlaps atomic.Int32

	// release unblocks fakeBlockGlyph.
	release chan struct{}
}

func (s *fakeStats) count(fi *font.FontInstance, key font.GlyphKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[font.GlyphRequestKey{Key: key, Font: fi.Key()}]
}

func (s *fakeStats) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

// fakeEngine is a FontEngineContext that draws every glyph as a small
// solid square whose size depends on the glyph index.
type fakeEngine struct {
	fonts map[font.FontKey]bool
	stats *fakeStats
	busy  atomic.Int32
}

func (e *fakeEngine) AddRawFont(key font.FontKey, data []byte, _ uint32) error {
	if len(data) == 0 {
		return errFakeEngine
	}
	e.fonts[key] = true
	return nil
}

func (e *fakeEngine) AddNativeFont(key font.FontKey, handle font.NativeFontHandle) error {
	if handle.Path == "" {
		return errFakeEngine
	}
	e.fonts[key] = true
	return nil
}

func (e *fakeEngine) DeleteFont(key font.FontKey) { delete(e.fonts, key) }

func (e *fakeEngine) HasFont(key font.FontKey) bool { return e.fonts[key] }

func (e *fakeEngine) GlyphIndex(key font.FontKey, ch rune) (uint32, bool) {
	if !e.fonts[key] || ch == 0 {
		return 0, false
	}
	return uint32(ch), true
}

func (e *fakeEngine) GlyphDimensions(fi *font.FontInstance, key font.GlyphKey) (font.GlyphDimensions, bool) {
	if !e.fonts[fi.FontKey] {
		return font.GlyphDimensions{}, false
	}
	side := fakeSide(key.Index)
	return font.GlyphDimensions{Top: -side, Width: side, Height: side, Advance: float32(side + 1)}, true
}

func (e *fakeEngine) Rasterize(fi *font.FontInstance, key font.GlyphKey) font.GlyphRasterResult {
	if e.busy.Add(1) != 1 {
		e.stats.overlaps.Add(1)
	}
	defer e.busy.Add(-1)

	e.stats.mu.Lock()
	e.stats.counts[font.GlyphRequestKey{Key: key, Font: fi.Key()}]++
	e.stats.mu.Unlock()

	if !e.fonts[fi.FontKey] {
		return font.LoadFailed(errFakeEngine)
	}
	switch key.Index {
	case fakeFailGlyph:
		return font.LoadFailed(errFakeEngine)
	case fakeBlankGlyph:
		return font.Bitmap(font.RasterizedGlyph{Scale: 1, Format: font.FormatAlpha})
	case fakePanicGlyph:
		panic("fake engine panic")
	case fakeBlockGlyph:
		<-e.stats.release
	}

	side := fakeSide(key.Index)
	pix := make([]byte, side*side)
	for i := range pix {
		pix[i] = byte(key.Index)
	}
	return font.Bitmap(font.RasterizedGlyph{
		Top:    float32(-side),
		Width:  side,
		Height: side,
		Scale:  1,
		Format: font.FormatAlpha,
		Bytes:  pix,
	})
}

func fakeSide(idx font.GlyphIndex) int32 {
	return int32(idx%7) + 2
}

// fakeBackend creates fakeEngine contexts sharing one fakeStats.
type fakeBackend struct {
	stats   *fakeStats
	created atomic.Int32
	// failOn makes the n-th New call (1-based) fail; 0 never fails.
	failOn   int32
	contexts []*fakeEngine
	mu       sync.Mutex
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{stats: &fakeStats{
		counts:  make(map[font.GlyphRequestKey]int),
		release: make(chan struct{}),
	}}
}

func (b *fakeBackend) backend() EngineBackend {
	return EngineBackend{
		Name: "fake",
		New: func() (FontEngineContext, error) {
			if n := b.created.Add(1); n == b.failOn {
				return nil, errFakeEngine
			}
			e := &fakeEngine{fonts: make(map[font.FontKey]bool), stats: b.stats}
			b.mu.Lock()
			b.contexts = append(b.contexts, e)
			b.mu.Unlock()
			return e, nil
		},
	}
}
