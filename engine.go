package glyphraster

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/glyphraster/engine"
	"github.com/gogpu/glyphraster/font"
)

// FontEngineContext is one instance of a platform font engine. It holds
// mutable per-instance state and is only ever used while its guard from
// FontContextPool is held.
type FontEngineContext interface {
	// AddRawFont registers face index of in-memory font data under key.
	// Adding a key that is already present is a no-op.
	AddRawFont(key font.FontKey, data []byte, index uint32) error

	// AddNativeFont registers a system font under key.
	AddNativeFont(key font.FontKey, handle font.NativeFontHandle) error

	// DeleteFont forgets key. Unknown keys are ignored.
	DeleteFont(key font.FontKey)

	// HasFont reports whether key is registered.
	HasFont(key font.FontKey) bool

	// Rasterize renders one glyph. It never panics on bad input; failures
	// are returned as font.LoadFailed.
	Rasterize(fi *font.FontInstance, key font.GlyphKey) font.GlyphRasterResult

	// GlyphDimensions computes the placement and advance of a glyph
	// without rasterizing it. ok is false when the glyph does not exist.
	GlyphDimensions(fi *font.FontInstance, key font.GlyphKey) (font.GlyphDimensions, bool)

	// GlyphIndex maps a character to a glyph index.
	GlyphIndex(key font.FontKey, ch rune) (uint32, bool)
}

// EngineBackend describes a font engine implementation.
type EngineBackend struct {
	// Name identifies the backend in configuration.
	Name string

	// New creates one engine context. It is called once for the shared
	// context and once per worker.
	New func() (FontEngineContext, error)

	// PrepareFont normalizes a font instance to what the engine can render.
	// It must be pure: the same input always yields the same output.
	PrepareFont func(fi *font.FontInstance)
}

// DefaultEngine is the name of the backend used when none is configured.
const DefaultEngine = "sfnt"

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineBackend{
		"sfnt": {
			Name:        "sfnt",
			New:         func() (FontEngineContext, error) { return engine.NewSFNTContext() },
			PrepareFont: engine.PrepareFont,
		},
		"gotext": {
			Name:        "gotext",
			New:         func() (FontEngineContext, error) { return engine.NewGoTextContext() },
			PrepareFont: engine.PrepareFont,
		},
	}
)

// RegisterEngine registers a backend under b.Name, replacing any backend
// of the same name. A nil PrepareFont is treated as a no-op.
func RegisterEngine(b EngineBackend) {
	if b.Name == "" || b.New == nil {
		panic("glyphraster: RegisterEngine needs a name and a constructor")
	}
	if b.PrepareFont == nil {
		b.PrepareFont = func(*font.FontInstance) {}
	}
	enginesMu.Lock()
	engines[b.Name] = b
	enginesMu.Unlock()
}

// LookupEngine returns the backend registered under name.
func LookupEngine(name string) (EngineBackend, error) {
	enginesMu.RLock()
	b, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return EngineBackend{}, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return b, nil
}

// EngineNames returns the registered backend names in sorted order.
func EngineNames() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
