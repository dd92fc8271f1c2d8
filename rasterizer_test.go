package glyphraster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gogpu/glyphraster/font"
	"github.com/gogpu/glyphraster/texcache"
)

// harness bundles a rasterizer with the per-frame caches a renderer owns.
type harness struct {
	pool     *ThreadPool
	fake     *fakeBackend
	r        *GlyphRasterizer
	cache    *GlyphCache
	textures *texcache.TextureCache
	gpu      *GpuCache
	counters ProfileCounters
}

func newHarness(t *testing.T, workers int, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		pool:     NewThreadPool(workers),
		fake:     newFakeBackend(),
		cache:    NewGlyphCache(GlyphCacheConfig{}),
		textures: texcache.New(texcache.NullDeviceHandle{}, texcache.Config{PageSize: 256}),
		gpu:      NewGpuCache(),
	}
	t.Cleanup(h.pool.Close)

	opts = append([]Option{WithEngineBackend(h.fake.backend())}, opts...)
	r, err := NewGlyphRasterizer(h.pool, opts...)
	if err != nil {
		t.Fatalf("NewGlyphRasterizer() error = %v", err)
	}
	h.r = r
	return h
}

func (h *harness) addFont(t *testing.T, key font.FontKey) font.FontInstance {
	t.Helper()
	if err := h.r.AddFont(key, font.RawFont{Data: []byte{1}}); err != nil {
		t.Fatalf("AddFont(%d) error = %v", key, err)
	}
	fi := font.NewFontInstance(key, font.FontSizeFromPx(16))
	h.r.PrepareFont(&fi)
	return fi
}

func (h *harness) resolve(t *testing.T) {
	t.Helper()
	if err := h.r.ResolveGlyphs(context.Background(), h.cache, h.textures, h.gpu, &h.counters); err != nil {
		t.Fatalf("ResolveGlyphs() error = %v", err)
	}
}

func glyphKeys(from, n int) []font.GlyphKey {
	keys := make([]font.GlyphKey, n)
	for i := range keys {
		keys[i] = font.GlyphKey{Index: font.GlyphIndex(from + i)}
	}
	return keys
}

func TestNewGlyphRasterizer_CreatesContextPerWorker(t *testing.T) {
	h := newHarness(t, 3)
	if got := h.fake.created.Load(); got != 4 {
		t.Errorf("contexts created = %d, want 4 (3 workers + shared)", got)
	}
	if h.r.Contexts().NumWorkerContexts() != 3 {
		t.Errorf("NumWorkerContexts() = %d, want 3", h.r.Contexts().NumWorkerContexts())
	}
	if h.r.Engine() != "fake" {
		t.Errorf("Engine() = %q", h.r.Engine())
	}
}

func TestNewGlyphRasterizer_Errors(t *testing.T) {
	pool := NewThreadPool(2)
	defer pool.Close()

	if _, err := NewGlyphRasterizer(nil); !errors.Is(err, ErrNilWorkerPool) {
		t.Errorf("nil pool: error = %v", err)
	}
	if _, err := NewGlyphRasterizer(pool, WithEngine("nope")); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("unknown engine: error = %v", err)
	}

	shared := newFakeBackend()
	shared.failOn = 1
	_, err := NewGlyphRasterizer(pool, WithEngineBackend(shared.backend()))
	var rce *ResourceCacheError
	if !errors.As(err, &rce) || rce.Slot != SharedContext {
		t.Errorf("shared failure: error = %v, want ResourceCacheError for shared slot", err)
	}
	if !errors.Is(err, errFakeEngine) {
		t.Error("ResourceCacheError should unwrap to the engine error")
	}

	worker := newFakeBackend()
	worker.failOn = 3
	_, err = NewGlyphRasterizer(pool, WithEngineBackend(worker.backend()))
	if !errors.As(err, &rce) || rce.Slot < 0 || rce.Slot > 1 {
		t.Errorf("worker failure: error = %v, want ResourceCacheError for a worker slot", err)
	}
}

func TestGlyphRasterizer_AddFont(t *testing.T) {
	h := newHarness(t, 2)
	h.addFont(t, 1)

	err := h.r.Contexts().ForEachContext(func(slot int, c FontEngineContext) error {
		if !c.HasFont(1) {
			return fmt.Errorf("context %d missing font", slot)
		}
		return nil
	})
	if err != nil {
		t.Error(err)
	}

	if err := h.r.AddFont(2, font.RawFont{}); !errors.Is(err, errFakeEngine) {
		t.Errorf("AddFont(bad) error = %v", err)
	}
	var fe *FontError
	if err := h.r.AddFont(2, font.RawFont{}); !errors.As(err, &fe) || fe.Slot != SharedContext {
		t.Errorf("AddFont(bad) error = %v, want FontError on shared context", err)
	}
	if h.r.HasFont(2) {
		t.Error("failed font registered")
	}
	if err := h.r.AddFont(3, nil); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("AddFont(nil) error = %v", err)
	}
	if err := h.r.AddFont(4, font.NativeFont{Handle: font.NativeFontHandle{Path: "/fonts/x.ttf"}}); err != nil {
		t.Errorf("AddFont(native) error = %v", err)
	}
}

func TestGlyphRasterizer_QueriesUseSharedContext(t *testing.T) {
	h := newHarness(t, 1)
	fi := h.addFont(t, 1)

	idx, ok := h.r.GlyphIndex(1, 'A')
	if !ok || idx != 'A' {
		t.Errorf("GlyphIndex() = %d, %v", idx, ok)
	}
	dims, ok := h.r.GlyphDimensions(&fi, font.GlyphKey{Index: 5})
	if !ok || dims.Width != fakeSide(5) {
		t.Errorf("GlyphDimensions() = %+v, %v", dims, ok)
	}
	if _, ok := h.r.GlyphIndex(9, 'A'); ok {
		t.Error("GlyphIndex on unknown font should fail")
	}
}

func TestGlyphRasterizer_RasterizesAtMostOnce(t *testing.T) {
	h := newHarness(t, 4)
	fi := h.addFont(t, 1)
	keys := glyphKeys(10, 30)

	h.cache.BeginFrame()
	h.r.RequestGlyphs(h.cache, &fi, keys, h.textures)
	h.r.RequestGlyphs(h.cache, &fi, keys, h.textures)
	h.r.RequestGlyphs(h.cache, &fi, append(keys[:5:5], keys[:5]...), h.textures)
	h.resolve(t)

	h.cache.BeginFrame()
	h.r.RequestGlyphs(h.cache, &fi, keys, h.textures)
	h.resolve(t)

	for _, k := range keys {
		if n := h.fake.stats.count(&fi, k); n != 1 {
			t.Errorf("glyph %d rasterized %d times, want 1", k.Index, n)
		}
		e, ok := h.cache.Get(fi.Key(), k)
		if !ok || e.State != EntryCached {
			t.Errorf("glyph %d entry = %+v, %v", k.Index, e, ok)
		}
	}
	if h.counters.Batches != 1 {
		t.Errorf("Batches = %d, want 1", h.counters.Batches)
	}
	if h.counters.Rasterized != 30 {
		t.Errorf("Rasterized = %d, want 30", h.counters.Rasterized)
	}
	if h.counters.CacheHits != 30 {
		t.Errorf("CacheHits = %d, want 30", h.counters.CacheHits)
	}
}

func TestGlyphRasterizer_PartialFailure(t *testing.T) {
	h := newHarness(t, 2)
	fi := h.addFont(t, 1)

	keys := glyphKeys(1, 49)
	keys = append(keys, font.GlyphKey{Index: fakeFailGlyph})

	h.r.RequestGlyphs(h.cache, &fi, keys, h.textures)
	h.resolve(t)

	if h.cache.Len() != 49 {
		t.Errorf("cache.Len() = %d, want 49", h.cache.Len())
	}
	if _, ok := h.cache.Get(fi.Key(), font.GlyphKey{Index: fakeFailGlyph}); ok {
		t.Error("failed glyph left an entry")
	}
	if h.counters.Failed != 1 {
		t.Errorf("Failed = %d, want 1", h.counters.Failed)
	}

	// A failed glyph is retried on the next request.
	h.r.RequestGlyphs(h.cache, &fi, keys, h.textures)
	h.resolve(t)
	if n := h.fake.stats.count(&fi, font.GlyphKey{Index: fakeFailGlyph}); n != 2 {
		t.Errorf("failed glyph rasterized %d times, want 2", n)
	}
	if n := h.fake.stats.count(&fi, keys[0]); n != 1 {
		t.Errorf("good glyph rasterized %d times, want 1", n)
	}
}

func TestGlyphRasterizer_PanicIsLoadFailure(t *testing.T) {
	h := newHarness(t, 2)
	fi := h.addFont(t, 1)

	keys := []font.GlyphKey{{Index: 3}, {Index: fakePanicGlyph}, {Index: 4}}
	h.r.RequestGlyphs(h.cache, &fi, keys, h.textures)
	h.resolve(t)

	if _, ok := h.cache.Get(fi.Key(), keys[1]); ok {
		t.Error("panicking glyph left an entry")
	}
	for _, k := range []font.GlyphKey{keys[0], keys[2]} {
		if e, ok := h.cache.Get(fi.Key(), k); !ok || e.State != EntryCached {
			t.Errorf("glyph %d not cached after sibling panic", k.Index)
		}
	}
}

func TestGlyphRasterizer_BlankGlyph(t *testing.T) {
	h := newHarness(t, 1)
	fi := h.addFont(t, 1)

	key := font.GlyphKey{Index: fakeBlankGlyph}
	h.r.RequestGlyphs(h.cache, &fi, []font.GlyphKey{key}, h.textures)
	h.resolve(t)

	e, ok := h.cache.Get(fi.Key(), key)
	if !ok || e.State != EntryBlank {
		t.Fatalf("entry = %+v, %v; want Blank", e, ok)
	}
	if h.textures.Stats().Uploads != 0 || h.gpu.Len() != 0 {
		t.Error("blank glyph was uploaded")
	}

	h.r.RequestGlyphs(h.cache, &fi, []font.GlyphKey{key}, h.textures)
	h.resolve(t)
	if n := h.fake.stats.count(&fi, key); n != 1 {
		t.Errorf("blank glyph rasterized %d times, want 1", n)
	}
}

func TestGlyphRasterizer_EvictedTextureIsRerasterized(t *testing.T) {
	h := newHarness(t, 1)
	fi := h.addFont(t, 1)
	key := font.GlyphKey{Index: 8}

	h.r.RequestGlyphs(h.cache, &fi, []font.GlyphKey{key}, h.textures)
	h.resolve(t)
	first, _ := h.cache.Get(fi.Key(), key)
	if _, ok := h.gpu.Get(first.GpuKey); !ok {
		t.Fatal("no GPU block for cached glyph")
	}

	if err := h.textures.Free(first.Texture); err != nil {
		t.Fatal(err)
	}
	h.r.RequestGlyphs(h.cache, &fi, []font.GlyphKey{key}, h.textures)
	h.resolve(t)

	second, _ := h.cache.Get(fi.Key(), key)
	if second.State != EntryCached || !h.textures.IsAllocated(second.Texture) {
		t.Errorf("entry after re-raster = %+v", second)
	}
	if second.GpuKey <= first.GpuKey {
		t.Errorf("GpuKey %d not newer than %d", second.GpuKey, first.GpuKey)
	}
	if _, ok := h.gpu.Get(first.GpuKey); ok {
		t.Error("stale GPU block not freed")
	}
	if n := h.fake.stats.count(&fi, key); n != 2 {
		t.Errorf("rasterized %d times, want 2", n)
	}
}

func TestGlyphRasterizer_EndToEnd(t *testing.T) {
	h := newHarness(t, 4)
	fonts := []font.FontInstance{h.addFont(t, 1), h.addFont(t, 2)}
	bold := fonts[0].Clone()
	bold.Flags |= font.FlagSyntheticBold
	fonts = append(fonts, bold)

	h.cache.BeginFrame()
	for i := 0; i < 200; i += 10 {
		fi := &fonts[(i/10)%len(fonts)]
		h.r.RequestGlyphs(h.cache, fi, glyphKeys(i, 10), h.textures)
	}
	if h.r.Outstanding() == 0 {
		t.Fatal("no batches outstanding after requests")
	}
	h.resolve(t)

	if h.r.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after resolve", h.r.Outstanding())
	}
	if h.cache.Len() != 200 {
		t.Errorf("cache.Len() = %d, want 200", h.cache.Len())
	}
	if h.fake.stats.total() != 200 {
		t.Errorf("total rasterizations = %d, want 200", h.fake.stats.total())
	}
	if n := h.fake.stats.overlaps.Load(); n != 0 {
		t.Errorf("%d rasterizations overlapped on one context", n)
	}
	if h.gpu.Len() != 200 || len(h.gpu.DirtyKeys()) != 200 {
		t.Errorf("gpu blocks = %d, dirty = %d", h.gpu.Len(), len(h.gpu.DirtyKeys()))
	}

	h.r.DeleteFont(1)
	if !h.r.HasFont(1) {
		t.Fatal("font removed before resolve")
	}
	h.resolve(t)
	h.pool.Close() // runs the queued deletion job

	err := h.r.Contexts().ForEachContext(func(slot int, c FontEngineContext) error {
		if c.HasFont(1) {
			return fmt.Errorf("context %d still has deleted font", slot)
		}
		if !c.HasFont(2) {
			return fmt.Errorf("context %d lost font 2", slot)
		}
		return nil
	})
	if err != nil {
		t.Error(err)
	}
	if n := h.fake.created.Load(); n != 5 {
		t.Errorf("contexts = %d, want 5", n)
	}

	evicted := h.cache.ClearFonts(func(k font.FontInstanceKey) bool { return k.FontKey == 1 })
	// Font 1 has 7 regular and 6 bold batches of 10.
	if len(evicted) != 130 {
		t.Errorf("ClearFonts evicted %d, want 130", len(evicted))
	}
	ReleaseEvicted(evicted, h.textures, h.gpu)
	if h.textures.Stats().LiveGlyphs != 70 || h.gpu.Len() != 70 {
		t.Errorf("after release: textures %d, gpu %d; want 70", h.textures.Stats().LiveGlyphs, h.gpu.Len())
	}
}

func TestGlyphRasterizer_DeterministicPlacement(t *testing.T) {
	placements := func(workers int) map[font.GlyphKey]texcache.Allocation {
		h := newHarness(t, workers)
		fi := h.addFont(t, 1)
		for i := 0; i < 60; i += 5 {
			h.r.RequestGlyphs(h.cache, &fi, glyphKeys(56-i, 5), h.textures)
		}
		h.resolve(t)

		out := make(map[font.GlyphKey]texcache.Allocation)
		for _, k := range glyphKeys(1, 60) {
			e, ok := h.cache.Get(fi.Key(), k)
			if !ok {
				t.Fatalf("glyph %d missing", k.Index)
			}
			a, _ := h.textures.Get(e.Texture)
			out[k] = a
		}
		return out
	}

	one, four := placements(1), placements(4)
	for k, a := range one {
		if four[k] != a {
			t.Errorf("glyph %d placed at %+v with 1 worker, %+v with 4", k.Index, a, four[k])
		}
	}
}

func TestGlyphRasterizer_DeferredDeletion(t *testing.T) {
	h := newHarness(t, 2)
	fi := h.addFont(t, 1)

	h.r.DeleteFont(1)
	// Requests made in the same frame as the deletion still succeed.
	h.r.RequestGlyphs(h.cache, &fi, glyphKeys(1, 3), h.textures)
	h.resolve(t)
	if h.counters.Failed != 0 {
		t.Errorf("Failed = %d, want 0", h.counters.Failed)
	}

	h.pool.Close()
	if h.r.HasFont(1) {
		t.Error("font still registered after resolve")
	}
}

func TestGlyphRasterizer_AddFontCancelsPendingDelete(t *testing.T) {
	h := newHarness(t, 1)
	h.addFont(t, 1)
	h.r.DeleteFont(1)
	h.addFont(t, 1)
	h.r.RemoveDeadFonts()
	h.pool.Close()
	if !h.r.HasFont(1) {
		t.Error("re-added font was deleted")
	}
}

func TestGlyphRasterizer_ClosedPoolRunsInline(t *testing.T) {
	h := newHarness(t, 2)
	fi := h.addFont(t, 1)
	h.pool.Close()

	h.r.RequestGlyphs(h.cache, &fi, glyphKeys(1, 5), h.textures)
	h.resolve(t)
	if h.cache.Len() != 5 {
		t.Errorf("cache.Len() = %d, want 5", h.cache.Len())
	}

	h.r.DeleteFont(1)
	h.r.RemoveDeadFonts()
	if h.r.HasFont(1) {
		t.Error("inline deletion did not run")
	}
}

func TestGlyphRasterizer_ResolveTimeout(t *testing.T) {
	h := newHarness(t, 2, WithResolveTimeout(20*time.Millisecond))
	fi := h.addFont(t, 1)

	h.r.RequestGlyphs(h.cache, &fi, []font.GlyphKey{{Index: 2}}, h.textures)
	h.r.RequestGlyphs(h.cache, &fi, []font.GlyphKey{{Index: fakeBlockGlyph}}, h.textures)

	err := h.r.ResolveGlyphs(context.Background(), h.cache, h.textures, h.gpu, &h.counters)
	if !errors.Is(err, ErrResolveTimeout) {
		t.Fatalf("ResolveGlyphs() error = %v, want ErrResolveTimeout", err)
	}
	if _, ok := h.cache.Get(fi.Key(), font.GlyphKey{Index: fakeBlockGlyph}); ok {
		t.Error("abandoned glyph kept its pending entry")
	}
	if e, ok := h.cache.Get(fi.Key(), font.GlyphKey{Index: 2}); !ok || e.State != EntryCached {
		t.Error("completed batch was not applied")
	}
	if h.counters.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", h.counters.Abandoned)
	}

	close(h.fake.stats.release)
	deadline := time.Now().Add(5 * time.Second)
	for h.r.results.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("late batch never arrived")
		}
		time.Sleep(time.Millisecond)
	}

	h.resolve(t)
	if _, ok := h.cache.Get(fi.Key(), font.GlyphKey{Index: fakeBlockGlyph}); ok {
		t.Error("late result of abandoned batch was applied")
	}
}

func TestGlyphRasterizer_ResolveContextCanceled(t *testing.T) {
	h := newHarness(t, 1)
	fi := h.addFont(t, 1)
	defer close(h.fake.stats.release)

	h.r.RequestGlyphs(h.cache, &fi, []font.GlyphKey{{Index: fakeBlockGlyph}}, h.textures)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.r.ResolveGlyphs(ctx, h.cache, h.textures, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if h.r.Outstanding() != 0 {
		t.Error("canceled resolve left batches outstanding")
	}
}

func TestGlyphRasterizer_PrepareFontQuantizes(t *testing.T) {
	h := newHarness(t, 1)
	fi := font.NewFontInstance(1, font.FontSizeFromPx(12))
	fi.Transform = font.NewFontTransform(1.00001, 0, 0, 0.99999)
	h.r.PrepareFont(&fi)
	if !fi.Transform.IsIdentity() {
		t.Errorf("transform %+v not quantized to identity", fi.Transform)
	}
}

func TestGlyphRasterizer_NextGpuGlyphCacheKey(t *testing.T) {
	h := newHarness(t, 1)
	prev := h.r.NextGpuGlyphCacheKey()
	if prev == 0 {
		t.Fatal("zero key issued")
	}
	for i := 0; i < 100; i++ {
		k := h.r.NextGpuGlyphCacheKey()
		if k <= prev {
			t.Fatalf("key %d not greater than %d", k, prev)
		}
		prev = k
	}
}

func TestRasterTask_RunTwice(t *testing.T) {
	h := newHarness(t, 1)
	fi := h.addFont(t, 1)

	task := &rasterTask{
		batch:    1,
		contexts: h.r.contexts,
		font:     &fi,
		keys:     glyphKeys(1, 2),
		results:  h.r.results,
	}
	if err := task.Run(0); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := task.Run(SharedContext); !errors.Is(err, ErrAlreadyRan) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRan", err)
	}
	if h.r.results.Len() != 1 {
		t.Errorf("results = %d, want 1", h.r.results.Len())
	}
	if h.fake.stats.total() != 2 {
		t.Errorf("rasterizations = %d, want 2", h.fake.stats.total())
	}
}

func TestRasterTask_BadWorkerIndexUsesShared(t *testing.T) {
	h := newHarness(t, 1)
	fi := h.addFont(t, 1)
	task := &rasterTask{batch: 1, contexts: h.r.contexts, font: &fi, keys: glyphKeys(1, 1), results: h.r.results}
	task.runOnWorker(42)
	if h.r.results.Len() != 1 {
		t.Error("task with bad worker index produced no result")
	}
}
