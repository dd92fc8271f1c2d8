package glyphraster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/glyphraster/font"
	"github.com/gogpu/glyphraster/internal/parallel"
	"github.com/gogpu/glyphraster/texcache"
)

// WorkerPool runs rasterization jobs. Spawn must call job exactly once,
// passing the index in [0, CurrentNumThreads()) of the worker goroutine
// running it; no two jobs may run with the same index at the same time.
type WorkerPool interface {
	CurrentNumThreads() int
	Spawn(job func(worker int)) error
}

// ThreadPool is the default WorkerPool: fixed-size, one queue per worker,
// with work stealing.
type ThreadPool = parallel.WorkerPool

// ErrPoolClosed is returned by ThreadPool.Spawn after Close.
var ErrPoolClosed = parallel.ErrPoolClosed

// NewThreadPool starts a pool of n workers. n <= 0 uses GOMAXPROCS.
func NewThreadPool(n int) *ThreadPool {
	return parallel.NewWorkerPool(n)
}

var _ WorkerPool = (*ThreadPool)(nil)

// pendingBatch is a spawned batch that has not been resolved yet.
type pendingBatch struct {
	font font.FontInstanceKey
	keys []font.GlyphKey
}

// GlyphRasterizer rasterizes glyphs on a worker pool and folds the results
// into a GlyphCache and TextureCache once per frame.
//
// A frame calls RequestGlyphs any number of times and then ResolveGlyphs
// once. Font management (AddFont, DeleteFont) and the request/resolve calls
// belong to the frame goroutine. GlyphDimensions, GlyphIndex, HasFont and
// PrepareFont are safe to call from any goroutine.
type GlyphRasterizer struct {
	workers  WorkerPool
	backend  EngineBackend
	contexts *FontContextPool
	timeout  time.Duration

	results     *parallel.Queue[GlyphRasterJobs]
	outstanding map[uint64]*pendingBatch
	nextBatch   uint64
	nextGpuKey  GpuGlyphCacheKey

	fontsToDelete []font.FontKey

	// Request statistics since the last resolve.
	requested uint64
	hits      uint64
}

// NewGlyphRasterizer creates the shared font context and one context per
// worker of workers. Worker contexts are created concurrently; the first
// failure is returned as *ResourceCacheError.
func NewGlyphRasterizer(workers WorkerPool, opts ...Option) (*GlyphRasterizer, error) {
	if workers == nil {
		return nil, ErrNilWorkerPool
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var backend EngineBackend
	if o.backend != nil {
		backend = *o.backend
		if backend.PrepareFont == nil {
			backend.PrepareFont = func(*font.FontInstance) {}
		}
	} else {
		b, err := LookupEngine(o.config.Engine)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	shared, err := backend.New()
	if err != nil {
		return nil, &ResourceCacheError{Slot: SharedContext, Err: err}
	}

	n := max(workers.CurrentNumThreads(), 0)
	contexts := make([]FontEngineContext, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			c, err := backend.New()
			if err != nil {
				return &ResourceCacheError{Slot: i, Err: err}
			}
			contexts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Logger().Debug("glyphraster: rasterizer created", "engine", backend.Name, "workers", n)

	return &GlyphRasterizer{
		workers:     workers,
		backend:     backend,
		contexts:    NewFontContextPool(shared, contexts),
		timeout:     o.config.ResolveTimeout,
		results:     parallel.NewQueue[GlyphRasterJobs](),
		outstanding: make(map[uint64]*pendingBatch),
	}, nil
}

// Engine returns the name of the engine backend in use.
func (r *GlyphRasterizer) Engine() string {
	return r.backend.Name
}

// Contexts returns the font context pool.
func (r *GlyphRasterizer) Contexts() *FontContextPool {
	return r.contexts
}

// AddFont registers a font with the shared context and then with every
// worker context in index order. On failure the font is removed from the
// contexts that had accepted it.
func (r *GlyphRasterizer) AddFont(key font.FontKey, template font.FontTemplate) error {
	var add func(FontEngineContext) error
	switch t := template.(type) {
	case font.RawFont:
		add = func(c FontEngineContext) error { return c.AddRawFont(key, t.Data, t.Index) }
	case font.NativeFont:
		add = func(c FontEngineContext) error { return c.AddNativeFont(key, t.Handle) }
	default:
		return fmt.Errorf("%w: %T", ErrUnknownTemplate, template)
	}

	r.fontsToDelete = slices.DeleteFunc(r.fontsToDelete, func(k font.FontKey) bool { return k == key })

	err := r.contexts.ForEachContext(func(slot int, c FontEngineContext) error {
		if err := add(c); err != nil {
			return &FontError{Key: uint64(key), Slot: slot, Err: err}
		}
		return nil
	})
	if err != nil {
		Logger().Warn("glyphraster: add font failed", "font", uint64(key), "err", err)
		_ = r.contexts.ForEachContext(func(_ int, c FontEngineContext) error {
			c.DeleteFont(key)
			return nil
		})
		return err
	}

	Logger().Debug("glyphraster: font added", "font", uint64(key))
	return nil
}

// DeleteFont schedules key for removal from every context. The removal
// happens after the next ResolveGlyphs, so glyphs already requested this
// frame still rasterize. Font keys must not be reused after deletion.
func (r *GlyphRasterizer) DeleteFont(key font.FontKey) {
	r.fontsToDelete = append(r.fontsToDelete, key)
}

// RemoveDeadFonts removes every font scheduled by DeleteFont. The work runs
// as a single background job; if the pool rejects it, it runs inline.
func (r *GlyphRasterizer) RemoveDeadFonts() {
	if len(r.fontsToDelete) == 0 {
		return
	}
	keys := r.fontsToDelete
	r.fontsToDelete = nil

	job := func(int) {
		_ = r.contexts.ForEachContext(func(_ int, c FontEngineContext) error {
			for _, k := range keys {
				c.DeleteFont(k)
			}
			return nil
		})
	}
	if err := r.workers.Spawn(job); err != nil {
		Logger().Debug("glyphraster: deleting fonts inline", "err", err)
		job(SharedContext)
	}
}

// PrepareFont normalizes fi for the engine and quantizes its transform.
// Callers use the prepared instance for every request so that equivalent
// instances share cache entries.
func (r *GlyphRasterizer) PrepareFont(fi *font.FontInstance) {
	r.backend.PrepareFont(fi)
	fi.Transform = fi.Transform.Quantize()
}

// HasFont reports whether key is registered with the shared context.
func (r *GlyphRasterizer) HasFont(key font.FontKey) bool {
	g := r.contexts.LockSharedContext()
	defer g.Unlock()
	return g.Context().HasFont(key)
}

// GlyphDimensions queries glyph metrics on the shared context.
func (r *GlyphRasterizer) GlyphDimensions(fi *font.FontInstance, key font.GlyphKey) (font.GlyphDimensions, bool) {
	g := r.contexts.LockSharedContext()
	defer g.Unlock()
	return g.Context().GlyphDimensions(fi, key)
}

// GlyphIndex maps a character to a glyph index on the shared context.
func (r *GlyphRasterizer) GlyphIndex(key font.FontKey, ch rune) (uint32, bool) {
	g := r.contexts.LockSharedContext()
	defer g.Unlock()
	return g.Context().GlyphIndex(key, ch)
}

// NextGpuGlyphCacheKey issues a new GPU cache key.
func (r *GlyphRasterizer) NextGpuGlyphCacheKey() GpuGlyphCacheKey {
	r.nextGpuKey++
	return r.nextGpuKey
}

// Outstanding returns the number of spawned batches not yet resolved.
func (r *GlyphRasterizer) Outstanding() int {
	return len(r.outstanding)
}

// RequestGlyphs schedules rasterization of every key not already in cache.
// Keys that are cached with a live texture, cached as blank, or pending
// from an earlier request are skipped. The rest are marked pending and
// rasterized as one job on the worker pool.
func (r *GlyphRasterizer) RequestGlyphs(cache *GlyphCache, fi *font.FontInstance, keys []font.GlyphKey, textures *texcache.TextureCache) {
	fik := fi.Key()
	var todo []font.GlyphKey
	for _, key := range keys {
		r.requested++
		prev, ok := cache.Get(fik, key)
		if ok {
			switch prev.State {
			case EntryPending:
				continue
			case EntryBlank:
				r.hits++
				continue
			case EntryCached:
				if textures != nil && textures.IsAllocated(prev.Texture) {
					r.hits++
					continue
				}
			}
		}
		// Carry the stale GPU key so resolve can free it.
		cache.Insert(fik, key, GlyphCacheEntry{State: EntryPending, GpuKey: prev.GpuKey})
		todo = append(todo, key)
	}
	if len(todo) == 0 {
		return
	}

	r.nextBatch++
	batch := r.nextBatch
	r.outstanding[batch] = &pendingBatch{font: fik, keys: todo}

	owned := fi.Clone()
	task := &rasterTask{
		batch:    batch,
		contexts: r.contexts,
		font:     &owned,
		keys:     todo,
		results:  r.results,
	}
	if err := r.workers.Spawn(task.runOnWorker); err != nil {
		Logger().Debug("glyphraster: rasterizing inline", "batch", batch, "err", err)
		_ = task.Run(SharedContext)
	}
}

// resolvedGlyph is one glyph result ready to be folded into the caches.
type resolvedGlyph struct {
	fik    font.FontInstanceKey
	key    font.GlyphKey
	result font.GlyphRasterResult
}

// ResolveGlyphs waits for every outstanding batch and folds the results
// into cache, textures and gpuCache in (font, glyph) order, so atlas
// placement does not depend on worker scheduling. Glyphs that fail to
// rasterize or upload lose their pending entry and are requested again
// the next time they are needed. Fonts scheduled for deletion are removed
// afterwards.
//
// With a ResolveTimeout configured, or when ctx ends first, the batches
// still outstanding are abandoned: their pending entries are removed and
// their late results are ignored. ErrResolveTimeout or the context error
// is returned after the completed batches have been applied.
//
// gpuCache and counters may be nil.
func (r *GlyphRasterizer) ResolveGlyphs(ctx context.Context, cache *GlyphCache, textures *texcache.TextureCache, gpuCache *GpuCache, counters *ProfileCounters) error {
	start := time.Now()
	if counters == nil {
		counters = &ProfileCounters{}
	}

	var batches []GlyphRasterJobs
	accept := func(res GlyphRasterJobs) {
		if _, ok := r.outstanding[res.Batch]; !ok {
			return // abandoned by an earlier timeout
		}
		delete(r.outstanding, res.Batch)
		batches = append(batches, res)
	}
	for {
		res, ok := r.results.TryPop()
		if !ok {
			break
		}
		accept(res)
	}

	waitErr := r.wait(ctx, accept)
	if waitErr != nil {
		counters.Abandoned += uint64(len(r.outstanding))
		for id, b := range r.outstanding {
			for _, key := range b.keys {
				if e := cache.lookup(b.font, key); e != nil && e.State == EntryPending {
					if e.GpuKey != 0 && gpuCache != nil {
						gpuCache.Free(e.GpuKey)
					}
					cache.Remove(b.font, key)
				}
			}
			delete(r.outstanding, id)
		}
		Logger().Warn("glyphraster: abandoned glyph batches", "err", waitErr)
	}

	var glyphs []resolvedGlyph
	for _, b := range batches {
		fik := b.Font.Key()
		for _, job := range b.Jobs {
			glyphs = append(glyphs, resolvedGlyph{fik: fik, key: job.Key, result: job.Result})
		}
	}
	slices.SortFunc(glyphs, func(a, b resolvedGlyph) int {
		if c := a.fik.Compare(b.fik); c != 0 {
			return c
		}
		return a.key.Compare(b.key)
	})

	for i := range glyphs {
		r.resolveGlyph(&glyphs[i], cache, textures, gpuCache, counters)
	}

	counters.Requested += r.requested
	counters.CacheHits += r.hits
	counters.Batches += uint64(len(batches))
	counters.ResolveTime += time.Since(start)
	r.requested, r.hits = 0, 0

	r.RemoveDeadFonts()

	Logger().Debug("glyphraster: resolved glyphs",
		"batches", len(batches), "glyphs", len(glyphs), "elapsed", time.Since(start))
	return waitErr
}

// wait blocks until no batch is outstanding, the timeout elapses or ctx ends.
func (r *GlyphRasterizer) wait(ctx context.Context, accept func(GlyphRasterJobs)) error {
	if len(r.outstanding) == 0 {
		return nil
	}
	waitCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	for len(r.outstanding) > 0 {
		res, err := r.results.Pop(waitCtx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w after %v (%d batches outstanding)", ErrResolveTimeout, r.timeout, len(r.outstanding))
			}
			return fmt.Errorf("glyphraster: resolve glyphs: %w", err)
		}
		accept(res)
	}
	return nil
}

func (r *GlyphRasterizer) resolveGlyph(g *resolvedGlyph, cache *GlyphCache, textures *texcache.TextureCache, gpuCache *GpuCache, counters *ProfileCounters) {
	prev := cache.lookup(g.fik, g.key)
	if prev == nil || prev.State != EntryPending {
		// Cleared while the batch was in flight.
		return
	}
	if prev.GpuKey != 0 && gpuCache != nil {
		gpuCache.Free(prev.GpuKey)
	}

	if g.result.Failed() {
		counters.Failed++
		cache.Remove(g.fik, g.key)
		Logger().Debug("glyphraster: glyph failed",
			"font", uint64(g.fik.FontKey), "glyph", uint32(g.key.Index), "err", g.result.Err())
		return
	}
	counters.Rasterized++

	glyph := g.result.Glyph()
	if glyph.IsEmpty() {
		counters.Blank++
		cache.Insert(g.fik, g.key, GlyphCacheEntry{State: EntryBlank, Format: glyph.Format})
		return
	}

	if textures == nil {
		counters.Failed++
		cache.Remove(g.fik, g.key)
		return
	}
	handle, alloc, err := textures.Upload(glyph)
	if err != nil {
		counters.Failed++
		cache.Remove(g.fik, g.key)
		Logger().Warn("glyphraster: glyph upload failed",
			"font", uint64(g.fik.FontKey), "glyph", uint32(g.key.Index), "err", err)
		return
	}
	counters.UploadedBytes += int64(len(glyph.Bytes))

	entry := GlyphCacheEntry{
		State:   EntryCached,
		Texture: handle,
		Format:  glyph.Format,
		Left:    glyph.Left,
		Top:     glyph.Top,
		Scale:   glyph.Scale,
		Width:   glyph.Width,
		Height:  glyph.Height,
	}
	if gpuCache != nil {
		entry.GpuKey = r.NextGpuGlyphCacheKey()
		page := textures.Page(alloc.Page)
		u0, v0, u1, v1 := alloc.UV(page.Width, page.Height)
		gpuCache.Set(entry.GpuKey, GlyphBlock{
			UV:     [4]float32{u0, v0, u1, v1},
			Offset: [2]float32{glyph.Left, glyph.Top},
			Size:   [2]float32{float32(glyph.Width), float32(glyph.Height)},
			Scale:  glyph.Scale,
			Page:   alloc.Page,
			Format: glyph.Format,
		})
	}
	cache.Insert(g.fik, g.key, entry)
}

// ReleaseEvicted frees the texture and GPU slots of entries returned by
// GlyphCache.Maintain or GlyphCache.ClearFonts.
func ReleaseEvicted(evicted []EvictedGlyph, textures *texcache.TextureCache, gpuCache *GpuCache) {
	for _, ev := range evicted {
		if ev.Entry.State != EntryCached {
			continue
		}
		if textures != nil {
			_ = textures.Free(ev.Entry.Texture) // already freed handles are fine
		}
		if gpuCache != nil && ev.Entry.GpuKey != 0 {
			gpuCache.Free(ev.Entry.GpuKey)
		}
	}
}
