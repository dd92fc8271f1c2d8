package glyphraster

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/glyphraster/font"
	"github.com/gogpu/glyphraster/internal/parallel"
)

// GlyphRasterJob is the result for one glyph of a batch.
type GlyphRasterJob struct {
	Key    font.GlyphKey
	Result font.GlyphRasterResult
}

// GlyphRasterJobs is the result of one batch: every glyph requested for one
// font instance in one RequestGlyphs call.
type GlyphRasterJobs struct {
	Batch uint64
	Font  *font.FontInstance
	Jobs  []GlyphRasterJob
}

// PanicError is the failure recorded for a glyph whose engine panicked.
type PanicError struct {
	Key   font.GlyphKey
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("glyphraster: engine panicked on glyph %d: %v", e.Key.Index, e.Value)
}

// rasterTask rasterizes one batch on whichever context it is given and
// pushes exactly one GlyphRasterJobs to results.
type rasterTask struct {
	batch    uint64
	contexts *FontContextPool
	font     *font.FontInstance
	keys     []font.GlyphKey
	results  *parallel.Queue[GlyphRasterJobs]
	ran      atomic.Bool
}

// runOnWorker is the job handed to the worker pool. Worker indices the pool
// should never produce fall back to the shared context.
func (t *rasterTask) runOnWorker(worker int) {
	if worker < 0 || worker >= t.contexts.NumWorkerContexts() {
		worker = SharedContext
	}
	_ = t.Run(worker) // only fails on a second run, which the pool never does
}

// Run rasterizes the batch on context slot. A second call returns
// ErrAlreadyRan without doing any work.
func (t *rasterTask) Run(slot int) error {
	if !t.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRan
	}

	jobs := make([]GlyphRasterJob, len(t.keys))
	g := t.contexts.LockContext(slot)
	ctx := g.Context()
	for i, key := range t.keys {
		jobs[i] = GlyphRasterJob{Key: key, Result: rasterizeGlyph(ctx, t.font, key)}
	}
	g.Unlock()

	t.results.Push(GlyphRasterJobs{Batch: t.batch, Font: t.font, Jobs: jobs})
	return nil
}

// rasterizeGlyph turns an engine panic into a LoadFailed result so that one
// bad glyph cannot lose the whole batch.
func rasterizeGlyph(ctx FontEngineContext, fi *font.FontInstance, key font.GlyphKey) (result font.GlyphRasterResult) {
	defer func() {
		if v := recover(); v != nil {
			Logger().Warn("glyphraster: recovered engine panic",
				"font", uint64(fi.FontKey), "glyph", uint32(key.Index), "panic", v)
			result = font.LoadFailed(&PanicError{Key: key, Value: v})
		}
	}()
	return ctx.Rasterize(fi, key)
}
