package glyphraster

import "sync"

// FontContextPool owns one font engine context per worker plus one shared
// context, each behind its own mutex.
//
// Worker contexts are normally used by the worker of the same index, so
// their locks are uncontended. The shared context serves callers on other
// goroutines (dimension queries, glyph index lookups, inline fallback).
type FontContextPool struct {
	shared  *lockedContext
	workers []*lockedContext
}

type lockedContext struct {
	mu  sync.Mutex
	ctx FontEngineContext
}

// ContextGuard is exclusive access to one context. Call Unlock when done.
type ContextGuard struct {
	lc *lockedContext
}

// Context returns the guarded context. It must not be used after Unlock.
func (g *ContextGuard) Context() FontEngineContext {
	return g.lc.ctx
}

// Unlock releases the context. Calling Unlock more than once is a no-op.
func (g *ContextGuard) Unlock() {
	if g.lc == nil {
		return
	}
	lc := g.lc
	g.lc = nil
	lc.mu.Unlock()
}

// NewFontContextPool wraps shared and one context per worker.
func NewFontContextPool(shared FontEngineContext, workers []FontEngineContext) *FontContextPool {
	p := &FontContextPool{
		shared:  &lockedContext{ctx: shared},
		workers: make([]*lockedContext, len(workers)),
	}
	for i, w := range workers {
		p.workers[i] = &lockedContext{ctx: w}
	}
	return p
}

// LockContext blocks until the context for id is available. id is either
// SharedContext or a worker index in [0, NumWorkerContexts()). Any other id
// is a programming error and panics with *WorkerIndexError.
func (p *FontContextPool) LockContext(id int) *ContextGuard {
	var lc *lockedContext
	switch {
	case id == SharedContext:
		lc = p.shared
	case id >= 0 && id < len(p.workers):
		lc = p.workers[id]
	default:
		panic(&WorkerIndexError{ID: id, Workers: len(p.workers)})
	}
	lc.mu.Lock()
	return &ContextGuard{lc: lc}
}

// LockSharedContext is LockContext(SharedContext).
func (p *FontContextPool) LockSharedContext() *ContextGuard {
	return p.LockContext(SharedContext)
}

// NumWorkerContexts returns the number of worker contexts, excluding the
// shared one.
func (p *FontContextPool) NumWorkerContexts() int {
	return len(p.workers)
}

// ForEachContext calls fn for the shared context and then every worker
// context in index order, holding each context's lock during its call.
// Stops at and returns the first error.
func (p *FontContextPool) ForEachContext(fn func(slot int, ctx FontEngineContext) error) error {
	if err := p.with(SharedContext, fn); err != nil {
		return err
	}
	for i := range p.workers {
		if err := p.with(i, fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *FontContextPool) with(slot int, fn func(int, FontEngineContext) error) error {
	g := p.LockContext(slot)
	defer g.Unlock()
	return fn(slot, g.Context())
}
