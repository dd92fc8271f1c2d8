package glyphraster

import (
	"errors"
	"fmt"
)

// Sentinel errors for glyphraster package.
var (
	// ErrAlreadyRan is returned when a rasterization task is run twice.
	ErrAlreadyRan = errors.New("glyphraster: task already ran")

	// ErrResolveTimeout is returned by ResolveGlyphs when ResolveTimeout
	// elapsed before every batch reported back.
	ErrResolveTimeout = errors.New("glyphraster: timed out waiting for glyph batches")

	// ErrUnknownTemplate is returned by AddFont for a nil or foreign FontTemplate.
	ErrUnknownTemplate = errors.New("glyphraster: unknown font template")

	// ErrUnknownEngine is returned when no engine backend is registered under a name.
	ErrUnknownEngine = errors.New("glyphraster: unknown engine backend")

	// ErrNilWorkerPool is returned by NewGlyphRasterizer without a worker pool.
	ErrNilWorkerPool = errors.New("glyphraster: nil worker pool")
)

// SharedContext is the context id of the shared font context.
const SharedContext = -1

// ResourceCacheError reports that a font context could not be created.
// Slot is the worker index, or SharedContext for the shared context.
type ResourceCacheError struct {
	Slot int
	Err  error
}

func (e *ResourceCacheError) Error() string {
	if e.Slot == SharedContext {
		return fmt.Sprintf("glyphraster: create shared font context: %v", e.Err)
	}
	return fmt.Sprintf("glyphraster: create font context for worker %d: %v", e.Slot, e.Err)
}

func (e *ResourceCacheError) Unwrap() error { return e.Err }

// WorkerIndexError is the panic value of LockContext for an id that is
// neither SharedContext nor a valid worker index.
type WorkerIndexError struct {
	ID      int
	Workers int
}

func (e *WorkerIndexError) Error() string {
	return fmt.Sprintf("glyphraster: worker context %d out of range [0, %d)", e.ID, e.Workers)
}

// FontError reports a font that could not be registered with one context.
type FontError struct {
	Key  uint64
	Slot int
	Err  error
}

func (e *FontError) Error() string {
	return fmt.Sprintf("glyphraster: add font %d to context %d: %v", e.Key, e.Slot, e.Err)
}

func (e *FontError) Unwrap() error { return e.Err }
