package glyphraster

import (
	"log/slog"
	"time"
)

// ProfileCounters accumulates glyph rasterization statistics. ResolveGlyphs
// adds to the counters it is given; call Reset to start a new interval.
type ProfileCounters struct {
	// Requested counts glyph keys passed to RequestGlyphs.
	Requested uint64
	// CacheHits counts requested glyphs that were already resolved.
	CacheHits uint64
	// Batches counts rasterization jobs resolved.
	Batches uint64
	// Rasterized counts glyphs that produced a result, blank ones included.
	Rasterized uint64
	// Failed counts glyphs that could not be rasterized or uploaded.
	Failed uint64
	// Blank counts glyphs without pixels.
	Blank uint64
	// Abandoned counts batches dropped by a resolve timeout.
	Abandoned     uint64
	UploadedBytes int64
	ResolveTime   time.Duration
}

// Reset zeroes every counter.
func (c *ProfileCounters) Reset() {
	*c = ProfileCounters{}
}

// LogValue implements slog.LogValuer.
func (c *ProfileCounters) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("requested", c.Requested),
		slog.Uint64("hits", c.CacheHits),
		slog.Uint64("batches", c.Batches),
		slog.Uint64("rasterized", c.Rasterized),
		slog.Uint64("failed", c.Failed),
		slog.Uint64("blank", c.Blank),
		slog.Uint64("abandoned", c.Abandoned),
		slog.Int64("uploaded_bytes", c.UploadedBytes),
		slog.Duration("resolve_time", c.ResolveTime),
	)
}
