package glyphraster

import "time"

// Option configures a GlyphRasterizer during creation.
//
// Example:
//
//	r, err := glyphraster.NewGlyphRasterizer(pool,
//	    glyphraster.WithEngine("gotext"),
//	    glyphraster.WithResolveTimeout(time.Second))
type Option func(*options)

type options struct {
	config  Config
	backend *EngineBackend
}

func defaultOptions() options {
	return options{config: DefaultConfig()}
}

// WithConfig applies a whole configuration, typically from LoadConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg.withDefaults()
	}
}

// WithEngine selects a registered engine backend by name.
func WithEngine(name string) Option {
	return func(o *options) {
		o.config.Engine = name
		o.backend = nil
	}
}

// WithEngineBackend uses b directly without registering it.
func WithEngineBackend(b EngineBackend) Option {
	return func(o *options) {
		o.backend = &b
		o.config.Engine = b.Name
	}
}

// WithResolveTimeout bounds the wait in ResolveGlyphs.
func WithResolveTimeout(d time.Duration) Option {
	return func(o *options) {
		if d < 0 {
			d = 0
		}
		o.config.ResolveTimeout = d
	}
}
