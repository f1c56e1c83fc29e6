// Package serialize splits objects into a header and frames and rebuilds them,
// migrating device frames to host memory when a transport needs it.
package serialize

import (
	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/log"
	"github.com/born-ml/frames/internal/metrics"
	"github.com/born-ml/frames/internal/parallel"
	"github.com/born-ml/frames/internal/serialization"
)

// Codec runs the serialization adapters against a registry and an allocator.
// A Codec holds no per-call state and is safe for concurrent use.
type Codec struct {
	registry  *Registry
	allocator device.Allocator
	logger    log.Log
	metrics   *metrics.Collector
	parallel  parallel.Config
	reader    serialization.ReaderOptions
}

// Option configures a Codec.
type Option func(*Codec)

// WithRegistry sets the type registry. Defaults to DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(c *Codec) {
		c.registry = r
	}
}

// WithAllocator sets the allocator used to migrate device frames.
func WithAllocator(a device.Allocator) Option {
	return func(c *Codec) {
		c.allocator = a
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l log.Log) Option {
	return func(c *Codec) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Codec) {
		c.metrics = m
	}
}

// WithParallel sets the concurrency used by the batch helpers.
func WithParallel(cfg parallel.Config) Option {
	return func(c *Codec) {
		c.parallel = cfg
	}
}

// WithReaderOptions sets how Unmarshal and ReadFrom validate envelopes.
func WithReaderOptions(opts serialization.ReaderOptions) Option {
	return func(c *Codec) {
		c.reader = opts
	}
}

// New creates a codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		registry: DefaultRegistry,
		logger:   log.NewNop(),
		parallel: parallel.DefaultConfig(),
		reader:   serialization.DefaultReaderOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = DefaultRegistry
	}
	if c.logger == nil {
		c.logger = log.NewNop()
	}
	return c
}

// Registry returns the codec's registry.
func (c *Codec) Registry() *Registry {
	return c.registry
}

// Allocator returns the codec's allocator, or nil.
func (c *Codec) Allocator() device.Allocator {
	return c.allocator
}

func (c *Codec) fail(op string, err error) error {
	c.metrics.Failed(errorKind(err))
	c.logger.Warn("serialize failed", log.String("op", op), log.Err(err))
	return err
}
