// Package parallel runs independent units of work concurrently with a bounded
// number of workers.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Maximum number of concurrent workers.
	MinItems   int  // Below this many items work runs sequentially.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinItems:   2,
	}
}

// Sequential returns a config that disables concurrency.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1}
}

// ForEach executes f(ctx, i) for i in [0, n).
//
// The first error cancels the context passed to the remaining calls and is
// returned. Work not yet started when ctx is cancelled is skipped. Falls back
// to sequential execution if parallelism is disabled or n is too small.
func ForEach(ctx context.Context, n int, f func(ctx context.Context, i int) error, cfg Config) error {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinItems {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.NumWorkers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return f(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
