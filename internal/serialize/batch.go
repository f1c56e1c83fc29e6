package serialize

import (
	"context"
	"fmt"

	"github.com/born-ml/frames/internal/parallel"
)

// HostSerializeBatch reduces independent objects concurrently.
//
// Results keep the order of objs. The first failure cancels the remaining
// work and is returned; no partial result is returned.
func (c *Codec) HostSerializeBatch(ctx context.Context, objs []Serializable) ([]Reduction, error) {
	out := make([]Reduction, len(objs))
	err := parallel.ForEach(ctx, len(objs), func(_ context.Context, i int) error {
		red, err := c.Reduce(objs[i])
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		out[i] = red
		return nil
	}, c.parallel)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Releaser is implemented by objects that hold device memory.
type Releaser interface {
	Release()
}

// HostDeserializeBatch rebuilds reductions concurrently, keeping their order.
// On failure, objects already rebuilt are released if they implement Releaser.
func (c *Codec) HostDeserializeBatch(ctx context.Context, reds []Reduction) ([]Serializable, error) {
	out := make([]Serializable, len(reds))
	err := parallel.ForEach(ctx, len(reds), func(_ context.Context, i int) error {
		obj, err := reds[i].Apply()
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		out[i] = obj
		return nil
	}, c.parallel)
	if err != nil {
		for _, obj := range out {
			if r, ok := obj.(Releaser); ok {
				r.Release()
			}
		}
		return nil, err
	}
	return out, nil
}
