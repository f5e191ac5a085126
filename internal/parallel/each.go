package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Each calls fn for every element in its own goroutine and waits until
// all of them return. There is no limit and no early cancellation: a slow or
// failing element never stops its siblings.
func Each[E any](ctx context.Context, elems []E, fn func(context.Context, E)) {
	var g errgroup.Group
	for _, e := range elems {
		g.Go(func() error {
			fn(ctx, e)
			return nil
		})
	}
	_ = g.Wait() // fn does not return an error
}
