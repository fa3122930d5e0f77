package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Bounded runs fn for indices [0, n) keeping at most limit calls in flight.
// It is the sliding window used for per-item sub-fetches (e.g. review-state
// lookups): as each call completes the next pending index is scheduled.
//
// fn must return nil for recoverable per-item failures and an error only
// for fatal conditions. On the first fatal error no further indices are
// issued, in-flight work is cancelled through the derived context, and the
// fatal error is returned.
func Bounded(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) error {
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		// Stop scheduling once a fatal error cancelled the group. The
		// check sits before Go so queued work after a fatal completion
		// never issues a request.
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return fn(gctx, i)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}
