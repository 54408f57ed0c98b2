package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Concurrent runs action for every item in its own goroutine, at most limit at
// a time when limit > 0. The context passed to action is cancelled on the first
// error, which is the error returned.
func Concurrent[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return action(ctx, item)
		})
	}
	return g.Wait()
}

// ParallelMap applies mapFn to every item concurrently and returns the results
// in input order. On error the partial results are discarded.
func ParallelMap[T any, R any](ctx context.Context, items []T, limit int, mapFn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for idx, item := range items {
		g.Go(func() error {
			r, err := mapFn(ctx, item)
			if err != nil {
				return err
			}
			out[idx] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Collect applies fn to every item concurrently and keeps going past failures.
// Results and errors are returned in input order; errs[i] is nil when item i
// succeeded.
func Collect[T any, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) (out []R, errs []error) {
	out = make([]R, len(items))
	errs = make([]error, len(items))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for idx, item := range items {
		g.Go(func() error {
			out[idx], errs[idx] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}
