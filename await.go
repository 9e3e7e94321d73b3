package asynx

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Await drives f to completion on the calling goroutine.
//
// Between failed polls it backs off with the same spin-then-sleep policy the
// locks in this package use. When ctx is done before f completes, Await
// cancels f (if it implements Canceler) and returns ctx.Err().
//
// Await is a convenience driver, not a scheduler: it polls f on the calling
// goroutine and blocks that goroutine until f completes or ctx is done.
func Await[T any](ctx context.Context, f Future[T]) (T, error) {
	if v, ok := f.Poll(); ok {
		return v, nil
	}
	var spins int
	for {
		if err := ctx.Err(); err != nil {
			if c, ok := f.(Canceler); ok {
				c.Cancel()
			}
			var zero T
			return zero, err
		}
		delay(&spins)
		if v, ok := f.Poll(); ok {
			return v, nil
		}
	}
}

// AwaitAll drives every future concurrently, one goroutine each, and
// returns their results in argument order.
//
// The first failure cancels the context seen by the remaining futures;
// the returned error is that first failure.
func AwaitAll[T any](ctx context.Context, fs ...Future[T]) ([]T, error) {
	g, gctx := errgroup.WithContext(ctx)
	out := make([]T, len(fs))
	for i, f := range fs {
		g.Go(func() error {
			v, err := Await(gctx, f)
			out[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
