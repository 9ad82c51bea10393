package hydra

import (
	"context"
)

// Future is a one-shot promise of an operation's outcome. Engine methods
// return a Future immediately; the caller chooses when (and whether) to
// block on it. A Future is completed exactly once.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// completedFuture returns an already-resolved future. Used for synchronous
// rejections (dimension mismatch) where no work is ever scheduled.
func completedFuture[T any](val T, err error) *Future[T] {
	f := newFuture[T]()
	f.complete(val, err)
	return f
}

func (f *Future[T]) complete(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Done returns a channel closed when the future resolves
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx is cancelled. Cancelling the
// wait abandons the caller's interest only; the underlying work still runs
// to completion on its engine's executor.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// MustWait is Wait with a background context, for callers that have no
// cancellation to propagate.
func (f *Future[T]) MustWait() (T, error) {
	return f.Wait(context.Background())
}

// submit schedules fn on the executor and returns its future
func submit[T any](ex executor, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	ex.Submit(func() {
		f.complete(fn())
	})
	return f
}
