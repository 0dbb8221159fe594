package client

import (
	"context"
	"sync"
)

// Future is the pending result of a one-shot call. It resolves exactly once,
// with a value (possibly nil) or an error.
type Future[T any] struct {
	done   chan struct{}
	once   sync.Once
	value  *T
	err    error
	cancel context.CancelFunc

	start     func()
	startOnce sync.Once
}

// newFuture runs fn with a context cancelled by the parent, by Cancel, or
// once the future resolves. Cancellation resolves the future immediately
// with the context error. A lazy future starts fn on its first Await or Done.
func newFuture[T any](parent context.Context, lazy bool, fn func(ctx context.Context) (*T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(parent)
	f := &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	context.AfterFunc(ctx, func() {
		f.resolve(nil, ctx.Err())
	})
	f.start = func() {
		go func() {
			v, err := fn(ctx)
			f.resolve(v, err)
		}()
	}
	if !lazy {
		f.startOnce.Do(f.start)
	}
	return f
}

func (f *Future[T]) resolve(v *T, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
		f.cancel()
	})
}

// Done returns a channel closed once the future resolves. It starts a lazy
// future.
func (f *Future[T]) Done() <-chan struct{} {
	f.startOnce.Do(f.start)
	return f.done
}

// Await blocks until the future resolves or ctx ends. Giving up on ctx does
// not cancel the future.
func (f *Future[T]) Await(ctx context.Context) (*T, error) {
	select {
	case <-f.Done():
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the underlying call. A pending future resolves with
// context.Canceled; a resolved one is unaffected.
func (f *Future[T]) Cancel() {
	f.cancel()
}
