package client

import (
	"context"
	"errors"

	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
)

// Result is one subscription event: a mapped value or an error.
type Result[T any] struct {
	Value *T
	Err   error
}

// Subscription streams the results of a subscription operation. It keeps
// the client's engine open until the stream ends.
type Subscription[T any] struct {
	results chan Result[T]
	done    chan struct{}
	cancel  context.CancelFunc
}

// Subscribe starts a subscription. Each server event produces one Result;
// a failed transport produces a final failed Result. The channel returned
// by Results closes when the stream ends.
func Subscribe[D, T any](ctx context.Context, c *Client, s operation.Subscription[D], mapper Mapper[D, T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		results: make(chan Result[T]),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	e, ok := c.handle.retain()
	if !ok {
		go func() {
			defer close(sub.done)
			defer close(sub.results)
			sub.send(ctx, Result[T]{Err: ErrClientUnavailable})
		}()
		return sub
	}

	go func() {
		defer close(sub.done)
		defer close(sub.results)
		defer c.handle.drop()
		defer cancel()

		err := e.Subscribe(ctx, engine.RequestFor(s.Operation), func(resp *engine.Response, err error) {
			v, err := mapResponse(ctx, s.Operation, resp, err, mapper)
			sub.send(ctx, Result[T]{Value: v, Err: err})
		})
		if err != nil && ctx.Err() == nil {
			sub.send(ctx, Result[T]{Err: err})
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Debug("subscription ended", "operation", s.Name, "error", err)
		}
	}()
	return sub
}

func (s *Subscription[T]) send(ctx context.Context, r Result[T]) {
	select {
	case s.results <- r:
	case <-ctx.Done():
	}
}

// Results returns the event stream. Events are delivered unbuffered; a
// slow reader slows the subscription.
func (s *Subscription[T]) Results() <-chan Result[T] {
	return s.results
}

// Cancel ends the subscription. Pending events are dropped.
func (s *Subscription[T]) Cancel() {
	s.cancel()
}

// Done is closed once the subscription has released the engine.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}
