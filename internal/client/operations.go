package client

import (
	"context"

	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/operation"
)

// Mapper turns decoded response data into the caller's value. data is nil
// when the response carried no data.
type Mapper[D, T any] func(data *D) *T

// Identity returns the decoded data unchanged.
func Identity[D any]() Mapper[D, D] {
	return func(data *D) *D { return data }
}

// Fetch runs a query under the cache policy given by WithCachePolicy.
func Fetch[D, T any](ctx context.Context, c *Client, q operation.Query[D], mapper Mapper[D, T], opts ...CallOption) *Future[T] {
	o := newCallOptions(opts)
	return newFuture(ctx, false, func(ctx context.Context) (*T, error) {
		e, ok := c.handle.borrow()
		if !ok {
			return nil, ErrClientUnavailable
		}
		resp, err := e.Fetch(ctx, engine.RequestFor(q.Operation), o.policy)
		return complete(ctx, c, q.Operation, resp, err, mapper)
	})
}

// Perform runs a mutation. Its result is published to the store unless
// WithoutPublishToStore is given.
func Perform[D, T any](ctx context.Context, c *Client, m operation.Mutation[D], mapper Mapper[D, T], opts ...CallOption) *Future[T] {
	o := newCallOptions(opts)
	return newFuture(ctx, false, func(ctx context.Context) (*T, error) {
		e, ok := c.handle.borrow()
		if !ok {
			return nil, ErrClientUnavailable
		}
		resp, err := e.Perform(ctx, engine.RequestFor(m.Operation), o.publish)
		return complete(ctx, c, m.Operation, resp, err, mapper)
	})
}

// Upload sends op with files attached as a multipart request.
func Upload[D, T any](ctx context.Context, c *Client, op operation.Any[D], files []engine.File, mapper Mapper[D, T]) *Future[T] {
	base := op.Base()
	return newFuture(ctx, false, func(ctx context.Context) (*T, error) {
		e, ok := c.handle.borrow()
		if !ok {
			return nil, ErrClientUnavailable
		}
		resp, err := e.Upload(ctx, engine.RequestFor(base), files)
		return complete(ctx, c, base, resp, err, mapper)
	})
}

// complete maps one engine completion to the caller's result. Only the
// first GraphQL error of a response is reported.
func complete[D, T any](ctx context.Context, c *Client, op operation.Operation[D], resp *engine.Response, err error, mapper Mapper[D, T]) (*T, error) {
	if !c.handle.alive() {
		return nil, ErrClientUnavailable
	}
	return mapResponse(ctx, op, resp, err, mapper)
}

func mapResponse[D, T any](ctx context.Context, op operation.Operation[D], resp *engine.Response, err error, mapper Mapper[D, T]) (*T, error) {
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, engine.ErrNoResponse
	}
	if len(resp.Errors) > 0 {
		return nil, resp.Errors[0]
	}

	data, err := op.Decode(resp.Data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return mapper(data), nil
}
