package client

import (
	"context"

	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
)

// Watcher keeps a query's callback running until cancelled.
type Watcher struct {
	watch  engine.Watch
	cancel context.CancelFunc
}

// Watch calls callback with the query's data on every update, in order.
// Errors are never reported: a failed fetch or undecodable data calls
// callback with nil. GraphQL errors in a response are ignored and its data
// is used. The watch ends on Cancel, when ctx ends, or when the client
// closes.
func Watch[D any](ctx context.Context, c *Client, q operation.Query[D], callback func(data *D), opts ...CallOption) *Watcher {
	o := newCallOptions(opts)

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	w := &Watcher{cancel: func() {
		stop()
		cancel()
	}}

	e, ok := c.handle.borrow()
	if !ok {
		log.Debug("watch on closed client", "operation", q.Name)
		cancel()
		return w
	}

	logger := log.With("watch", q.Name)
	w.watch = e.Watch(ctx, engine.RequestFor(q.Operation), o.policy, func(resp *engine.Response, err error) {
		if ctx.Err() != nil || !c.handle.alive() {
			return
		}
		if err != nil {
			logger.Debug("watch update failed", "error", err)
			callback(nil)
			return
		}
		if resp != nil && len(resp.Errors) > 0 {
			logger.Debug("watch update carried errors", "first", resp.Errors[0].Message, "count", len(resp.Errors))
		}

		var raw []byte
		if resp != nil {
			raw = resp.Data
		}
		data, err := q.Decode(raw)
		if err != nil {
			logger.Debug("watch data could not be decoded", "error", err)
			callback(nil)
			return
		}
		callback(data)
	})
	return w
}

// Refetch re-runs the watched query against the network.
func (w *Watcher) Refetch() {
	if w.watch != nil {
		w.watch.Refetch()
	}
}

// Cancel stops the watch. No callback starts after Cancel returns.
func (w *Watcher) Cancel() {
	w.cancel()
	if w.watch != nil {
		w.watch.Cancel()
	}
}
