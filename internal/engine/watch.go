package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/spiffcs/gqlc/internal/log"
)

type watchEvent struct {
	resp *Response
	err  error
}

// queryWatch delivers the initial result of a query and then every store
// change of its key, in order, on a single goroutine. Deliveries whose data
// equals the previous delivery are skipped.
type queryWatch struct {
	engine  *HTTPEngine
	req     *Request
	policy  CachePolicy
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []watchEvent
	signal  chan struct{}

	unwatch func()
}

// Watch starts watching req. If the engine is already closed, handler is
// called once with ErrClosed and the returned Watch is inert.
func (e *HTTPEngine) Watch(ctx context.Context, req *Request, policy CachePolicy, handler Handler) Watch {
	w := &queryWatch{
		engine:  e,
		req:     req.Clone(),
		policy:  policy,
		handler: handler,
		signal:  make(chan struct{}, 1),
	}
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.unwatch = e.store.Watch(w.req.CacheKey, func(data json.RawMessage) {
		w.push(watchEvent{resp: &Response{Data: data, Source: SourceCache}})
	})

	started := e.goBackground(func(engineCtx context.Context) {
		stop := context.AfterFunc(engineCtx, w.Cancel)
		defer stop()
		defer w.Cancel()
		w.deliver()
	})
	if !started {
		w.Cancel()
		handler(nil, ErrClosed)
		return w
	}

	log.Debug("watch started", "operation", req.OperationName, "key", req.CacheKey)
	w.fetch(policy, true)
	return w
}

// fetch runs the query on a background goroutine. Successful results of a
// refetch reach the watcher through the store notification, so only the
// initial result and failures are pushed directly.
func (w *queryWatch) fetch(policy CachePolicy, initial bool) {
	w.engine.goBackground(func(engineCtx context.Context) {
		ctx, cancel := context.WithCancel(w.ctx)
		defer cancel()
		stop := context.AfterFunc(engineCtx, cancel)
		defer stop()

		resp, err := w.engine.Fetch(ctx, w.req, policy)
		if w.ctx.Err() != nil {
			return
		}
		if initial || err != nil || len(resp.Errors) > 0 {
			w.push(watchEvent{resp: resp, err: err})
		}
	})
}

func (w *queryWatch) push(ev watchEvent) {
	if w.ctx.Err() != nil {
		return
	}
	w.mu.Lock()
	w.pending = append(w.pending, ev)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *queryWatch) deliver() {
	var last json.RawMessage
	var delivered bool

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.signal:
		}

		w.mu.Lock()
		events := w.pending
		w.pending = nil
		w.mu.Unlock()

		for _, ev := range events {
			if w.ctx.Err() != nil {
				return
			}
			if ev.err == nil && ev.resp != nil && len(ev.resp.Errors) == 0 {
				if delivered && bytes.Equal(last, ev.resp.Data) {
					continue
				}
				last = ev.resp.Data
				delivered = true
			}
			w.handler(ev.resp, ev.err)
		}
	}
}

func (w *queryWatch) Refetch() {
	if w.ctx.Err() != nil {
		return
	}
	log.Debug("watch refetch", "operation", w.req.OperationName, "key", w.req.CacheKey)
	w.fetch(FetchIgnoringCacheData, false)
}

// Cancel stops deliveries. A delivery already running finishes; no new one
// starts. Safe to call from the handler.
func (w *queryWatch) Cancel() {
	w.cancel()
	w.unwatch()
}
