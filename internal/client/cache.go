package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/store"
)

// ReadFromCache returns the stored data of op without touching the
// network. Nothing stored resolves to nil data. The read starts on the
// first Await or Done.
func ReadFromCache[D any](ctx context.Context, c *Client, op operation.Any[D]) *Future[D] {
	base := op.Base()
	return newFuture(ctx, true, func(ctx context.Context) (*D, error) {
		e, ok := c.handle.borrow()
		if !ok {
			return nil, ErrClientUnavailable
		}
		raw, found, err := e.Store().Load(ctx, base.Key())
		if !c.handle.alive() {
			return nil, ErrClientUnavailable
		}
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return base.Decode(raw)
	})
}

// WriteToCache updates the stored data of q in one transaction. mutate
// receives the current data, or the zero value of D when nothing is
// stored, and changes it in place. If mutate fails nothing is written.
// Watchers of q are notified once the transaction commits.
func WriteToCache[D any](ctx context.Context, c *Client, q operation.Query[D], mutate func(data *D) error) error {
	e, ok := c.handle.borrow()
	if !ok {
		return ErrClientUnavailable
	}

	key := q.Key()
	return e.Store().WithinReadWriteTransaction(ctx, func(tx store.Transaction) error {
		raw, found, err := tx.Read(key)
		if err != nil {
			return err
		}

		data := new(D)
		if found {
			decoded, err := q.Decode(raw)
			if err != nil {
				return err
			}
			if decoded != nil {
				data = decoded
			}
		}

		if err := mutate(data); err != nil {
			return err
		}

		out, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode cache data: %w", err)
		}
		return tx.Write(key, out)
	})
}

// ClearCache removes every stored result. Watchers are not notified.
func ClearCache(ctx context.Context, c *Client) *Future[struct{}] {
	return newFuture(ctx, false, func(ctx context.Context) (*struct{}, error) {
		e, ok := c.handle.borrow()
		if !ok {
			return nil, ErrClientUnavailable
		}
		err := e.Store().Clear(ctx)
		if !c.handle.alive() {
			return nil, ErrClientUnavailable
		}
		if err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})
}
