// Package client is the typed facade over a GraphQL engine.
//
// One-shot calls (Fetch, Perform, Upload, ReadFromCache, ClearCache) return
// a Future immediately. Subscribe returns a stream of results and Watch
// calls back on every change of a query's data. Because Go methods cannot
// take type parameters, the typed calls are package functions taking the
// Client as their second argument.
package client

import (
	"context"
	"fmt"

	"github.com/spiffcs/gqlc/internal/auth"
	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/store"
)

// Client owns one engine, shared by any number of goroutines.
type Client struct {
	handle *handle
	tokens *auth.ProviderRef

	// ctx ends on Close; watchers derive from it.
	ctx    context.Context
	cancel context.CancelFunc
}

var _ auth.TokenProvider = (*Client)(nil)

// New wraps e. tokens is the reference read by the engine's auth
// interceptor; SetTokenProvider swaps what it points to. A nil tokens gets
// a fresh reference that no interceptor reads.
func New(e engine.Engine, tokens *auth.ProviderRef) *Client {
	if tokens == nil {
		tokens = auth.NewProviderRef(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		handle: newHandle(e),
		tokens: tokens,
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewHTTP builds an HTTP engine for endpoint and wraps it. The interceptor
// authenticating with provider runs after any interceptors in opts, so a
// static Authorization header set by one of them only applies while
// provider has no token.
func NewHTTP(endpoint string, provider auth.TokenProvider, opts ...engine.Option) (*Client, error) {
	tokens := auth.NewProviderRef(provider)
	opts = append(opts[:len(opts):len(opts)], engine.WithInterceptors(auth.NewInterceptor(tokens)))

	e, err := engine.New(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return New(e, tokens), nil
}

// SetTokenProvider replaces the token source for subsequent requests.
func (c *Client) SetTokenProvider(p auth.TokenProvider) {
	c.tokens.Set(p)
}

// AuthorizationToken returns the token the next request will carry.
func (c *Client) AuthorizationToken() (string, bool) {
	return c.tokens.AuthorizationToken()
}

// Stats reports on the engine's store when the backend supports it.
func (c *Client) Stats(ctx context.Context) (*store.Stats, error) {
	e, ok := c.handle.borrow()
	if !ok {
		return nil, ErrClientUnavailable
	}
	r, ok := e.Store().(store.StatsReporter)
	if !ok {
		return nil, fmt.Errorf("store %T does not report stats", e.Store())
	}
	return r.Stats(ctx)
}

// Close stops watchers and releases the engine. Pending one-shot calls
// fail with ErrClientUnavailable. Running subscriptions keep the engine
// open until they end.
func (c *Client) Close() error {
	c.cancel()
	return c.handle.release()
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	policy  engine.CachePolicy
	publish bool
}

func newCallOptions(opts []CallOption) callOptions {
	o := callOptions{policy: engine.ReturnCacheDataElseFetch, publish: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCachePolicy sets the cache policy of Fetch and Watch.
func WithCachePolicy(p engine.CachePolicy) CallOption {
	return func(o *callOptions) {
		o.policy = p
	}
}

// WithoutPublishToStore keeps a mutation result out of the store.
func WithoutPublishToStore() CallOption {
	return func(o *callOptions) {
		o.publish = false
	}
}
