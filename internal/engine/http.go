package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/store"
)

var _ Engine = (*HTTPEngine)(nil)

// HTTPEngine speaks GraphQL over HTTP POST, GraphQL multipart uploads for
// files, and graphql-transport-ws over websocket for subscriptions.
type HTTPEngine struct {
	endpoint     string
	wsEndpoint   string
	httpClient   *http.Client
	dialer       *websocket.Dialer
	store        store.Store
	interceptors []Interceptor

	inflight singleflight.Group

	// ctx ends when the engine closes; background refreshes and watches
	// derive from it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures an HTTPEngine.
type Option func(*HTTPEngine)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *HTTPEngine) {
		e.httpClient = c
	}
}

// WithStore replaces the default in-memory store. The engine closes it.
func WithStore(s store.Store) Option {
	return func(e *HTTPEngine) {
		e.store = s
	}
}

// WithInterceptors appends stages between the cache stages and the network.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(e *HTTPEngine) {
		e.interceptors = append(e.interceptors, interceptors...)
	}
}

// WithSubscriptionEndpoint sets the websocket URL. By default it is the
// HTTP endpoint with its scheme switched to ws or wss.
func WithSubscriptionEndpoint(u string) Option {
	return func(e *HTTPEngine) {
		e.wsEndpoint = u
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(e *HTTPEngine) {
		e.dialer = d
	}
}

// New creates an engine posting to endpoint.
func New(endpoint string, opts ...Option) (*HTTPEngine, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}

	e := &HTTPEngine{endpoint: endpoint}
	for _, opt := range opts {
		opt(e)
	}

	if e.httpClient == nil {
		e.httpClient = &http.Client{
			Timeout: constants.DefaultTimeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    constants.MaxIdleConns,
				IdleConnTimeout: constants.IdleConnTimeout,
			},
		}
	}
	if e.store == nil {
		e.store = store.NewMemory()
	}
	if e.dialer == nil {
		e.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: constants.DefaultTimeout,
		}
	}
	if e.wsEndpoint == "" {
		ws := *u
		if u.Scheme == "https" {
			ws.Scheme = "wss"
		} else {
			ws.Scheme = "ws"
		}
		e.wsEndpoint = ws.String()
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// Endpoint returns the HTTP endpoint.
func (e *HTTPEngine) Endpoint() string {
	return e.endpoint
}

func (e *HTTPEngine) Store() store.Store {
	return e.store
}

func (e *HTTPEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// goBackground runs fn on a goroutine that Close waits for.
func (e *HTTPEngine) goBackground(fn func(ctx context.Context)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
	return true
}

// chain assembles the stages for one call.
func (e *HTTPEngine) chain(head []Interceptor, terminal Interceptor) Chain {
	stages := make([]Interceptor, 0, len(head)+len(e.interceptors)+1)
	stages = append(stages, head...)
	stages = append(stages, e.interceptors...)
	stages = append(stages, terminal)
	return NewChain(stages...)
}

func (e *HTTPEngine) Fetch(ctx context.Context, req *Request, policy CachePolicy) (*Response, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	log.Debug("fetch", "operation", req.OperationName, "key", req.CacheKey, "policy", policy)

	head := []Interceptor{
		&cacheReadStage{engine: e, policy: policy},
		&cacheWriteStage{store: e.store, publish: policy != FetchIgnoringCacheCompletely},
	}
	return e.chain(head, &networkStage{engine: e}).Proceed(ctx, req.Clone())
}

func (e *HTTPEngine) Perform(ctx context.Context, req *Request, publishToStore bool) (*Response, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	log.Debug("perform", "operation", req.OperationName, "publish", publishToStore)

	head := []Interceptor{&cacheWriteStage{store: e.store, publish: publishToStore}}
	return e.chain(head, &networkStage{engine: e}).Proceed(ctx, req.Clone())
}

func (e *HTTPEngine) Upload(ctx context.Context, req *Request, files []File) (*Response, error) {
	if e.isClosed() {
		return nil, ErrClosed
	}
	log.Debug("upload", "operation", req.OperationName, "files", len(files))

	return e.chain(nil, &uploadStage{engine: e, files: files}).Proceed(ctx, req.Clone())
}

// Close stops background work, waits for it and closes the store.
func (e *HTTPEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.httpClient.CloseIdleConnections()
	return e.store.Close()
}
