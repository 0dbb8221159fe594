package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/store"
)

const heroQuery = `query Hero($episode: String) { hero(episode: $episode) { name } }`

func heroRequest() *Request {
	return NewRequest(operation.KindQuery, heroQuery, "Hero", map[string]any{"episode": "JEDI"})
}

func TestNewValidatesEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		wantErr  bool
	}{
		{endpoint: "http://localhost:4000/graphql"},
		{endpoint: "https://api.example.com/graphql"},
		{endpoint: "ftp://example.com", wantErr: true},
		{endpoint: "://bad", wantErr: true},
	}
	for _, tt := range tests {
		e, err := New(tt.endpoint)
		if tt.wantErr {
			require.Error(t, err, tt.endpoint)
			continue
		}
		require.NoError(t, err, tt.endpoint)
		require.NoError(t, e.Close())
	}
}

func TestSubscriptionEndpointDerived(t *testing.T) {
	e, err := New("https://api.example.com/graphql")
	require.NoError(t, err)
	defer e.Close()
	require.Equal(t, "wss://api.example.com/graphql", e.wsEndpoint)

	e2, err := New("http://localhost/graphql", WithSubscriptionEndpoint("ws://other/ws"))
	require.NoError(t, err)
	defer e2.Close()
	require.Equal(t, "ws://other/ws", e2.wsEndpoint)
}

func TestFetchNetworkThenCache(t *testing.T) {
	srv := newTestServer(t)
	e := newTestEngine(t, srv)
	ctx := context.Background()

	resp, err := e.Fetch(ctx, heroRequest(), ReturnCacheDataElseFetch)
	require.NoError(t, err)
	require.Equal(t, SourceNetwork, resp.Source)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"hero":{"name":"R2-D2"}}`, string(resp.Data))

	resp, err = e.Fetch(ctx, heroRequest(), ReturnCacheDataElseFetch)
	require.NoError(t, err)
	require.Equal(t, SourceCache, resp.Source)
	require.JSONEq(t, `{"hero":{"name":"R2-D2"}}`, string(resp.Data))
	require.EqualValues(t, 1, srv.resolver.calls.Load())
}

func TestFetchPolicies(t *testing.T) {
	t.Run("network-only always fetches and stores", func(t *testing.T) {
		srv := newTestServer(t)
		e := newTestEngine(t, srv)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			resp, err := e.Fetch(ctx, heroRequest(), FetchIgnoringCacheData)
			require.NoError(t, err)
			require.Equal(t, SourceNetwork, resp.Source)
		}
		require.EqualValues(t, 2, srv.resolver.calls.Load())

		_, ok, err := e.Store().Load(ctx, heroRequest().CacheKey)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("no-cache never stores", func(t *testing.T) {
		srv := newTestServer(t)
		e := newTestEngine(t, srv)
		ctx := context.Background()

		_, err := e.Fetch(ctx, heroRequest(), FetchIgnoringCacheCompletely)
		require.NoError(t, err)

		_, ok, err := e.Store().Load(ctx, heroRequest().CacheKey)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("cache-only miss", func(t *testing.T) {
		srv := newTestServer(t)
		e := newTestEngine(t, srv)

		_, err := e.Fetch(context.Background(), heroRequest(), ReturnCacheDataDontFetch)
		require.ErrorIs(t, err, ErrCacheMiss)
		require.Zero(t, srv.requestCount())
	})

	t.Run("cache-and-network refreshes in background", func(t *testing.T) {
		srv := newTestServer(t)
		e := newTestEngine(t, srv)
		ctx := context.Background()

		require.NoError(t, e.Store().Write(ctx, heroRequest().CacheKey, json.RawMessage(`{"hero":{"name":"stale"}}`)))

		resp, err := e.Fetch(ctx, heroRequest(), ReturnCacheDataAndFetch)
		require.NoError(t, err)
		require.Equal(t, SourceCache, resp.Source)
		require.JSONEq(t, `{"hero":{"name":"stale"}}`, string(resp.Data))

		require.Eventually(t, func() bool {
			data, ok, _ := e.Store().Load(ctx, heroRequest().CacheKey)
			return ok && string(data) == `{"hero":{"name":"R2-D2"}}`
		}, testTimeout, testTick)
	})
}

func TestFetchGraphQLErrors(t *testing.T) {
	srv := newTestServer(t)
	e := newTestEngine(t, srv)
	ctx := context.Background()

	req := NewRequest(operation.KindQuery, `query Fail { fail }`, "Fail", nil)
	resp, err := e.Fetch(ctx, req, ReturnCacheDataElseFetch)
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	require.Contains(t, resp.Errors[0].Message, "boom")

	// Responses with errors are not stored.
	_, ok, err := e.Store().Load(ctx, req.CacheKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	e, err := New(srv.URL)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Fetch(context.Background(), heroRequest(), FetchIgnoringCacheData)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	require.Contains(t, httpErr.Body, "upstream unavailable")
}

func TestFetchInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e, err := New(srv.URL)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Fetch(context.Background(), heroRequest(), FetchIgnoringCacheData)
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestInterceptorsSeeEveryRequest(t *testing.T) {
	srv := newTestServer(t)

	var seen []string
	record := InterceptorFunc(func(ctx context.Context, req *Request, next Chain) (*Response, error) {
		seen = append(seen, req.OperationName)
		req.Header.Set("X-Trace", "on")
		return next.Proceed(ctx, req)
	})
	e := newTestEngine(t, srv, WithInterceptors(
		HeaderInterceptor(http.Header{"X-Client": []string{"gqlc"}}),
		record,
	))

	original := heroRequest()
	_, err := e.Fetch(context.Background(), original, FetchIgnoringCacheData)
	require.NoError(t, err)

	require.Equal(t, []string{"Hero"}, seen)
	require.Equal(t, "gqlc", srv.lastHeader().Get("X-Client"))
	require.Equal(t, "on", srv.lastHeader().Get("X-Trace"))
	require.Empty(t, original.Header.Get("X-Trace"), "caller's request must not be modified")
}

func TestPerformPublishToStore(t *testing.T) {
	srv := newTestServer(t)
	e := newTestEngine(t, srv)
	ctx := context.Background()

	rename := func(name string) *Request {
		return NewRequest(operation.KindMutation, `mutation Rename($name: String!) { rename(name: $name) { name } }`,
			"Rename", map[string]any{"name": name})
	}

	resp, err := e.Perform(ctx, rename("C-3PO"), true)
	require.NoError(t, err)
	require.JSONEq(t, `{"rename":{"name":"C-3PO"}}`, string(resp.Data))
	_, ok, err := e.Store().Load(ctx, rename("C-3PO").CacheKey)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = e.Perform(ctx, rename("BB-8"), false)
	require.NoError(t, err)
	_, ok, err = e.Store().Load(ctx, rename("BB-8").CacheKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClosedEngine(t *testing.T) {
	srv := newTestServer(t)
	s := store.NewMemory()
	e, err := New(srv.URL, WithStore(s))
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Fetch(context.Background(), heroRequest(), ReturnCacheDataElseFetch)
	require.ErrorIs(t, err, ErrClosed)
	_, err = e.Perform(context.Background(), heroRequest(), true)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, e.Subscribe(context.Background(), heroRequest(), func(*Response, error) {}), ErrClosed)

	_, _, err = s.Load(context.Background(), "any")
	require.ErrorIs(t, err, store.ErrClosed)
}

func TestFetchContextCancelled(t *testing.T) {
	srv := newTestServer(t)
	e := newTestEngine(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Fetch(ctx, heroRequest(), FetchIgnoringCacheData)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSharedFetchSurvivesOneCallerCancelling(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		arrived <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"hero":{"name":"R2-D2"}}}`))
	}))
	defer srv.Close()
	defer close(release)

	e, err := New(srv.URL)
	require.NoError(t, err)
	defer e.Close()

	type result struct {
		resp *Response
		err  error
	}
	fetch := func(ctx context.Context) <-chan result {
		out := make(chan result, 1)
		go func() {
			resp, err := e.Fetch(ctx, heroRequest(), FetchIgnoringCacheData)
			out <- result{resp, err}
		}()
		return out
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	a := fetch(ctxA)
	select {
	case <-arrived:
	case <-timeoutCh():
		t.Fatal("first request never reached the server")
	}
	b := fetch(context.Background())
	time.Sleep(100 * time.Millisecond)

	cancelA()
	select {
	case r := <-a:
		require.ErrorIs(t, r.err, context.Canceled)
	case <-timeoutCh():
		t.Fatal("cancelled caller did not return")
	}

	release <- struct{}{}
	select {
	case r := <-b:
		require.NoError(t, r.err)
		require.JSONEq(t, `{"hero":{"name":"R2-D2"}}`, string(r.resp.Data))
	case <-timeoutCh():
		t.Fatal("second caller did not return")
	}
	require.Equal(t, int32(1), hits.Load())
}

func TestParseCachePolicy(t *testing.T) {
	for _, p := range []CachePolicy{
		ReturnCacheDataElseFetch,
		FetchIgnoringCacheData,
		FetchIgnoringCacheCompletely,
		ReturnCacheDataDontFetch,
		ReturnCacheDataAndFetch,
	} {
		got, err := ParseCachePolicy(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}

	_, err := ParseCachePolicy("sometimes")
	require.Error(t, err)
}
