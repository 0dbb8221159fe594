package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/require"

	"github.com/spiffcs/gqlc/internal/log"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

const testSchema = `
	schema {
		query: Query
		mutation: Mutation
		subscription: Subscription
	}

	type Query {
		hero(episode: String): Hero
		fail: String
	}

	type Mutation {
		rename(name: String!): Hero!
	}

	type Subscription {
		counter(to: Int!): Int!
		ticker: Int!
	}

	type Hero {
		name: String!
	}
`

type heroResolver struct {
	name string
}

func (h *heroResolver) Name() string { return h.name }

type testResolver struct {
	mu    sync.Mutex
	name  string
	calls atomic.Int32
}

func (r *testResolver) Hero(args struct{ Episode *string }) *heroResolver {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	return &heroResolver{name: r.name}
}

func (r *testResolver) Fail() (*string, error) {
	r.calls.Add(1)
	return nil, errors.New("boom")
}

func (r *testResolver) Rename(args struct{ Name string }) *heroResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = args.Name
	return &heroResolver{name: r.name}
}

func (r *testResolver) Counter(ctx context.Context, args struct{ To int32 }) <-chan int32 {
	ch := make(chan int32)
	go func() {
		defer close(ch)
		for i := int32(1); i <= args.To; i++ {
			select {
			case ch <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (r *testResolver) Ticker(ctx context.Context) <-chan int32 {
	ch := make(chan int32)
	go func() {
		defer close(ch)
		t := time.NewTicker(10 * time.Millisecond)
		defer t.Stop()
		for i := int32(1); ; i++ {
			select {
			case <-t.C:
			case <-ctx.Done():
				return
			}
			select {
			case ch <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// testServer serves the test schema over HTTP POST and graphql-transport-ws.
type testServer struct {
	*httptest.Server
	resolver *testResolver
	schema   *graphql.Schema

	mu         sync.Mutex
	headers    []http.Header
	initParams []map[string]string
	clientDone chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log.Discard()

	r := &testResolver{name: "R2-D2"}
	s := &testServer{
		resolver:   r,
		schema:     graphql.MustParseSchema(testSchema, r),
		clientDone: make(chan struct{}, 8),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) lastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

func (s *testServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.headers)
}

func (s *testServer) serveHTTP(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	s.headers = append(s.headers, req.Header.Clone())
	s.mu.Unlock()

	if websocket.IsWebSocketUpgrade(req) {
		s.serveWS(w, req)
		return
	}

	var params struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := s.schema.Exec(req.Context(), params.Query, params.OperationName, params.Variables)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *testServer) serveWS(w http.ResponseWriter, req *http.Request) {
	upgrader := websocket.Upgrader{Subprotocols: []string{"graphql-transport-ws"}}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var init wsMessage
	if err := conn.ReadJSON(&init); err != nil || init.Type != msgConnectionInit {
		return
	}
	var params map[string]string
	_ = json.Unmarshal(init.Payload, &params)
	s.mu.Lock()
	s.initParams = append(s.initParams, params)
	s.mu.Unlock()

	var wmu sync.Mutex
	write := func(msg wsMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(msg)
	}
	if err := write(wsMessage{Type: msgConnectionAck}); err != nil {
		return
	}

	var sub wsMessage
	if err := conn.ReadJSON(&sub); err != nil || sub.Type != msgSubscribe {
		return
	}
	var p struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	if err := json.Unmarshal(sub.Payload, &p); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// The client ends the stream with complete or by closing the socket.
	go func() {
		defer cancel()
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == msgComplete {
				s.clientDone <- struct{}{}
				return
			}
		}
	}()

	events, err := s.schema.Subscribe(ctx, p.Query, p.OperationName, p.Variables)
	if err != nil {
		return
	}
	for ev := range events {
		var item any = ev
		resp, ok := item.(*graphql.Response)
		if !ok {
			continue
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := write(wsMessage{ID: sub.ID, Type: msgNext, Payload: payload}); err != nil {
			return
		}
	}
	if ctx.Err() == nil {
		_ = write(wsMessage{ID: sub.ID, Type: msgComplete})
	}
}

func newTestEngine(t *testing.T, srv *testServer, opts ...Option) *HTTPEngine {
	t.Helper()
	e, err := New(srv.URL, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func timeoutCh() <-chan time.Time {
	return time.After(testTimeout)
}
