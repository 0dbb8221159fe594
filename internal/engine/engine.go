// Package engine sends GraphQL operations to a server and keeps their
// results in a store.
//
// Every request runs through a chain of interceptors. The engine adds cache
// stages in front of the caller's interceptors and a network stage at the
// end; interceptors such as auth and rate limiting sit in between.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/store"
)

var (
	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("engine is closed")

	// ErrNoResponse is returned when a chain runs out of stages without
	// any of them producing a response.
	ErrNoResponse = errors.New("request chain produced no response")

	// ErrInvalidResponse is returned when the server answers with a body that
	// is not a GraphQL response.
	ErrInvalidResponse = errors.New("invalid GraphQL response")

	// ErrCacheMiss is returned by ReturnCacheDataDontFetch when nothing is stored.
	ErrCacheMiss = errors.New("no cached data for operation")
)

// Engine is the collaborator the client facade drives. Calls block until the
// operation finishes or ctx is cancelled.
type Engine interface {
	Fetch(ctx context.Context, req *Request, policy CachePolicy) (*Response, error)
	Perform(ctx context.Context, req *Request, publishToStore bool) (*Response, error)
	Upload(ctx context.Context, req *Request, files []File) (*Response, error)

	// Subscribe calls handler once per event and returns when the server
	// completes the stream, ctx is cancelled, or the transport fails.
	Subscribe(ctx context.Context, req *Request, handler Handler) error

	// Watch delivers the current result and every later change of it to
	// handler until the returned Watch is cancelled or ctx ends.
	Watch(ctx context.Context, req *Request, policy CachePolicy, handler Handler) Watch

	Store() store.Store
	Close() error
}

// Handler receives one engine completion.
type Handler func(*Response, error)

// Watch is a running watch registration.
type Watch interface {
	// Refetch re-runs the query against the network.
	Refetch()
	Cancel()
}

// Source tells where a response came from.
type Source int

const (
	SourceNetwork Source = iota
	SourceCache
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "network"
}

// CachePolicy decides how Fetch and Watch combine the store and the network.
type CachePolicy int

const (
	// ReturnCacheDataElseFetch returns stored data when present and fetches
	// otherwise. It is the zero value and the default.
	ReturnCacheDataElseFetch CachePolicy = iota
	// FetchIgnoringCacheData always fetches and stores the result.
	FetchIgnoringCacheData
	// FetchIgnoringCacheCompletely always fetches and never stores.
	FetchIgnoringCacheCompletely
	// ReturnCacheDataDontFetch never touches the network.
	ReturnCacheDataDontFetch
	// ReturnCacheDataAndFetch returns stored data and refreshes it in the background.
	ReturnCacheDataAndFetch
)

var cachePolicyNames = map[CachePolicy]string{
	ReturnCacheDataElseFetch:     "cache-first",
	FetchIgnoringCacheData:       "network-only",
	FetchIgnoringCacheCompletely: "no-cache",
	ReturnCacheDataDontFetch:     "cache-only",
	ReturnCacheDataAndFetch:      "cache-and-network",
}

func (p CachePolicy) String() string {
	if name, ok := cachePolicyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("CachePolicy(%d)", int(p))
}

// ParseCachePolicy parses the names printed by CachePolicy.String.
func ParseCachePolicy(s string) (CachePolicy, error) {
	for p, name := range cachePolicyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown cache policy %q (valid: cache-first, network-only, no-cache, cache-only, cache-and-network)", s)
}

// Request is one GraphQL operation on its way through the chain.
type Request struct {
	Kind          operation.Kind
	Query         string
	OperationName string
	Variables     map[string]any

	// CacheKey identifies the operation in the store.
	CacheKey string

	Header http.Header
}

// NewRequest builds a request and computes its cache key.
func NewRequest(kind operation.Kind, query, operationName string, variables map[string]any) *Request {
	return &Request{
		Kind:          kind,
		Query:         query,
		OperationName: operationName,
		Variables:     variables,
		CacheKey:      operation.Key(kind, query, operationName, variables),
		Header:        make(http.Header),
	}
}

// RequestFor builds the request for a typed operation.
func RequestFor[D any](op operation.Operation[D]) *Request {
	return NewRequest(op.Kind(), op.Document, op.Name, op.Variables)
}

// Clone copies the request so a stage can change headers without affecting
// other users of the original.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c
}

// payload is the JSON body of a GraphQL-over-HTTP request.
type payload struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (r *Request) payload() payload {
	return payload{
		Query:         r.Query,
		OperationName: r.OperationName,
		Variables:     r.Variables,
	}
}

// Response is a GraphQL result. Errors holds the application errors of a
// transport round trip that otherwise succeeded.
type Response struct {
	Data       json.RawMessage
	Errors     gqlerror.List
	Extensions map[string]any

	Source     Source
	StatusCode int
	Header     http.Header
}

// HasData reports whether the response carries non-null data.
func (r *Response) HasData() bool {
	return r != nil && len(r.Data) > 0 && string(r.Data) != "null"
}

// graphqlResponse is the wire shape of a GraphQL response body.
type graphqlResponse struct {
	Data       json.RawMessage `json:"data"`
	Errors     gqlerror.List   `json:"errors,omitempty"`
	Extensions map[string]any  `json:"extensions,omitempty"`
}

func decodeResponse(body []byte) (*Response, error) {
	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(gqlResp.Data) == 0 && len(gqlResp.Errors) == 0 {
		return nil, fmt.Errorf("%w: neither data nor errors present", ErrInvalidResponse)
	}
	return &Response{
		Data:       gqlResp.Data,
		Errors:     gqlResp.Errors,
		Extensions: gqlResp.Extensions,
	}, nil
}

// File is one upload attached to a request. FieldName is the variable the
// file is bound to; several files sharing a FieldName form a list.
type File struct {
	FieldName    string
	OriginalName string
	MimeType     string
	Data         io.Reader
}

// HTTPError is returned when the server answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GraphQL request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("GraphQL request failed with status %d: %s", e.StatusCode, e.Body)
}
