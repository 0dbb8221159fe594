package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
)

// networkStage is the terminal stage for queries and mutations. Identical
// queries in flight at the same time share one round trip; a caller that
// gives up stops waiting without failing the others.
type networkStage struct {
	engine *HTTPEngine
}

func (s *networkStage) Intercept(ctx context.Context, req *Request, _ Chain) (*Response, error) {
	body, err := json.Marshal(req.payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if req.Kind != operation.KindQuery {
		return s.engine.post(ctx, req, bytes.NewReader(body), "application/json")
	}

	key := req.CacheKey + "\x00" + req.Header.Get(constants.AuthorizationHeader)
	ch := s.engine.inflight.DoChan(key, func() (any, error) {
		// The round trip outlives any single caller and ends only with the engine.
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(s.engine.ctx, cancel)
		defer stop()
		return s.engine.post(shared, req, bytes.NewReader(body), "application/json")
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Trace("shared in-flight query", "key", req.CacheKey)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		// Shared results must not be mutated by one of the callers.
		resp := *res.Val.(*Response)
		resp.Header = resp.Header.Clone()
		return &resp, nil
	}
}

// post sends one GraphQL-over-HTTP request and decodes the response.
func (e *HTTPEngine) post(ctx context.Context, req *Request, body io.Reader, contentType string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	log.Trace("response received", "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       string(respBody),
		}
	}

	decoded, err := decodeResponse(respBody)
	if err != nil {
		return nil, err
	}
	decoded.StatusCode = resp.StatusCode
	decoded.Header = resp.Header
	return decoded, nil
}
