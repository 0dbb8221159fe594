package engine

import (
	"context"

	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/store"
)

// cacheReadStage answers from the store according to policy.
type cacheReadStage struct {
	engine *HTTPEngine
	policy CachePolicy
}

func (s *cacheReadStage) Intercept(ctx context.Context, req *Request, next Chain) (*Response, error) {
	switch s.policy {
	case FetchIgnoringCacheData, FetchIgnoringCacheCompletely:
		return next.Proceed(ctx, req)
	}

	data, ok, err := s.engine.store.Load(ctx, req.CacheKey)
	if err != nil {
		log.Debug("cache read failed, treating as miss", "key", req.CacheKey, "error", err)
		ok = false
	}

	if !ok {
		if s.policy == ReturnCacheDataDontFetch {
			return nil, ErrCacheMiss
		}
		return next.Proceed(ctx, req)
	}

	log.Info("cache hit", "operation", req.OperationName, "key", req.CacheKey)
	if s.policy == ReturnCacheDataAndFetch {
		refresh := req.Clone()
		s.engine.goBackground(func(engineCtx context.Context) {
			ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			defer cancel()
			stop := context.AfterFunc(engineCtx, cancel)
			defer stop()

			if _, err := next.Proceed(ctx, refresh); err != nil {
				log.Debug("background refresh failed", "key", refresh.CacheKey, "error", err)
			}
		})
	}
	return &Response{Data: data, Source: SourceCache}, nil
}

// cacheWriteStage stores successful network results.
type cacheWriteStage struct {
	store   store.Store
	publish bool
}

func (s *cacheWriteStage) Intercept(ctx context.Context, req *Request, next Chain) (*Response, error) {
	resp, err := next.Proceed(ctx, req)
	if err != nil || !s.publish {
		return resp, err
	}

	// Partial results are not stored.
	if resp.HasData() && len(resp.Errors) == 0 && resp.Source == SourceNetwork {
		if err := s.store.Write(ctx, req.CacheKey, resp.Data); err != nil {
			log.Warn("failed to write response to cache", "key", req.CacheKey, "error", err)
		}
	}
	return resp, nil
}
