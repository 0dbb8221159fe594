package engine

import (
	"context"
	"net/http"
)

// Interceptor is one stage of the request chain. It may change the request,
// answer it directly, or pass it on with next.Proceed.
type Interceptor interface {
	Intercept(ctx context.Context, req *Request, next Chain) (*Response, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, req *Request, next Chain) (*Response, error)

func (f InterceptorFunc) Intercept(ctx context.Context, req *Request, next Chain) (*Response, error) {
	return f(ctx, req, next)
}

// Chain is the remainder of the stages after the current one. It is a value;
// proceeding never changes it, so a stage may proceed more than once.
type Chain struct {
	stages []Interceptor
}

// NewChain returns a chain running stages in order.
func NewChain(stages ...Interceptor) Chain {
	return Chain{stages: stages}
}

// Proceed hands req to the next stage.
func (c Chain) Proceed(ctx context.Context, req *Request) (*Response, error) {
	if len(c.stages) == 0 {
		return nil, ErrNoResponse
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.stages[0].Intercept(ctx, req, Chain{stages: c.stages[1:]})
}

// Len returns the number of stages left.
func (c Chain) Len() int {
	return len(c.stages)
}

// HeaderInterceptor sets fixed headers on every request. Headers already
// present on the request are overwritten.
func HeaderInterceptor(header http.Header) Interceptor {
	header = header.Clone()
	return InterceptorFunc(func(ctx context.Context, req *Request, next Chain) (*Response, error) {
		for k, v := range header {
			req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
		return next.Proceed(ctx, req)
	})
}
