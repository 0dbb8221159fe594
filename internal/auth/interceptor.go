package auth

import (
	"context"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/engine"
)

// Interceptor is the chain stage that attaches the bearer token. Without a
// token the request passes through unchanged and no Authorization header is
// set. It never fails and never retries.
type Interceptor struct {
	provider TokenProvider
}

var _ engine.Interceptor = (*Interceptor)(nil)

// NewInterceptor returns a stage reading provider on every request. Pass a
// ProviderRef to be able to swap the provider later.
func NewInterceptor(provider TokenProvider) *Interceptor {
	return &Interceptor{provider: provider}
}

func (i *Interceptor) Intercept(ctx context.Context, req *engine.Request, next engine.Chain) (*engine.Response, error) {
	if i.provider != nil {
		if token, ok := i.provider.AuthorizationToken(); ok {
			req.Header.Set(constants.AuthorizationHeader, constants.BearerPrefix+token)
		}
	}
	return next.Proceed(ctx, req)
}
