package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spiffcs/gqlc/config"
	"github.com/spiffcs/gqlc/internal/auth"
	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/output"
	"github.com/spiffcs/gqlc/internal/store"
)

// session is everything a command needs to talk to the endpoint.
type session struct {
	cfg       *config.Config
	client    *client.Client
	rateLimit *engine.RateLimitState
	formatter output.Formatter
	source    string // where the bearer token comes from
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := []struct{ key, value string }{
		{"endpoint", opts.Endpoint},
		{"subscription_endpoint", opts.SubscriptionEndpoint},
		{"output", opts.Output},
		{"timeout", opts.Timeout},
		{"cache.backend", opts.CacheBackend},
		{"cache.dir", opts.CacheDir},
		{"auth.token_env", opts.TokenEnv},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if err := cfg.Set(o.key, o.value); err != nil {
			return nil, err
		}
	}
	for _, h := range opts.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		if err := cfg.Set("headers."+strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// tokenProvider picks OAuth2 client credentials when configured and the
// token environment variable otherwise. The second value describes the source.
func tokenProvider(ctx context.Context, cfg *config.Config) (auth.TokenProvider, string) {
	if o := cfg.GetOAuth2(); o != nil && o.ClientID != "" && o.TokenURL != "" {
		return auth.NewClientCredentials(ctx, auth.ClientCredentials{
			ClientID:     o.ClientID,
			ClientSecret: o.GetClientSecret(),
			TokenURL:     o.TokenURL,
			Scopes:       o.Scopes,
		}), "oauth2 client credentials (" + o.TokenURL + ")"
	}
	env := cfg.GetTokenEnv()
	return auth.EnvToken(env), "$" + env
}

// openSession builds a client from the configuration. The caller must
// close it.
func openSession(ctx context.Context, opts *Options) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured: pass --endpoint or run 'gqlc config set endpoint <url>'")
	}

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(store.Options{
		Backend: cfg.GetCacheBackend(),
		Dir:     cfg.GetCacheDir(),
		TTL:     ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.GetCacheBackend(), err)
	}

	state := &engine.RateLimitState{}
	engineOpts := []engine.Option{
		engine.WithHTTPClient(&http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    constants.MaxIdleConns,
				IdleConnTimeout: constants.IdleConnTimeout,
			},
		}),
		engine.WithStore(st),
		engine.WithInterceptors(
			engine.HeaderInterceptor(cfg.HTTPHeaders()),
			engine.NewRateLimiter(state),
		),
	}
	if cfg.SubscriptionEndpoint != "" {
		engineOpts = append(engineOpts, engine.WithSubscriptionEndpoint(cfg.SubscriptionEndpoint))
	}

	provider, source := tokenProvider(ctx, cfg)
	c, err := client.NewHTTP(cfg.Endpoint, provider, engineOpts...)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	log.Debug("client ready",
		"endpoint", cfg.Endpoint,
		"store", cfg.GetCacheBackend(),
		"timeout", timeout,
		"token", source)

	return &session{
		cfg:       cfg,
		client:    c,
		rateLimit: state,
		formatter: output.NewFormatter(format),
		source:    source,
	}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		log.Warn("failed to close client", "error", err)
	}
}
