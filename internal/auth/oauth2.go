package auth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/spiffcs/gqlc/internal/log"
)

// OAuth2 provides tokens from an oauth2.TokenSource. A source failure is
// reported as an absent token so requests still go out unauthenticated.
type OAuth2 struct {
	source oauth2.TokenSource
}

// NewOAuth2 wraps source. The source is wrapped in oauth2.ReuseTokenSource
// so tokens are refreshed only when they expire.
func NewOAuth2(source oauth2.TokenSource) *OAuth2 {
	return &OAuth2{source: oauth2.ReuseTokenSource(nil, source)}
}

// ClientCredentials describes an OAuth2 client-credentials grant.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// NewClientCredentials returns a provider fetching tokens with the
// client-credentials grant. ctx is used for every token request.
func NewClientCredentials(ctx context.Context, cc ClientCredentials) *OAuth2 {
	cfg := &clientcredentials.Config{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		TokenURL:     cc.TokenURL,
		Scopes:       cc.Scopes,
	}
	return NewOAuth2(cfg.TokenSource(ctx))
}

func (o *OAuth2) AuthorizationToken() (string, bool) {
	tok, err := o.source.Token()
	if err != nil {
		log.Debug("oauth2 token unavailable", "error", err)
		return "", false
	}
	if tok.AccessToken == "" {
		return "", false
	}
	return tok.AccessToken, true
}
