// Package auth supplies bearer tokens to outgoing GraphQL requests.
package auth

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// TokenProvider returns the current authorization token, or ok=false when
// the caller is not authenticated. Implementations must be safe for
// concurrent use and free of side effects; the token is read on every
// request and never cached by callers.
type TokenProvider interface {
	AuthorizationToken() (token string, ok bool)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func() (string, bool)

func (f TokenProviderFunc) AuthorizationToken() (string, bool) {
	return f()
}

// StaticToken always returns the same token. An empty StaticToken is absent.
type StaticToken string

func (t StaticToken) AuthorizationToken() (string, bool) {
	return string(t), t != ""
}

// EnvToken reads the named environment variable on every call.
type EnvToken string

func (e EnvToken) AuthorizationToken() (string, bool) {
	v := strings.TrimSpace(os.Getenv(string(e)))
	return v, v != ""
}

// Session holds a token that changes at runtime, set on login and cleared
// on logout.
type Session struct {
	mu    sync.RWMutex
	token string
}

// Login stores token for subsequent requests.
func (s *Session) Login(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Logout forgets the token.
func (s *Session) Logout() {
	s.Login("")
}

func (s *Session) AuthorizationToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// ProviderRef is a replaceable reference to a TokenProvider. The client and
// its auth interceptor share one, so swapping the provider takes effect on
// the next request.
type ProviderRef struct {
	p atomic.Pointer[TokenProvider]
}

// NewProviderRef returns a reference holding p, which may be nil.
func NewProviderRef(p TokenProvider) *ProviderRef {
	r := &ProviderRef{}
	r.Set(p)
	return r
}

// Set replaces the provider. A nil provider means no token.
func (r *ProviderRef) Set(p TokenProvider) {
	if p == nil {
		r.p.Store(nil)
		return
	}
	r.p.Store(&p)
}

// Get returns the current provider, or nil.
func (r *ProviderRef) Get() TokenProvider {
	p := r.p.Load()
	if p == nil {
		return nil
	}
	return *p
}

// AuthorizationToken forwards to the current provider.
func (r *ProviderRef) AuthorizationToken() (string, bool) {
	p := r.Get()
	if p == nil {
		return "", false
	}
	return p.AuthorizationToken()
}
