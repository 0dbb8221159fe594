package engine

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/log"
)

// ErrRateLimited is returned while the server's rate limit is exhausted.
var ErrRateLimited = errors.New("rate limited")

// RateLimitState tracks the limit reported by X-RateLimit-* response headers.
type RateLimitState struct {
	mu        sync.RWMutex
	limited   bool
	resetAt   time.Time
	remaining int
	limit     int
	seen      bool
}

// IsLimited returns true if we are currently rate limited.
func (s *RateLimitState) IsLimited() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.limited {
		return false
	}

	// Check if rate limit has reset
	return time.Now().Before(s.resetAt)
}

// SetLimited sets the rate limit state.
func (s *RateLimitState) SetLimited(limited bool, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limited = limited
	s.resetAt = resetAt
}

// Update updates the rate limit state from response headers.
func (s *RateLimitState) Update(remaining, limit int, resetAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = remaining
	s.limit = limit
	s.resetAt = resetAt
	s.seen = true
	s.limited = remaining == 0
}

// RateLimitStatus is a snapshot of RateLimitState.
type RateLimitStatus struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
	Limited   bool
	// Known is false until a response carried rate limit headers.
	Known bool
}

// Status returns the current rate limit status.
func (s *RateLimitState) Status() RateLimitStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return RateLimitStatus{
		Remaining: s.remaining,
		Limit:     s.limit,
		ResetAt:   s.resetAt,
		Limited:   s.limited && time.Now().Before(s.resetAt),
		Known:     s.seen,
	}
}

// RateLimiter is a chain stage that refuses requests while the limit is
// exhausted and records the limit headers of every response.
type RateLimiter struct {
	state *RateLimitState
}

// NewRateLimiter returns a stage recording into state. A nil state gets a
// fresh one.
func NewRateLimiter(state *RateLimitState) *RateLimiter {
	if state == nil {
		state = &RateLimitState{}
	}
	return &RateLimiter{state: state}
}

// State returns the state the stage records into.
func (r *RateLimiter) State() *RateLimitState {
	return r.state
}

func (r *RateLimiter) Intercept(ctx context.Context, req *Request, next Chain) (*Response, error) {
	// Check if we're already rate limited before making the request
	if r.state.IsLimited() {
		return nil, ErrRateLimited
	}

	resp, err := next.Proceed(ctx, req)

	var header http.Header
	var status int
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		header, status = httpErr.Header, httpErr.StatusCode
	case err == nil && resp != nil:
		header, status = resp.Header, resp.StatusCode
	default:
		return resp, err
	}

	remaining, limit, resetAt := parseRateLimitHeaders(header)
	if remaining >= 0 && limit > 0 {
		r.state.Update(remaining, limit, resetAt)
	}

	if remaining <= constants.RateLimitLowWatermark && remaining > 0 {
		log.Debug("rate limit low", "remaining", remaining, "resets_at", resetAt.Format(time.RFC3339))
	}

	// Handle rate limit responses (403 with rate limit exceeded or 429)
	if status == http.StatusTooManyRequests ||
		(status == http.StatusForbidden && header.Get("X-RateLimit-Remaining") == "0") {
		if resetAt.IsZero() {
			resetAt = retryAfter(header)
		}
		r.state.SetLimited(true, resetAt)
		return nil, ErrRateLimited
	}

	return resp, err
}

// parseRateLimitHeaders extracts rate limit info from response headers.
func parseRateLimitHeaders(header http.Header) (remaining, limit int, resetAt time.Time) {
	remaining = -1
	limit = -1
	if header == nil {
		return remaining, limit, resetAt
	}

	if remainingStr := header.Get("X-RateLimit-Remaining"); remainingStr != "" {
		if rem, err := strconv.Atoi(remainingStr); err == nil {
			remaining = rem
		}
	}

	if limitStr := header.Get("X-RateLimit-Limit"); limitStr != "" {
		if lim, err := strconv.Atoi(limitStr); err == nil {
			limit = lim
		}
	}

	if resetStr := header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetTime, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(resetTime, 0)
		}
	}

	return remaining, limit, resetAt
}

// retryAfter reads a Retry-After header in seconds, defaulting to one minute.
func retryAfter(header http.Header) time.Time {
	if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	return time.Now().Add(time.Minute)
}
