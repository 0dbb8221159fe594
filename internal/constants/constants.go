// Package constants holds the configuration values and magic numbers shared
// across gqlc packages.
package constants

import "time"

// HTTP and auth constants
const (
	// AuthorizationHeader is the request header carrying the bearer token.
	AuthorizationHeader = "Authorization"

	// BearerPrefix precedes the token in the Authorization header value.
	BearerPrefix = "Bearer "

	// DefaultTokenEnv is the environment variable read for the bearer token
	// when the config does not name another one.
	DefaultTokenEnv = "GQLC_TOKEN"

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// MaxIdleConns sizes the shared HTTP connection pool.
	MaxIdleConns = 20

	// IdleConnTimeout closes pooled connections left unused this long.
	IdleConnTimeout = 30 * time.Second
)

// Rate limiting constants
const (
	// RateLimitLowWatermark is the remaining-quota threshold below which a
	// debug line is logged on every response.
	RateLimitLowWatermark = 100
)

// Subscription transport constants
const (
	// SubscriptionProtocol is the websocket subprotocol spoken to the server.
	SubscriptionProtocol = "graphql-transport-ws"

	// ConnectionAckTimeout bounds the wait for connection_ack after connection_init.
	ConnectionAckTimeout = 10 * time.Second

	// CloseGracePeriod is how long a closing frame may take to write.
	CloseGracePeriod = time.Second
)

// Store constants
const (
	// StoreVersion is written into every file-backed entry. Bump it when the
	// entry layout changes so old files are ignored.
	StoreVersion = 1

	// DefaultCacheTTL is the maximum age of a persisted entry.
	DefaultCacheTTL = 24 * time.Hour
)

// Watch constants
const (
	// MinPollInterval is the lowest accepted --poll value for gqlc watch.
	MinPollInterval = time.Second

	// TUIMaxBodyLines caps the number of rendered data lines in the watch view.
	TUIMaxBodyLines = 40
)
