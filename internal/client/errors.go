package client

import "errors"

// ErrClientUnavailable is returned when the client was closed before a call
// could start or before its result was delivered.
var ErrClientUnavailable = errors.New("client unavailable")
