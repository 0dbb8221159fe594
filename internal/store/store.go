// Package store holds GraphQL response data keyed by operation identity.
//
// Entries are the raw JSON "data" member of a response. The store is not
// normalized: two operations selecting the same object hold separate copies.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrUnknownBackend is returned by Open for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Store is the response cache used by the engine and exposed to callers for
// direct reads, transactional writes and purges.
type Store interface {
	// Load returns the data stored under key. A missing or expired entry is
	// reported as ok=false with a nil error.
	Load(ctx context.Context, key string) (data json.RawMessage, ok bool, err error)

	// Write replaces the data under key and notifies its watchers.
	Write(ctx context.Context, key string, data json.RawMessage) error

	// WithinReadWriteTransaction runs fn against a transaction. Changes become
	// visible, and watchers are notified, only if fn returns nil.
	WithinReadWriteTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Watch registers fn to be called with the new data whenever key is
	// written, or with nil when it is deleted. The returned func unregisters.
	Watch(key string, fn func(json.RawMessage)) (cancel func())

	Close() error
}

// Transaction is the view of the store inside WithinReadWriteTransaction.
// Reads observe the transaction's own uncommitted writes.
type Transaction interface {
	Read(key string) (json.RawMessage, bool, error)
	Write(key string, data json.RawMessage) error
	Delete(key string) error
}

// Stats summarises the entries held by a store.
type Stats struct {
	Backend  string
	Location string
	Total    int
	Valid    int
}

// StatsReporter is implemented by stores that can count their entries.
type StatsReporter interface {
	Stats(ctx context.Context) (*Stats, error)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Dir     string
	TTL     time.Duration
}

// Open builds the store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(opts.Dir, opts.TTL)
	case BackendBadger:
		return NewBadger(opts.Dir, opts.TTL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// change is a committed write (data != nil) or delete (data == nil).
type change struct {
	key  string
	data json.RawMessage
}

// staged collects the writes of one transaction in order, keeping the
// latest value per key for read-your-writes.
type staged struct {
	order   []string
	changes map[string]change
}

func newStaged() *staged {
	return &staged{changes: make(map[string]change)}
}

func (s *staged) put(key string, data json.RawMessage) {
	if _, ok := s.changes[key]; !ok {
		s.order = append(s.order, key)
	}
	s.changes[key] = change{key: key, data: data}
}

func (s *staged) get(key string) (change, bool) {
	c, ok := s.changes[key]
	return c, ok
}

func (s *staged) list() []change {
	out := make([]change, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.changes[k])
	}
	return out
}

func clone(data json.RawMessage) json.RawMessage {
	if data == nil {
		return nil
	}
	out := make(json.RawMessage, len(data))
	copy(out, data)
	return out
}
