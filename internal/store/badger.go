package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/log"
)

var _ Store = (*Badger)(nil)

// maxConflictRetries bounds how often a transaction is re-run after badger
// reports a conflicting concurrent commit.
const maxConflictRetries = 3

// Badger persists entries in an embedded badger database. An empty dir
// opens an in-memory database.
type Badger struct {
	db  *badger.DB
	dir string
	ttl time.Duration
	n   *notifier

	// commit orders this process's transactions so watchers see them in
	// the order badger applied them.
	commit sync.Mutex
}

// NewBadger opens (or creates) a badger store at dir.
func NewBadger(dir string, ttl time.Duration) (*Badger, error) {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}

	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Badger{db: db, dir: dir, ttl: ttl, n: newNotifier()}, nil
}

func (b *Badger) Load(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var data json.RawMessage
	err := b.db.View(func(txn *badger.Txn) error {
		v, ok, err := badgerGet(txn, key)
		if err != nil || !ok {
			return err
		}
		data = v
		return nil
	})
	if err != nil {
		return nil, false, mapBadgerErr(err)
	}
	return data, data != nil, nil
}

func (b *Badger) Write(ctx context.Context, key string, data json.RawMessage) error {
	return b.WithinReadWriteTransaction(ctx, func(tx Transaction) error {
		return tx.Write(key, data)
	})
}

func (b *Badger) WithinReadWriteTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	b.commit.Lock()
	var tx *badgerTx
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			b.commit.Unlock()
			return err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			tx = &badgerTx{txn: txn, ttl: b.ttl, staged: newStaged()}
			return fn(tx)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		log.Debug("badger transaction conflict, retrying", "attempt", attempt+1)
	}
	if err != nil {
		b.commit.Unlock()
		return mapBadgerErr(err)
	}
	b.n.enqueue(tx.staged.list())
	b.commit.Unlock()

	b.n.flush()
	return nil
}

func (b *Badger) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return ErrClosed
	}
	return mapBadgerErr(b.db.DropAll())
}

func (b *Badger) Watch(key string, fn func(json.RawMessage)) func() {
	return b.n.watch(key, fn)
}

// Stats iterates keys only. Expired entries are hidden by badger, so every
// visible entry is valid.
func (b *Badger) Stats(ctx context.Context) (*Stats, error) {
	location := b.dir
	if location == "" {
		location = "in-memory badger"
	}
	stats := &Stats{Backend: BackendBadger, Location: location}

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats.Total++
		}
		return nil
	})
	if err != nil {
		return nil, mapBadgerErr(err)
	}
	stats.Valid = stats.Total
	return stats, nil
}

func (b *Badger) Close() error {
	b.n.reset()
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

type badgerTx struct {
	txn    *badger.Txn
	ttl    time.Duration
	staged *staged
}

func (t *badgerTx) Read(key string) (json.RawMessage, bool, error) {
	data, ok, err := badgerGet(t.txn, key)
	return data, ok, mapBadgerErr(err)
}

func (t *badgerTx) Write(key string, data json.RawMessage) error {
	if data == nil {
		data = json.RawMessage("null")
	}
	data = clone(data)
	if err := t.txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(t.ttl)); err != nil {
		return mapBadgerErr(err)
	}
	t.staged.put(key, data)
	return nil
}

func (t *badgerTx) Delete(key string) error {
	if err := t.txn.Delete([]byte(key)); err != nil {
		return mapBadgerErr(err)
	}
	t.staged.put(key, nil)
	return nil
}

func badgerGet(txn *badger.Txn, key string) (json.RawMessage, bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func mapBadgerErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// badgerLogger routes badger's internal logging into the gqlc logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Trace(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Trace(fmt.Sprintf(format, args...), "component", "badger")
}
