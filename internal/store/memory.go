package store

import (
	"context"
	"encoding/json"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process store. Transactions hold the write lock for
// their whole duration, so they are serialised against each other and
// against plain writes.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]json.RawMessage
	closed  bool
	n       *notifier
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]json.RawMessage),
		n:       newNotifier(),
	}
}

func (m *Memory) Load(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	data, ok := m.entries[key]
	return clone(data), ok, nil
}

func (m *Memory) Write(ctx context.Context, key string, data json.RawMessage) error {
	return m.WithinReadWriteTransaction(ctx, func(tx Transaction) error {
		return tx.Write(key, data)
	})
}

func (m *Memory) WithinReadWriteTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	tx := &memoryTx{m: m, staged: newStaged()}
	if err := fn(tx); err != nil {
		m.mu.Unlock()
		return err
	}
	changes := tx.staged.list()
	for _, c := range changes {
		if c.data == nil {
			delete(m.entries, c.key)
			continue
		}
		m.entries[c.key] = c.data
	}
	m.n.enqueue(changes)
	m.mu.Unlock()

	m.n.flush()
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries = make(map[string]json.RawMessage)
	return nil
}

func (m *Memory) Watch(key string, fn func(json.RawMessage)) func() {
	return m.n.watch(key, fn)
}

func (m *Memory) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return &Stats{
		Backend:  BackendMemory,
		Location: "process memory",
		Total:    len(m.entries),
		Valid:    len(m.entries),
	}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.entries = nil
	m.mu.Unlock()
	m.n.reset()
	return nil
}

// memoryTx runs with Memory.mu held for writing.
type memoryTx struct {
	m      *Memory
	staged *staged
}

func (t *memoryTx) Read(key string) (json.RawMessage, bool, error) {
	if c, ok := t.staged.get(key); ok {
		return clone(c.data), c.data != nil, nil
	}
	data, ok := t.m.entries[key]
	return clone(data), ok, nil
}

func (t *memoryTx) Write(key string, data json.RawMessage) error {
	if data == nil {
		data = json.RawMessage("null")
	}
	t.staged.put(key, clone(data))
	return nil
}

func (t *memoryTx) Delete(key string) error {
	t.staged.put(key, nil)
	return nil
}
