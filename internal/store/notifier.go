package store

import (
	"encoding/json"
	"sync"
)

// notifier fans committed changes out to per-key watchers. Stores enqueue
// changes while still holding their commit lock and flush after releasing
// it, so watchers see changes in commit order. Callbacks run on a
// committing goroutine with no store lock held; one goroutine delivers at
// a time and drains whatever other commits queued meanwhile.
type notifier struct {
	mu       sync.Mutex
	nextID   uint64
	watchers map[string]map[uint64]func(json.RawMessage)

	qmu      sync.Mutex
	queue    []change
	flushing bool
}

func newNotifier() *notifier {
	return &notifier{watchers: make(map[string]map[uint64]func(json.RawMessage))}
}

func (n *notifier) watch(key string, fn func(json.RawMessage)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	if n.watchers[key] == nil {
		n.watchers[key] = make(map[uint64]func(json.RawMessage))
	}
	n.watchers[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.watchers[key], id)
			if len(n.watchers[key]) == 0 {
				delete(n.watchers, key)
			}
		})
	}
}

// enqueue records committed changes. Call it in commit order.
func (n *notifier) enqueue(changes []change) {
	if len(changes) == 0 {
		return
	}
	n.qmu.Lock()
	n.queue = append(n.queue, changes...)
	n.qmu.Unlock()
}

// flush delivers queued changes unless another goroutine already is. A
// callback that commits again only enqueues; the running flush picks it up.
func (n *notifier) flush() {
	n.qmu.Lock()
	if n.flushing {
		n.qmu.Unlock()
		return
	}
	n.flushing = true
	for len(n.queue) > 0 {
		batch := n.queue
		n.queue = nil
		n.qmu.Unlock()
		n.deliver(batch)
		n.qmu.Lock()
	}
	n.flushing = false
	n.qmu.Unlock()
}

func (n *notifier) deliver(changes []change) {
	for _, c := range changes {
		n.mu.Lock()
		fns := make([]func(json.RawMessage), 0, len(n.watchers[c.key]))
		for _, fn := range n.watchers[c.key] {
			fns = append(fns, fn)
		}
		n.mu.Unlock()

		for _, fn := range fns {
			fn(clone(c.data))
		}
	}
}

func (n *notifier) reset() {
	n.mu.Lock()
	n.watchers = make(map[string]map[uint64]func(json.RawMessage))
	n.mu.Unlock()

	n.qmu.Lock()
	n.queue = nil
	n.qmu.Unlock()
}
