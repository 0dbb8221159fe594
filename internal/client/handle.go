package client

import (
	"sync"

	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/log"
)

// handle guards the engine. One-shot calls borrow it and fail once it is
// released; subscriptions retain it, and the engine is closed only after
// the last retainer drops it.
type handle struct {
	mu       sync.Mutex
	engine   engine.Engine
	released bool
	retained int
	closed   bool
}

func newHandle(e engine.Engine) *handle {
	return &handle{engine: e}
}

// borrow returns the engine unless the handle has been released.
func (h *handle) borrow() (engine.Engine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, false
	}
	return h.engine, true
}

// alive reports whether borrowed results may still be delivered.
func (h *handle) alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.released
}

// retain keeps the engine open until the matching drop.
func (h *handle) retain() (engine.Engine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, false
	}
	h.retained++
	return h.engine, true
}

func (h *handle) drop() {
	h.mu.Lock()
	h.retained--
	closeNow := h.released && h.retained == 0 && !h.closed
	if closeNow {
		h.closed = true
	}
	h.mu.Unlock()

	if closeNow {
		if err := h.engine.Close(); err != nil {
			log.Warn("failed to close engine after last subscription", "error", err)
		}
	}
}

// release marks the handle released and closes the engine, or leaves that
// to the last retainer.
func (h *handle) release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	closeNow := h.retained == 0
	if closeNow {
		h.closed = true
	}
	pending := h.retained
	h.mu.Unlock()

	if !closeNow {
		log.Debug("engine close deferred until subscriptions end", "subscriptions", pending)
		return nil
	}
	return h.engine.Close()
}
