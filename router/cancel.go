package router

import (
	"context"
	"sync"
)

// cancelRegistry maps an async task id to the context.CancelFunc that
// stops its background worker from opening any further file. It is kept
// alongside the Router rather than inside tasks.Registry because
// cancellation is a router/worker-wiring concern, not task-state
// bookkeeping (spec.md §3's Ingest task entity carries no cancellation
// handle of its own).
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

func (c *cancelRegistry) put(taskID string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels[taskID] = cancel
}

// cancel invokes and forgets the cancel func for taskID, if one is
// registered. Safe to call more than once for the same id.
func (c *cancelRegistry) cancel(taskID string) {
	c.mu.Lock()
	cancel, ok := c.cancels[taskID]
	delete(c.cancels, taskID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *cancelRegistry) forget(taskID string) {
	c.mu.Lock()
	delete(c.cancels, taskID)
	c.mu.Unlock()
}
