package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// claims tracks invoices currently being processed so overlapping batch
// requests never run the same invoice twice.
type claims struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func newClaims() *claims {
	return &claims{active: make(map[uuid.UUID]struct{})}
}

// Acquire reserves an invoice, returning false if it is already held.
func (c *claims) Acquire(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, held := c.active[id]; held {
		return false
	}
	c.active[id] = struct{}{}
	return true
}

// Release frees a previously acquired invoice.
func (c *claims) Release(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, id)
}
