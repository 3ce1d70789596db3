package cache

import (
	"context"
	"sync"
	"time"
)

type counterEntry struct {
	val int64
	exp time.Time
}

// MemoryCounter keeps counters in process. It is used when no Redis is configured
// and is only correct for a single API instance.
type MemoryCounter struct {
	mu  sync.Mutex
	m   map[string]counterEntry
	now func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		m:   make(map[string]counterEntry),
		now: time.Now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok || !now.Before(e.exp) {
		e = counterEntry{exp: now.Add(window)}
	}
	e.val++
	c.m[key] = e

	return e.val, nil
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return 0, nil
	}
	if !now.Before(e.exp) {
		delete(c.m, key)
		return 0, nil
	}
	return e.val, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}

// Sweep drops expired counters and returns how many were removed.
func (c *MemoryCounter) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.m {
		if !now.Before(e.exp) {
			delete(c.m, key)
			removed++
		}
	}
	return removed
}
