package budget

import (
	"context"
	"sync"
)

// Counter stores the number of provider calls made per calendar month.
// Months are keyed as "YYYY-MM".
type Counter interface {
	Get(ctx context.Context, month string) (int, error)
	Incr(ctx context.Context, month string) (int, error)
	Reset(ctx context.Context, month string) error
}

// MemoryCounter keeps counts for the lifetime of the process.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (c *MemoryCounter) Get(_ context.Context, month string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[month], nil
}

func (c *MemoryCounter) Incr(_ context.Context, month string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Older months are never read again.
	for m := range c.counts {
		if m != month {
			delete(c.counts, m)
		}
	}

	c.counts[month]++
	return c.counts[month], nil
}

func (c *MemoryCounter) Reset(_ context.Context, month string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, month)
	return nil
}
