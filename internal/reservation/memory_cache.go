package reservation

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    Reservation
	deadline time.Time
}

// MemoryCache is an in-process Cache for single-instance deployments.
// Expired entries are invisible on read and purged by the sweeper.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache using the wall clock.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock creates a cache reading time from now.
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (c *MemoryCache) Put(_ context.Context, key string, r Reservation, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	deadline := c.now().Add(ttl)
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = deadline.UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: r, deadline: deadline}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (Reservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return entry.value, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Take(_ context.Context, key string) (Reservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		return Reservation{}, ErrNotFound
	}
	delete(c.entries, key)
	return entry.value, nil
}

// live returns the entry if unexpired, dropping it otherwise. Caller holds mu.
func (c *MemoryCache) live(key string) (memoryEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !c.now().Before(entry.deadline) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// Sweep purges expired entries and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.deadline) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper purges expired entries every interval until ctx is done.
func (c *MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}
