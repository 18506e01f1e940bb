package candle

import (
	"sync"
	"time"
)

// Cache holds the shared reference-asset candle snapshot. The data-feed
// collaborator is the single writer; every bot reads immutable snapshots.
type Cache struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	updatedAt time.Time
	ttl       time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		snapshot: Snapshot{},
		ttl:      ttl,
	}
}

// Update replaces the cached snapshot. Callers must not mutate series they
// have handed to Update.
func (c *Cache) Update(snap Snapshot, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snap
	c.updatedAt = now
}

// SetSeries replaces a single timeframe's series, copying the snapshot map
// so readers holding the previous snapshot are unaffected.
func (c *Cache) SetSeries(tf Timeframe, s Series, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(Snapshot, len(c.snapshot)+1)
	for k, v := range c.snapshot {
		next[k] = v
	}
	next[tf] = s
	c.snapshot = next
	c.updatedAt = now
}

// Snapshot returns the current snapshot and whether it is still fresh.
// A stale snapshot is still returned so the engine can degrade gracefully
// rather than block.
func (c *Cache) Snapshot(now time.Time) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fresh := !c.updatedAt.IsZero() && now.Sub(c.updatedAt) <= c.ttl
	return c.snapshot, fresh
}
