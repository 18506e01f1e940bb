package market

import (
	"sync"
	"time"
)

// QuoteCache is a TTL-based in-memory cache of per-market quotes, shared
// between the data feed (writer) and the bot loops (readers).
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]quoteEntry
	ttl    time.Duration
}

type quoteEntry struct {
	quote     Quote
	fetchedAt time.Time
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{quotes: make(map[string]quoteEntry), ttl: ttl}
}

// Get returns the cached quote for a market, or false when it is missing
// or older than the TTL.
func (c *QuoteCache) Get(marketID string, now time.Time) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.quotes[marketID]
	if !ok || now.Sub(entry.fetchedAt) > c.ttl {
		return Quote{}, false
	}
	return entry.quote, true
}

func (c *QuoteCache) Set(marketID string, q Quote, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[marketID] = quoteEntry{quote: q, fetchedAt: now}
}

// Prune drops entries older than the TTL. Called periodically so expired
// markets do not accumulate across window rollovers.
func (c *QuoteCache) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.quotes {
		if now.Sub(entry.fetchedAt) > c.ttl {
			delete(c.quotes, id)
		}
	}
}
