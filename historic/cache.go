package historic

import (
	"sync"
	"time"

	"github.com/tvstream/tvstream-go/protocol"
)

const (
	cacheTTL     = 60 * time.Second
	cacheMaxSize = 128
)

type cacheKey struct {
	symbol   string
	interval string
	limit    int
}

type cacheEntry struct {
	storedAt time.Time
	candles  []protocol.Candle
}

// candleCache is a small TTL cache for history snapshots. Entries expire
// after 60 seconds; when the cache is full the oldest entry is evicted.
// All operations are serialized under one mutex.
type candleCache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

func newCandleCache() *candleCache {
	return &candleCache{
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

func (c *candleCache) get(key cacheKey) ([]protocol.Candle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= cacheTTL {
		delete(c.entries, key)
		return nil, false
	}
	return entry.candles, true
}

func (c *candleCache) put(key cacheKey, candles []protocol.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{storedAt: c.now(), candles: candles}

	if len(c.entries) <= cacheMaxSize {
		return
	}
	var oldestKey cacheKey
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
			first = false
		}
	}
	delete(c.entries, oldestKey)
}
