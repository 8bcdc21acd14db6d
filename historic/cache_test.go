package historic

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tvstream/tvstream-go/protocol"
)

func cacheBars(n int) []protocol.Candle {
	out := make([]protocol.Candle, n)
	for i := range out {
		out[i] = protocol.Candle{
			Symbol:   "X:Y",
			Interval: "1",
			TimeOpen: time.Unix(int64(1700000000+60*i), 0).UTC(),
			Close:    decimal.NewFromInt(int64(i)),
			Closed:   true,
		}
	}
	return out
}

func TestCacheHitWithinTTL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := newCandleCache()
	c.now = func() time.Time { return now }

	key := cacheKey{symbol: "X:Y", interval: "1", limit: 10}
	stored := cacheBars(10)
	c.put(key, stored)

	now = now.Add(59 * time.Second)
	got, ok := c.get(key)
	if !ok {
		t.Fatal("expected cache hit within TTL")
	}
	if len(got) != len(stored) {
		t.Fatalf("len = %d, want %d", len(got), len(stored))
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := newCandleCache()
	c.now = func() time.Time { return now }

	key := cacheKey{symbol: "X:Y", interval: "1", limit: 10}
	c.put(key, cacheBars(10))

	now = now.Add(60 * time.Second)
	if _, ok := c.get(key); ok {
		t.Fatal("expected expiry at TTL")
	}
}

func TestCacheKeyIncludesLimit(t *testing.T) {
	c := newCandleCache()
	c.put(cacheKey{symbol: "X:Y", interval: "1", limit: 10}, cacheBars(10))

	if _, ok := c.get(cacheKey{symbol: "X:Y", interval: "1", limit: 20}); ok {
		t.Fatal("different limit must be a different entry")
	}
	if _, ok := c.get(cacheKey{symbol: "X:Y", interval: "5", limit: 10}); ok {
		t.Fatal("different interval must be a different entry")
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := newCandleCache()
	c.now = func() time.Time { return now }

	for i := 0; i <= cacheMaxSize; i++ {
		c.put(cacheKey{symbol: "S" + strconv.Itoa(i), interval: "1", limit: 10}, cacheBars(1))
		now = now.Add(time.Millisecond)
	}

	if len(c.entries) != cacheMaxSize {
		t.Fatalf("size = %d, want %d", len(c.entries), cacheMaxSize)
	}
	if _, ok := c.get(cacheKey{symbol: "S0", interval: "1", limit: 10}); ok {
		t.Error("oldest entry should have been evicted")
	}
	last := "S" + strconv.Itoa(cacheMaxSize)
	if _, ok := c.get(cacheKey{symbol: last, interval: "1", limit: 10}); !ok {
		t.Error("newest entry missing")
	}
}
