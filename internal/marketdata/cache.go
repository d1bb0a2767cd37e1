package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradesphere/internal/models"
)

type cacheEntry struct {
	price   decimal.Decimal
	fetched time.Time
}

// QuoteCache wraps a PriceSource with a TTL cache. Lookups check the cache
// under lock, fetch outside the lock on a miss, then write back under lock.
// Two concurrent misses on the same key may both fetch; the last write wins,
// which is fine for a price cache.
type QuoteCache struct {
	source PriceSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

var _ PriceSource = (*QuoteCache)(nil)

// NewQuoteCache wraps source with a cache holding prices for ttl.
func NewQuoteCache(source PriceSource, ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// GetPrice implements PriceSource.
func (c *QuoteCache) GetPrice(ctx context.Context, symbol string, market models.Market) (decimal.Decimal, error) {
	key := string(market) + ":" + symbol

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		c.mu.Unlock()
		return entry.price, nil
	}
	c.mu.Unlock()

	price, err := c.source.GetPrice(ctx, symbol, market)
	if err != nil {
		return decimal.Zero, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{price: price, fetched: c.now()}
	c.mu.Unlock()

	return price, nil
}
