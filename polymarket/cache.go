// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"context"
	"sync"
	"time"

	"github.com/bvk/copybot/syncmap"
)

// MarketCache caches gamma market metadata with a bounded age. Liquidity
// and open/closed state change slowly enough that a short TTL is safe, and
// caching keeps repeated trades on the same market from hammering the
// metadata endpoint.
type MarketCache struct {
	client *Client

	ttl time.Duration

	marketMap syncmap.Map[string, *Market]

	// fetchMu serializes cache-miss fetches so concurrent copiers hitting
	// the same cold market issue a single request.
	fetchMu sync.Mutex
}

// NewMarketCache creates a cache over the given client's GetMarket.
func NewMarketCache(client *Client) *MarketCache {
	return &MarketCache{
		client: client,
		ttl:    client.opts.MarketCacheTTL,
	}
}

// GetMarket returns market metadata, from the cache when fresh enough.
func (c *MarketCache) GetMarket(ctx context.Context, conditionID string) (*Market, error) {
	if m, ok := c.marketMap.Load(conditionID); ok {
		if time.Since(m.FetchTime) < c.ttl {
			return m, nil
		}
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// Another fetch may have refreshed the entry while we waited.
	if m, ok := c.marketMap.Load(conditionID); ok {
		if time.Since(m.FetchTime) < c.ttl {
			return m, nil
		}
	}

	m, err := c.client.GetMarket(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	c.marketMap.Store(conditionID, m)
	return m, nil
}
