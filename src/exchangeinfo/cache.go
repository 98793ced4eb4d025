package exchangeinfo

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeengine/src/connectors"
)

// DefaultTTL matches how long exchange trading rules can safely be assumed
// stable.
const DefaultTTL = time.Hour

// ConstraintsFetcher is the slice of the exchange connector the cache needs.
type ConstraintsFetcher interface {
	GetSymbolConstraints(ctx context.Context, symbol string) (*connectors.SymbolConstraints, error)
}

type cacheEntry struct {
	constraints *connectors.SymbolConstraints
	fetchedAt   time.Time
}

// ConstraintCache serves per-symbol trading constraints with a bounded TTL.
// Whichever caller misses first refetches; concurrent misses may fetch
// redundantly, which is acceptable at the symbol cardinality involved.
type ConstraintCache struct {
	fetcher ConstraintsFetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewConstraintCache(fetcher ConstraintsFetcher, ttl time.Duration) *ConstraintCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &ConstraintCache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// WithClock overrides the time source. Useful for tests.
func (c *ConstraintCache) WithClock(now func() time.Time) *ConstraintCache {
	c.now = now
	return c
}

// Get returns the constraints for a symbol, refetching on miss or expiry.
func (c *ConstraintCache) Get(ctx context.Context, symbol string) (*connectors.SymbolConstraints, error) {
	c.mu.RLock()
	entry, ok := c.entries[symbol]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.constraints, nil
	}

	logger.WithFields(map[string]interface{}{
		"component": "ConstraintCache",
		"symbol":    symbol,
		"expired":   ok,
	}).Debug("fetching symbol constraints from exchange")

	constraints, err := c.fetcher.GetSymbolConstraints(ctx, symbol)
	if err != nil {
		// Serve a stale entry rather than failing the caller when the
		// exchange is briefly unreachable.
		if ok {
			logger.WithError(err).WithField("symbol", symbol).
				Warn("constraint refresh failed, serving stale entry")
			return entry.constraints, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[symbol] = cacheEntry{constraints: constraints, fetchedAt: c.now()}
	c.mu.Unlock()

	return constraints, nil
}
