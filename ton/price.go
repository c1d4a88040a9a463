package ton

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource returns the native coin price in a fiat currency.
type PriceSource interface {
	TONPrice(ctx context.Context, currency string) (decimal.Decimal, error)
}

// PriceCache serves a PriceSource result for ttl. It is an explicit object owned by the
// caller; nothing else shares its state.
type PriceCache struct {
	source   PriceSource
	currency string
	ttl      time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	value       decimal.Decimal
	lastUpdated time.Time
	now         func() time.Time
}

// NewPriceCache creates a cache; source may be nil, in which case the price is always zero.
func NewPriceCache(source PriceSource, currency string, ttl time.Duration, logger *zap.Logger) *PriceCache {
	return &PriceCache{
		source:   source,
		currency: currency,
		ttl:      ttl,
		logger:   logger.Named("price"),
		now:      time.Now,
	}
}

// Currency returns the fiat currency prices are quoted in
func (c *PriceCache) Currency() string {
	return c.currency
}

// Price returns the cached price, refreshing it once ttl has passed.
// A failed refresh serves the stale value, or zero if there never was one.
func (c *PriceCache) Price(ctx context.Context) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return decimal.Zero
	}
	if !c.lastUpdated.IsZero() && c.now().Sub(c.lastUpdated) < c.ttl {
		return c.value
	}

	price, err := c.source.TONPrice(ctx, c.currency)
	if err != nil {
		c.logger.Warn("Price feed unavailable", zap.String("currency", c.currency), zap.Error(err))
		return c.value
	}

	c.value = price
	c.lastUpdated = c.now()
	return price
}
