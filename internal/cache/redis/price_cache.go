package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// DefaultPriceTTL is how long a cached price survives without a refresh.
const DefaultPriceTTL = 60 * time.Second

// PriceCache implements domain.PriceCache with one string key per symbol at
// "price:{symbol}" holding the decimal price. Every write refreshes the
// key's expiry, so readers can use a plain GET.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache. A non-positive ttl uses DefaultPriceTTL.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(symbol string) string {
	return "price:" + symbol
}

// SetPrice stores the latest price for symbol.
func (pc *PriceCache) SetPrice(ctx context.Context, symbol string, price float64) error {
	val := strconv.FormatFloat(price, 'f', -1, 64)
	if err := pc.rdb.Set(ctx, priceKey(symbol), val, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", symbol, err)
	}
	return nil
}

var _ domain.PriceCache = (*PriceCache)(nil)
