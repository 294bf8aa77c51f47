package domain

import (
	"context"
	"time"
)

// PriceCache is the best-effort external store of last-known prices.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64) error
}

// SignalBus publishes raw payloads to named pub/sub topics.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Lease is a held distributed lock.
type Lease interface {
	// Refresh extends the lease by its TTL. It returns ErrLockLost when the
	// lease expired or was taken over.
	Refresh(ctx context.Context) error
	Release()
}

// LockManager hands out distributed leases. Acquire returns ErrLockHeld when
// another owner holds key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
