package payments

import (
	"context"
	"time"

	"sardis/cache"
	"sardis/native/mandate"
)

const defaultGasTTL = 30 * time.Second

// CachingExecutor decorates a chain executor with a short-lived gas estimate
// cache. Transfers pass straight through; only EstimateGas is cached.
type CachingExecutor struct {
	inner ChainExecutorPort
	cache cache.Cache
	ttl   time.Duration
}

// NewCachingExecutor wraps the executor. A zero ttl uses the 30s default.
func NewCachingExecutor(inner ChainExecutorPort, c cache.Cache, ttl time.Duration) *CachingExecutor {
	if ttl <= 0 {
		ttl = defaultGasTTL
	}
	return &CachingExecutor{inner: inner, cache: c, ttl: ttl}
}

func (e *CachingExecutor) ExecuteTransfer(ctx context.Context, p *mandate.PaymentMandate) (*ExecutionReceipt, error) {
	return e.inner.ExecuteTransfer(ctx, p)
}

// EstimateGas serves from cache when fresh, falling through on any cache
// error so estimation never fails because the cache is down.
func (e *CachingExecutor) EstimateGas(ctx context.Context, chain string) (uint64, error) {
	key := "gas:" + chain
	var cached uint64
	if hit, err := e.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	estimate, err := e.inner.EstimateGas(ctx, chain)
	if err != nil {
		return 0, err
	}
	_ = e.cache.Set(ctx, key, estimate, e.ttl)
	return estimate, nil
}

func (e *CachingExecutor) SupportedChains() []string {
	return e.inner.SupportedChains()
}
