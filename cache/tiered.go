package cache

import (
	"context"
	"log/slog"
	"time"
)

// Tiered reads through memory first, then the shared tier, refilling memory
// on a shared hit. Shared-tier failures degrade to memory-only instead of
// failing the lookup.
type Tiered struct {
	local  *Memory
	shared Cache
	// localTTL caps how long a shared value stays in memory.
	localTTL time.Duration
	log      *slog.Logger
}

// TieredOption customises a Tiered cache.
type TieredOption func(*Tiered)

// WithLocalTTL overrides the memory-tier TTL.
func WithLocalTTL(ttl time.Duration) TieredOption {
	return func(t *Tiered) {
		if ttl > 0 {
			t.localTTL = ttl
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) TieredOption {
	return func(t *Tiered) {
		if log != nil {
			t.log = log
		}
	}
}

// NewTiered layers memory over an optional shared tier. A nil shared tier
// yields a memory-only cache.
func NewTiered(shared Cache, opts ...TieredOption) *Tiered {
	t := &Tiered{
		local:    NewMemory(),
		shared:   shared,
		localTTL: 30 * time.Second,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tiered) Get(ctx context.Context, key string, out any) (bool, error) {
	if ok, err := t.local.Get(ctx, key, out); err == nil && ok {
		return true, nil
	}
	if t.shared == nil {
		return false, nil
	}
	ok, err := t.shared.Get(ctx, key, out)
	if err != nil {
		t.log.Warn("shared cache read failed", "key", key, "err", err)
		return false, nil
	}
	if ok {
		if err := t.local.Set(ctx, key, out, t.localTTL); err != nil {
			t.log.Warn("local cache refill failed", "key", key, "err", err)
		}
	}
	return ok, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	localTTL := ttl
	if localTTL <= 0 || localTTL > t.localTTL {
		localTTL = t.localTTL
	}
	if err := t.local.Set(ctx, key, value, localTTL); err != nil {
		return err
	}
	if t.shared == nil {
		return nil
	}
	if err := t.shared.Set(ctx, key, value, ttl); err != nil {
		t.log.Warn("shared cache write failed", "key", key, "err", err)
	}
	return nil
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.local.Delete(ctx, key); err != nil {
		return err
	}
	if t.shared == nil {
		return nil
	}
	if err := t.shared.Delete(ctx, key); err != nil {
		t.log.Warn("shared cache delete failed", "key", key, "err", err)
	}
	return nil
}
