package cache

import (
	"context"
	"time"

	"mdagg/internal/application/port"
)

// TTL pairs the short-lived primary tier with the long-lived fallback tier.
// Both tiers are written together on every validated fetch; the stale tier is
// only read after every provider has failed (stale-if-error).
type TTL struct {
	Fresh time.Duration
	Stale time.Duration
}

// Tiered layers the fresh/stale discipline over any CacheStore.
type Tiered struct {
	store port.CacheStore
}

func NewTiered(store port.CacheStore) *Tiered {
	return &Tiered{store: store}
}

func (t *Tiered) GetFresh(ctx context.Context, key string) ([]byte, bool) {
	return t.store.Get(ctx, Key(key, "fresh"))
}

func (t *Tiered) GetStale(ctx context.Context, key string) ([]byte, bool) {
	return t.store.Get(ctx, Key(key, "stale"))
}

// Put writes both tiers; the stale copy carries the longer TTL.
func (t *Tiered) Put(ctx context.Context, key string, payload []byte, ttl TTL) {
	t.store.Set(ctx, Key(key, "fresh"), payload, ttl.Fresh)
	t.store.Set(ctx, Key(key, "stale"), payload, ttl.Stale)
}
