package port

import (
	"context"
	"time"
)

// CacheStore is a keyed byte store with per-entry TTL. Implementations are
// best-effort: a backend failure surfaces as a miss, never as a request
// failure. Entries are replaced on write and expire lazily.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
}
