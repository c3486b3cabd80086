// Package rediscache is the Redis-backed CacheStore used when several
// aggregator processes should share one cache. TTLs are enforced server-side.
package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "mdagg"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(key string) string { return s.prefix + ":" + key }

// Get treats any backend failure as a miss; the aggregator will go to the
// providers instead of failing the request.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("redis cache get failed")
		}
		return nil, false
	}
	return b, true
}

func (s *Store) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := s.rdb.Set(ctx, s.key(key), payload, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis cache set failed")
	}
}
