// Package rediscache is an optional Redis-backed persistence.LLMCacheStore,
// grounded on the donor's internal/orchestrator.RedisDedupeStore (same
// redis/go-redis/v9 client, same connect-and-ping-at-construction shape).
// Swapping this in for the document store's own LLMCache collection lets
// the response cache share infrastructure with a separately-scaled Redis
// deployment instead of the primary store.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

const keyPrefix = "llmcache:"

// Store is a Redis-backed persistence.LLMCacheStore. Entries expire via
// Redis's own TTL rather than through Purge as in the document-store
// backends, so Purge here is a no-op that reports zero removed.
type Store struct {
	client *redis.Client
}

// New connects to Redis and validates the connection with a ping. Returns
// (nil, nil) when cfg.Enabled is false.
func New(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Store{client: client}, nil
}

// Get returns the cached entry for cacheKey, or ok=false when absent or
// expired (Redis's own expiry makes stale reads impossible).
func (s *Store) Get(ctx context.Context, cacheKey string) (persistence.LLMCacheEntry, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+cacheKey).Result()
	if err == redis.Nil {
		return persistence.LLMCacheEntry{}, false, nil
	}
	if err != nil {
		return persistence.LLMCacheEntry{}, false, err
	}
	var entry persistence.LLMCacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return persistence.LLMCacheEntry{}, false, err
	}
	return entry, true, nil
}

// Set stores entry with a TTL derived from entry.ExpiresAt.
func (s *Store) Set(ctx context.Context, entry persistence.LLMCacheEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+entry.CacheKey, b, ttl).Err()
}

// Purge is a no-op: Redis expires keys on its own.
func (s *Store) Purge(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
