package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a search result set is reused.
const DefaultCacheTTL = 15 * time.Minute

// Cache stores encoded search results. Get reports a miss with ok == false.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// CachedProvider serves repeat searches from a Cache. Cache errors are
// logged and fall through to the wrapped provider; only non-empty result
// sets are stored.
type CachedProvider struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProvider(next Provider, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedProvider) Name() string { return c.next.Name() }

func (c *CachedProvider) Search(ctx context.Context, q news.SearchQuery) ([]news.RawResult, error) {
	key := cacheKey(c.next.Name(), q)

	if val, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("search cache read failed", "key", key, "err", err)
	} else if ok {
		var results []news.RawResult
		if err := json.Unmarshal(val, &results); err == nil {
			c.logger.Debug("search cache hit", "key", key, "results", len(results))
			return results, nil
		}
		c.logger.Warn("search cache entry unreadable", "key", key)
	}

	results, err := c.next.Search(ctx, q)
	if err != nil || len(results) == 0 {
		return results, err
	}

	if val, err := json.Marshal(results); err == nil {
		if err := c.cache.Set(ctx, key, val, c.ttl); err != nil {
			c.logger.Warn("search cache write failed", "key", key, "err", err)
		}
	}
	return results, nil
}

// cacheKey folds the topic's case: providers match topics case-insensitively,
// and callers keep their own casing for the prompt and the stored digest.
func cacheKey(provider string, q news.SearchQuery) string {
	return fmt.Sprintf("digest:serp:%s:%s:%s:%d",
		provider, strings.ToLower(q.Topic), q.Window, q.ResultCap)
}

// RedisCache is a Cache on a Redis server.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr, which may be a redis:// URL or a plain
// host:port, and pings it.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %w", news.ErrConfiguration, opt.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, val, ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
