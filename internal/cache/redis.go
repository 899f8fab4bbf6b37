package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"gittab/internal/logging"
)

// redisKeyPrefix namespaces every gittab key inside a shared Redis
// database.
const redisKeyPrefix = "gittab_"

// RedisConfig holds connection parameters for a RedisBackend. Fields this
// component interprets are named; anything client-specific goes in Extras
// and is forwarded to the go-redis client options without interpretation.
type RedisConfig struct {
	Host     string
	Port     int
	DB       int
	Password string
	MaxKeys  int
	// TTL is the per-entry expiry applied at write time and enforced by
	// the Redis server. Zero means no expiry.
	TTL time.Duration
	// Extras are client-specific options (e.g. username, pool_size,
	// dial_timeout) forwarded verbatim.
	Extras map[string]interface{}
}

// RedisBackend delegates the cache contract to a Redis database. Expiry is
// the server's job: listings and lookups only ever see currently-live
// keys. Connectivity and protocol errors propagate to the caller; there is
// no local fallback.
type RedisBackend struct {
	mu      sync.Mutex
	client  *redis.Client
	keyList []string
	maxKeys int
	ttl     time.Duration
	logger  *logging.Logger
}

// NewRedisBackend connects to Redis and syncs the eviction order with any
// gittab keys already present in the database (their relative order is not
// preserved across processes).
func NewRedisBackend(cfg RedisConfig, logger *logging.Logger) (*RedisBackend, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:       cfg.DB,
		Password: cfg.Password,
	}
	applyExtras(opts, cfg.Extras)

	b := &RedisBackend{
		client:  redis.NewClient(opts),
		maxKeys: cfg.MaxKeys,
		ttl:     cfg.TTL,
		logger:  logger,
	}

	if err := b.sync(); err != nil {
		return nil, fmt.Errorf("redis cache: failed to sync existing keys: %w", err)
	}

	logger.Debug("Redis cache connected", map[string]interface{}{
		"addr":     opts.Addr,
		"db":       cfg.DB,
		"max_keys": cfg.MaxKeys,
		"ttl":      cfg.TTL.String(),
	})
	return b, nil
}

// applyExtras forwards pass-through options to the client configuration.
// Keys this mapping does not know about are ignored; their meaning belongs
// to the operator and the client, not to this component.
func applyExtras(opts *redis.Options, extras map[string]interface{}) {
	for key, value := range extras {
		switch key {
		case "username":
			if s, ok := value.(string); ok {
				opts.Username = s
			}
		case "pool_size":
			if n, ok := asInt(value); ok {
				opts.PoolSize = n
			}
		case "min_idle_conns":
			if n, ok := asInt(value); ok {
				opts.MinIdleConns = n
			}
		case "max_retries":
			if n, ok := asInt(value); ok {
				opts.MaxRetries = n
			}
		case "dial_timeout":
			if d, ok := asDuration(value); ok {
				opts.DialTimeout = d
			}
		case "read_timeout":
			if d, ok := asDuration(value); ok {
				opts.ReadTimeout = d
			}
		case "write_timeout":
			if d, ok := asDuration(value); ok {
				opts.WriteTimeout = d
			}
		}
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asDuration(v interface{}) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		parsed, err := time.ParseDuration(d)
		if err == nil {
			return parsed, true
		}
	case int:
		return time.Duration(d) * time.Second, true
	case float64:
		return time.Duration(d) * time.Second, true
	}
	return 0, false
}

// sync rebuilds the local eviction order from the keys currently in Redis.
func (b *RedisBackend) sync() error {
	ctx := context.Background()
	var keys []string
	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.keyList = keys
	b.mu.Unlock()
	return nil
}

// Set stores the entry envelope under the namespaced key with the
// configured TTL, evicting the oldest-inserted tracked keys beyond the
// bound.
func (b *RedisBackend) Set(key string, value []byte) error {
	entry := Entry{Value: value, CachedAt: time.Now().UTC()}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	ctx := context.Background()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.client.Set(ctx, redisKeyPrefix+key, payload, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	b.removeFromOrder(key)
	b.keyList = append(b.keyList, key)

	for len(b.keyList) > b.maxKeys {
		oldest := b.keyList[0]
		b.keyList = b.keyList[1:]
		if err := b.client.Del(ctx, redisKeyPrefix+oldest).Err(); err != nil {
			return fmt.Errorf("redis eviction failed: %w", err)
		}
	}
	return nil
}

// Get returns the stored value or a miss. Keys expired by the server are
// misses.
func (b *RedisBackend) Get(key string) ([]byte, bool, error) {
	entry, found, err := b.getEntry(key)
	if err != nil || !found {
		return nil, found, err
	}
	return entry.Value, true, nil
}

func (b *RedisBackend) getEntry(key string) (*Entry, bool, error) {
	payload, err := b.client.Get(context.Background(), redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, true, nil
}

// Exists reports whether key is currently live on the server.
func (b *RedisBackend) Exists(key string) (bool, error) {
	n, err := b.client.Exists(context.Background(), redisKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// ListCachedKeys returns metadata for every currently-live key.
func (b *RedisBackend) ListCachedKeys() ([]Info, error) {
	ctx := context.Background()
	var infos []Info

	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), redisKeyPrefix)
		entry, found, err := b.getEntry(key)
		if err != nil {
			return nil, err
		}
		if !found {
			// Expired between SCAN and GET.
			continue
		}
		infos = append(infos, infoFor(key, entry.CachedAt))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return infos, nil
}

// GetCacheInfo returns metadata for one entry, or nil when absent.
func (b *RedisBackend) GetCacheInfo(key string) (*Info, error) {
	entry, found, err := b.getEntry(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	info := infoFor(key, entry.CachedAt)
	return &info, nil
}

// Invalidate removes the named keys.
func (b *RedisBackend) Invalidate(keys ...string) (int, error) {
	ctx := context.Background()

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for _, key := range keys {
		n, err := b.client.Del(ctx, redisKeyPrefix+key).Result()
		if err != nil {
			return removed, fmt.Errorf("redis delete failed: %w", err)
		}
		if n > 0 {
			removed++
		}
		b.removeFromOrder(key)
	}
	return removed, nil
}

// InvalidatePattern removes every key matching a glob-style pattern.
func (b *RedisBackend) InvalidatePattern(pattern string) (int, error) {
	ctx := context.Background()

	var matched []string
	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), redisKeyPrefix)
		if MatchPattern(key, pattern) {
			matched = append(matched, key)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return b.Invalidate(matched...)
}

// InvalidateAll clears every gittab key in the database.
func (b *RedisBackend) InvalidateAll() (int, error) {
	ctx := context.Background()

	var keys []string
	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return b.Invalidate(keys...)
}

// Stats returns global backend statistics over currently-live keys.
func (b *RedisBackend) Stats() (*Stats, error) {
	infos, err := b.ListCachedKeys()
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(infos))
	for _, info := range infos {
		times = append(times, info.CachedAt)
	}
	return statsFor(b.maxKeys, times), nil
}

// Close releases the client connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// removeFromOrder drops key from the tracked insertion order. Caller must
// hold the mutex.
func (b *RedisBackend) removeFromOrder(key string) {
	for i, k := range b.keyList {
		if k == key {
			b.keyList = append(b.keyList[:i], b.keyList[i+1:]...)
			return
		}
	}
}
