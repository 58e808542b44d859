package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr         string        `toml:"addr"`
	Password     string        `toml:"password"`
	DB           int           `toml:"db"`
	KeyPrefix    string        `toml:"key_prefix"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`

	// ConnectAttempts is how many times the initial ping is tried.
	ConnectAttempts int `toml:"connect_attempts"`
}

// DefaultRedisConfig returns settings for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:            "localhost:6379",
		KeyPrefix:       "orbit:",
		PoolSize:        10,
		MinIdleConns:    2,
		DialTimeout:     5 * time.Second,
		ConnectAttempts: 3,
	}
}

// RedisCache is a Cache backed by Redis. Expiry is delegated to Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *log.Logger
}

// NewRedisCache connects to Redis and pings it, retrying transient failures
// with backoff. A nil logger discards output.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *log.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	err := Retry(ctx, cfg.ConnectAttempts, 500*time.Millisecond, func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Debug("redis ping failed", "addr", cfg.Addr, "error", err)
			return Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("redis cache connected", "addr", cfg.Addr, "db", cfg.DB)
	return NewRedisCacheFromClient(client, cfg.KeyPrefix, logger), nil
}

// NewRedisCacheFromClient wraps an existing client without pinging it.
func NewRedisCacheFromClient(client *redis.Client, prefix string, logger *log.Logger) *RedisCache {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

func (r *RedisCache) key(k string) string { return r.prefix + k }

func redisErr(op, key string, err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("redis %s %s: %w", op, key, err)
}

// Get returns a stored value; redis.Nil is a miss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, redisErr("get", key, err)
	}
	return data, true, nil
}

// Set stores a value. A zero ttl keeps it until evicted.
func (r *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return redisErr("set", key, err)
	}
	return nil
}

// Delete removes a value.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return redisErr("del", key, err)
	}
	return nil
}

// Clear deletes every key under the cache prefix and returns how many were
// removed. Keys are scanned and deleted in batches of 100.
func (r *RedisCache) Clear(ctx context.Context) (int, error) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var (
		batch []string
		total int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		total += int(n)
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	r.logger.Debug("redis cache cleared", "prefix", r.prefix, "keys", total)
	return total, nil
}

// Close closes the client.
func (r *RedisCache) Close() error { return r.client.Close() }

var (
	_ Cache   = (*RedisCache)(nil)
	_ Clearer = (*RedisCache)(nil)
)
