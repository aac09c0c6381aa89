// Package redis implements the cache and pub/sub backends on Redis. Locks
// and the leaderboard held here are shared by every instance of the service.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache/rank"
	goredis "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

const pingTimeout = 5 * time.Second

func dial(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Cache is the Redis cache backend.
type Cache struct {
	client *goredis.Client
}

// NewCache connects to Redis and checks the connection.
func NewCache(cfg Config) (*Cache, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{client: client}, nil
}

// Close releases the connection pool.
func (r *Cache) Close() error {
	return r.client.Close()
}

func (r *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Cache) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *Cache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *Cache) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	n, err := delIfValue.Run(ctx, r.client, []string{key}, value).Int()
	return n > 0, err
}

// ZReplace swaps the whole set in one MULTI block so readers never see a
// partial rebuild.
func (r *Cache) ZReplace(ctx context.Context, key string, entries []rank.Entry) error {
	zs := make([]goredis.Z, len(entries))
	for i, e := range entries {
		zs[i] = goredis.Z{Score: e.Score, Member: e.Member}
	}
	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, key)
		if len(zs) > 0 {
			p.ZAdd(ctx, key, zs...)
		}
		return nil
	})
	return err
}

func (r *Cache) ZTop(ctx context.Context, key string, n int64) ([]rank.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := r.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]rank.Entry, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		out = append(out, rank.Entry{Member: m, Score: z.Score})
	}
	return out, nil
}

func (r *Cache) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}
