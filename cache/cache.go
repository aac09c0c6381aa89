// Package cache fronts the Redis and in-process backends used for
// submission locks, token revocation, the XP leaderboard and notification
// fan-out. Redis is used when an address is configured.
package cache

import (
	"context"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache/local"
	"github.com/christianebacani/yoonet-quest-system-sub000/cache/rank"
	cacheredis "github.com/christianebacani/yoonet-quest-system-sub000/cache/redis"
)

// Cache is the key/value and sorted-set surface the services rely on.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// DelIfValue deletes key only while it still holds value, atomically.
	DelIfValue(ctx context.Context, key, value string) (bool, error)

	// ZReplace atomically replaces the set with entries.
	ZReplace(ctx context.Context, key string, entries []rank.Entry) error
	// ZTop returns up to n members, highest score first.
	ZTop(ctx context.Context, key string, n int64) ([]rank.Entry, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub publishes to and subscribes on named channels.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

// CacheConfig selects and tunes the backend.
type CacheConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LocalGCInterval time.Duration
	LocalPubSubBuf  int
}

func (cfg CacheConfig) redis() cacheredis.Config {
	return cacheredis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// NewCache returns the Redis backend when RedisAddr is set and the
// in-process one otherwise.
func NewCache(cfg CacheConfig) (Cache, error) {
	if cfg.RedisAddr != "" {
		c, err := cacheredis.NewCache(cfg.redis())
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return local.NewCache(local.Config{GCInterval: cfg.LocalGCInterval})
}

// NewPubSub picks the backend the same way as NewCache.
func NewPubSub(cfg CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		ps, err := cacheredis.NewPubSub(cfg.redis())
		if err != nil {
			return nil, err
		}
		return bridge(ps.Publish, ps.Subscribe), nil
	}
	ps := local.NewPubSub(cfg.LocalPubSubBuf)
	return bridge(ps.Publish, ps.Subscribe), nil
}

// message is the shape both backends use for their own message type.
type message interface {
	local.Message | cacheredis.Message
}

// bridged adapts a backend's Subscribe to deliver *Message.
type bridged[M message] struct {
	publish   func(ctx context.Context, channel, message string) error
	subscribe func(ctx context.Context, channels ...string) (<-chan *M, func(), error)
}

func bridge[M message](
	publish func(ctx context.Context, channel, message string) error,
	subscribe func(ctx context.Context, channels ...string) (<-chan *M, func(), error),
) PubSub {
	return &bridged[M]{publish: publish, subscribe: subscribe}
}

func (b *bridged[M]) Publish(ctx context.Context, channel, message string) error {
	return b.publish(ctx, channel, message)
}

func (b *bridged[M]) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	in, cancel, err := b.subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *Message, cap(in))
	go func() {
		defer close(out)
		for m := range in {
			msg := Message(*m)
			out <- &msg
		}
	}()
	return out, cancel, nil
}
