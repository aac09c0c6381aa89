package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// Message is a received pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// PubSub is the Redis pub/sub backend. Notifications published by one
// instance reach SSE streams held by any other.
type PubSub struct {
	client *goredis.Client
}

// NewPubSub connects to Redis and checks the connection.
func NewPubSub(cfg Config) (*PubSub, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &PubSub{client: client}, nil
}

func (r *PubSub) Publish(ctx context.Context, channel, message string) error {
	return r.client.Publish(ctx, channel, message).Err()
}

// Subscribe waits for the subscription to be confirmed before returning,
// so a publish made right after it is not lost.
func (r *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	sub := r.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	out := make(chan *Message, 64)
	go func() {
		defer close(out)
		for m := range sub.Channel() {
			out <- &Message{Channel: m.Channel, Payload: m.Payload}
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}
