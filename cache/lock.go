package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned by Lock when the key stays held for longer
// than the wait budget.
var ErrLockTimeout = errors.New("cache: lock wait timed out")

const lockPollInterval = 25 * time.Millisecond

// Lock acquires an exclusive lease on key, polling SetNX until it succeeds,
// wait elapses or ctx is done. The lease expires after ttl even if the
// holder dies. The returned release func only deletes the key while it
// still holds this caller's token.
func Lock(ctx context.Context, c Cache, key string, ttl, wait time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := c.SetNX(ctx, key, token, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = c.DelIfValue(rctx, key, token)
	}
	return release, nil
}
