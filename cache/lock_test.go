package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_ExcludesConcurrentHolders(t *testing.T) {
	c, _ := testutil.SetupTestCache(t)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := cache.Lock(ctx, c, "lock:test", time.Second, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLock_TimesOut(t *testing.T) {
	c, _ := testutil.SetupTestCache(t)
	ctx := context.Background()

	release, err := cache.Lock(ctx, c, "lock:busy", time.Minute, time.Second)
	require.NoError(t, err)
	defer release()

	_, err = cache.Lock(ctx, c, "lock:busy", time.Minute, 60*time.Millisecond)
	assert.ErrorIs(t, err, cache.ErrLockTimeout)
}

func TestLock_ReleaseKeepsForeignHolder(t *testing.T) {
	c, _ := testutil.SetupTestCache(t)
	ctx := context.Background()

	release, err := cache.Lock(ctx, c, "lock:k", 20*time.Millisecond, time.Second)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	// The lease expired; another holder took it.
	release2, err := cache.Lock(ctx, c, "lock:k", time.Minute, time.Second)
	require.NoError(t, err)
	defer release2()

	release()
	exists, err := c.Exists(ctx, "lock:k")
	require.NoError(t, err)
	assert.True(t, exists)
}
