package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per caller key.
type buckets struct {
	mu    sync.Mutex
	r     rate.Limit
	burst int
	m     map[string]*bucket
	now   func() time.Time
}

// take consumes a token for key. When none is available it returns false
// and how long until one is.
func (bs *buckets) take(key string) (bool, time.Duration) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	now := bs.now()
	b, ok := bs.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(bs.r, bs.burst)}
		bs.m[key] = b
	}
	b.lastSeen = now
	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (bs *buckets) sweep(idle time.Duration) {
	cutoff := bs.now().Add(-idle)
	bs.mu.Lock()
	defer bs.mu.Unlock()
	for k, b := range bs.m {
		if b.lastSeen.Before(cutoff) {
			delete(bs.m, k)
		}
	}
}

func (bs *buckets) size() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return len(bs.m)
}

func newBuckets(r rate.Limit, burst int) *buckets {
	return &buckets{r: r, burst: burst, m: make(map[string]*bucket), now: time.Now}
}

// RateLimit applies a token bucket of r requests per second and burst b to
// each caller. Mounted behind Auth the caller is the actor; otherwise it is
// the client IP. Rejections carry Retry-After. Idle buckets are dropped
// until ctx is done.
func RateLimit(ctx context.Context, r rate.Limit, b int) gin.HandlerFunc {
	bs := newBuckets(r, b)
	go func() {
		t := time.NewTicker(limiterSweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				bs.sweep(limiterIdleAfter)
			}
		}
	}()
	return rateLimitWith(bs)
}

func rateLimitWith(bs *buckets) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := bs.take(callerKey(c))
		if ok {
			c.Next()
			return
		}
		if wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}

func callerKey(c *gin.Context) string {
	if id := GetActor(c).Canonical(); id.Valid() {
		return string(id)
	}
	return "ip:" + c.ClientIP()
}
