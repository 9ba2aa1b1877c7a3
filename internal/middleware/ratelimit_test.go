package middleware

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// Hammers the access timestamp from many goroutines while the cleanup loop
// scans it, so the race detector sees both sides of the traffic.
func TestRateLimiterCleanupRunsAlongsideRequests(t *testing.T) {
	rl := &RateLimiter{
		rate:            100,
		burst:           100,
		cleanupInterval: 10 * time.Millisecond,
	}
	go rl.cleanup()

	stale := &limiterEntry{limiter: rate.NewLimiter(100, 100)}
	stale.lastAccess.Store(time.Now().Add(-time.Hour).UnixNano())
	rl.limiters.Store("ip:stale", stale)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				rl.getLimiter("ip:fresh")
			}
		}()
	}
	wg.Wait()

	// The idle client is evicted, the active one survives.
	require.Eventually(t, func() bool {
		_, ok := rl.limiters.Load("ip:stale")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	_, ok := rl.limiters.Load("ip:fresh")
	assert.True(t, ok)
}
