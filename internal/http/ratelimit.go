package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// rateLimiter caps mutating requests per client IP using a fixed window.
// Entries for idle clients are swept periodically.
type rateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	clients  map[string]*clientWindow
	stopCh   chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientWindow),
		stopCh:  make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// allow reports whether a request from clientIP fits inside the current
// window, counting it if so.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cw, ok := rl.clients[clientIP]
	if !ok || now.Sub(cw.windowStart) > rl.window {
		rl.clients[clientIP] = &clientWindow{windowStart: now, count: 1}
		return true
	}

	cw.count++
	if cw.count > rl.limit {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}

func (rl *rateLimiter) sweepLoop() {
	ticker := time.NewTicker(5 * rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stopCh:
			return
		}
	}
}

// sweep drops clients whose window expired long ago.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-2 * rl.window)
	for ip, cw := range rl.clients {
		if cw.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}
